package syncer

import (
	"context"
	"time"

	"storelens/internal/models"
)

// RunStateWaiting is reported for entity kinds whose run has not started.
const RunStateWaiting = "waiting"

// StatusStore is the read-only persistence the Reporter needs.
type StatusStore interface {
	GetConnection(ctx context.Context, tenantID string) (*models.Connection, error)
	LatestSyncRuns(ctx context.Context, tenantID string) (map[models.EntityKind]*models.SyncRun, error)
}

type SyncStatus struct {
	TenantID      string                  `json:"tenant_id"`
	ShopDomain    string                  `json:"shop_domain"`
	Status        models.ConnectionStatus `json:"status"`
	SyncStartedAt *time.Time              `json:"sync_started_at"`
	LastSyncedAt  *time.Time              `json:"last_synced_at"`
	Counts        EntityCounts            `json:"counts"`
	Runs          []RunStatus             `json:"runs"`
}

type EntityCounts struct {
	Products  int64 `json:"products"`
	Customers int64 `json:"customers"`
	Orders    int64 `json:"orders"`
}

type RunStatus struct {
	EntityKind  models.EntityKind `json:"entity_kind"`
	State       string            `json:"state"`
	TotalCount  *int64            `json:"total_count"`
	SyncedCount int64             `json:"synced_count"`
	Percent     *float64          `json:"percent"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Reporter assembles the polling view of a tenant's sync. It never writes.
type Reporter struct {
	store StatusStore
}

func NewReporter(store StatusStore) *Reporter {
	return &Reporter{store: store}
}

func (r *Reporter) Status(ctx context.Context, tenantID string) (*SyncStatus, error) {
	conn, err := r.store.GetConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	latest, err := r.store.LatestSyncRuns(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	status := &SyncStatus{
		TenantID:      conn.TenantID,
		ShopDomain:    conn.ShopDomain,
		Status:        conn.SyncStatus,
		SyncStartedAt: conn.SyncStartedAt,
		LastSyncedAt:  conn.LastSyncedAt,
		Counts: EntityCounts{
			Products:  conn.ProductCount,
			Customers: conn.CustomerCount,
			Orders:    conn.OrderCount,
		},
		Runs: make([]RunStatus, 0, len(models.EntityKinds)),
	}

	for _, kind := range models.EntityKinds {
		status.Runs = append(status.Runs, runStatus(kind, latest[kind]))
	}
	return status, nil
}

func runStatus(kind models.EntityKind, run *models.SyncRun) RunStatus {
	rs := RunStatus{EntityKind: kind, State: RunStateWaiting}
	if run == nil {
		return rs
	}

	rs.TotalCount = run.TotalCount
	rs.SyncedCount = run.SyncedCount
	rs.StartedAt = run.StartedAt
	rs.CompletedAt = run.CompletedAt
	rs.Error = run.ErrorMessage
	if run.Status != models.SyncRunPending {
		rs.State = string(run.Status)
	}
	rs.Percent = percent(run)
	return rs
}

// percent is synced/total, capped at 100 since the upstream can grow while a
// run is paging. An empty store counts as done once the run completes.
func percent(run *models.SyncRun) *float64 {
	if run.TotalCount == nil {
		return nil
	}
	total := *run.TotalCount
	var p float64
	switch {
	case total > 0:
		p = float64(run.SyncedCount) / float64(total) * 100
		if p > 100 {
			p = 100
		}
	case run.Status == models.SyncRunCompleted:
		p = 100
	default:
		return nil
	}
	return &p
}
