package repository

import (
	"context"
	"fmt"
	"time"

	"storelens/internal/models"
)

// CreateSyncRun records a pending run for one entity kind.
func (s *Store) CreateSyncRun(ctx context.Context, tenantID string, kind models.EntityKind) (*models.SyncRun, error) {
	run := &models.SyncRun{
		TenantID:   tenantID,
		EntityKind: kind,
		Status:     models.SyncRunPending,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s sync run: %w", kind, err)
	}
	return run, nil
}

// StartSyncRun moves a pending run to in_progress with the upstream total.
func (s *Store) StartSyncRun(ctx context.Context, runID string, total int64, at time.Time) error {
	return s.updateSyncRun(ctx, runID, map[string]interface{}{
		"status":      models.SyncRunInProgress,
		"total_count": total,
		"started_at":  at,
	})
}

// UpdateSyncProgress stores the number of records committed so far.
func (s *Store) UpdateSyncProgress(ctx context.Context, runID string, synced int64) error {
	return s.updateSyncRun(ctx, runID, map[string]interface{}{"synced_count": synced})
}

// FinishSyncRun moves the run to a terminal status. errMsg is ignored for
// completed runs.
func (s *Store) FinishSyncRun(ctx context.Context, runID string, status models.SyncRunStatus, errMsg string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("sync run status %q is not terminal", status)
	}
	values := map[string]interface{}{
		"status":       status,
		"completed_at": at,
	}
	if status == models.SyncRunFailed {
		values["error_message"] = errMsg
	}
	return s.updateSyncRun(ctx, runID, values)
}

func (s *Store) updateSyncRun(ctx context.Context, runID string, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update sync run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

func (s *Store) GetSyncRun(ctx context.Context, runID string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to load sync run: %w", err)
	}
	return &run, nil
}

// LatestSyncRuns returns the most recently created run of each entity kind.
// Kinds that never ran are absent from the map.
func (s *Store) LatestSyncRuns(ctx context.Context, tenantID string) (map[models.EntityKind]*models.SyncRun, error) {
	out := make(map[models.EntityKind]*models.SyncRun, len(models.EntityKinds))
	for _, kind := range models.EntityKinds {
		var runs []models.SyncRun
		err := s.db.WithContext(ctx).
			Where("tenant_id = ? AND entity_kind = ?", tenantID, kind).
			Order("created_at DESC").
			Limit(1).
			Find(&runs).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load %s sync runs: %w", kind, err)
		}
		if len(runs) > 0 {
			out[kind] = &runs[0]
		}
	}
	return out, nil
}
