package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntityKind string

const (
	EntityProducts  EntityKind = "products"
	EntityCustomers EntityKind = "customers"
	EntityOrders    EntityKind = "orders"
)

// EntityKinds lists the entity kinds in the order a full sync imports them.
var EntityKinds = []EntityKind{EntityProducts, EntityCustomers, EntityOrders}

type SyncRunStatus string

const (
	SyncRunPending    SyncRunStatus = "pending"
	SyncRunInProgress SyncRunStatus = "in_progress"
	SyncRunCompleted  SyncRunStatus = "completed"
	SyncRunFailed     SyncRunStatus = "failed"
)

func (s SyncRunStatus) IsTerminal() bool {
	return s == SyncRunCompleted || s == SyncRunFailed
}

// SyncRun records one import of a single entity kind.
type SyncRun struct {
	ID           string        `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     string        `json:"tenant_id" gorm:"not null;index:idx_sync_runs_tenant_entity"`
	EntityKind   EntityKind    `json:"entity_kind" gorm:"not null;index:idx_sync_runs_tenant_entity"`
	Status       SyncRunStatus `json:"status" gorm:"not null;default:pending"`
	TotalCount   *int64        `json:"total_count"`
	SyncedCount  int64         `json:"synced_count" gorm:"not null;default:0"`
	StartedAt    *time.Time    `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
