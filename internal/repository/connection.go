package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storelens/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncCounts are the record totals stamped on a Connection after a
// successful full sync.
type SyncCounts struct {
	Products  int64
	Customers int64
	Orders    int64
}

func (s *Store) GetConnection(ctx context.Context, tenantID string) (*models.Connection, error) {
	var conn models.Connection
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return &conn, nil
}

// SaveConnection creates the tenant's connection or, on re-install, replaces
// its shop, credential and scope. Sync status and counts survive.
func (s *Store) SaveConnection(ctx context.Context, conn *models.Connection) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"shop_domain", "access_token", "scope", "updated_at"}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

func (s *Store) UpdateConnectionStatus(ctx context.Context, tenantID string, status models.ConnectionStatus) error {
	return s.updateConnection(ctx, tenantID, map[string]interface{}{"sync_status": status})
}

func (s *Store) MarkSyncStarted(ctx context.Context, tenantID string, at time.Time) error {
	return s.updateConnection(ctx, tenantID, map[string]interface{}{
		"sync_status":     models.ConnectionStatusSyncing,
		"sync_started_at": at,
	})
}

func (s *Store) MarkSyncCompleted(ctx context.Context, tenantID string, at time.Time, counts SyncCounts) error {
	return s.updateConnection(ctx, tenantID, map[string]interface{}{
		"sync_status":    models.ConnectionStatusCompleted,
		"last_synced_at": at,
		"product_count":  counts.Products,
		"customer_count": counts.Customers,
		"order_count":    counts.Orders,
	})
}

func (s *Store) updateConnection(ctx context.Context, tenantID string, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Connection{}).Where("tenant_id = ?", tenantID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// DeleteConnection removes the credential and any pending install states.
// Synced catalog data is kept.
func (s *Store) DeleteConnection(ctx context.Context, tenantID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("tenant_id = ?", tenantID).Delete(&models.Connection{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete connection: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConnectionNotFound
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&models.OAuthState{}).Error; err != nil {
			return fmt.Errorf("failed to delete oauth states: %w", err)
		}
		return nil
	})
}
