package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection is a tenant's authorized link to one storefront. AccessToken is
// always stored encrypted.
type Connection struct {
	ID            string           `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      string           `json:"tenant_id" gorm:"not null;uniqueIndex"`
	ShopDomain    string           `json:"shop_domain" gorm:"not null"`
	AccessToken   string           `json:"-" gorm:"not null"`
	Scope         string           `json:"scope"`
	SyncStatus    ConnectionStatus `json:"sync_status" gorm:"not null;default:PENDING"`
	SyncStartedAt *time.Time       `json:"sync_started_at"`
	LastSyncedAt  *time.Time       `json:"last_synced_at"`
	ProductCount  int64            `json:"product_count"`
	CustomerCount int64            `json:"customer_count"`
	OrderCount    int64            `json:"order_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type ConnectionStatus string

const (
	ConnectionStatusPending   ConnectionStatus = "PENDING"
	ConnectionStatusSyncing   ConnectionStatus = "SYNCING"
	ConnectionStatusCompleted ConnectionStatus = "COMPLETED"
	ConnectionStatusFailed    ConnectionStatus = "FAILED"
)

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// OAuthState is the CSRF nonce issued when an install starts. It is consumed
// exactly once by the callback.
type OAuthState struct {
	Nonce      string    `json:"nonce" gorm:"primaryKey"`
	TenantID   string    `json:"tenant_id" gorm:"not null;index"`
	ShopDomain string    `json:"shop_domain" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (OAuthState) TableName() string {
	return "oauth_states"
}
