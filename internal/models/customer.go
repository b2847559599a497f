package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer carries the upstream aggregates (TotalSpent, OrdersCount) as
// snapshots; they are never recomputed locally.
type Customer struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          string          `json:"tenant_id" gorm:"not null;uniqueIndex:idx_customers_tenant_external"`
	ExternalID        string          `json:"external_id" gorm:"not null;uniqueIndex:idx_customers_tenant_external"`
	Email             string          `json:"email"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Phone             string          `json:"phone"`
	State             string          `json:"state"`
	Tags              string          `json:"tags"`
	Currency          string          `json:"currency"`
	TotalSpent        decimal.Decimal `json:"total_spent" gorm:"type:numeric(14,2)"`
	OrdersCount       int             `json:"orders_count"`
	ExternalCreatedAt *time.Time      `json:"external_created_at"`
	ExternalUpdatedAt *time.Time      `json:"external_updated_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
