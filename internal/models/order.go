package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          string          `json:"tenant_id" gorm:"not null;uniqueIndex:idx_orders_tenant_external"`
	ExternalID        string          `json:"external_id" gorm:"not null;uniqueIndex:idx_orders_tenant_external"`
	CustomerID        *string         `json:"customer_id" gorm:"type:uuid;index"`
	OrderNumber       int64           `json:"order_number"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	Currency          string          `json:"currency"`
	SubtotalPrice     decimal.Decimal `json:"subtotal_price" gorm:"type:numeric(14,2)"`
	TotalTax          decimal.Decimal `json:"total_tax" gorm:"type:numeric(14,2)"`
	TotalDiscounts    decimal.Decimal `json:"total_discounts" gorm:"type:numeric(14,2)"`
	TotalPrice        decimal.Decimal `json:"total_price" gorm:"type:numeric(14,2)"`
	CancelledAt       *time.Time      `json:"cancelled_at"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	ExternalCreatedAt *time.Time      `json:"external_created_at"`
	ExternalUpdatedAt *time.Time      `json:"external_updated_at"`
	LineItems         []LineItem      `json:"line_items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LineItem has no identity across syncs: every sync deletes an order's line
// items and inserts the latest set. ProductID and CustomerID stay nil when the
// referenced record was never synced.
type LineItem struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID           string          `json:"order_id" gorm:"type:uuid;not null;index"`
	ExternalID        string          `json:"external_id"`
	ProductID         *string         `json:"product_id" gorm:"type:uuid"`
	CustomerID        *string         `json:"customer_id" gorm:"type:uuid"`
	VariantExternalID string          `json:"variant_external_id"`
	Title             string          `json:"title"`
	VariantTitle      string          `json:"variant_title"`
	SKU               string          `json:"sku"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(14,2)"`
	TotalDiscount     decimal.Decimal `json:"total_discount" gorm:"type:numeric(14,2)"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

func (li *LineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == "" {
		li.ID = uuid.New().String()
	}
	return nil
}
