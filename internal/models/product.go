package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID                string           `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          string           `json:"tenant_id" gorm:"not null;uniqueIndex:idx_products_tenant_external"`
	ExternalID        string           `json:"external_id" gorm:"not null;uniqueIndex:idx_products_tenant_external"`
	Title             string           `json:"title" gorm:"not null"`
	Handle            string           `json:"handle"`
	Vendor            string           `json:"vendor"`
	ProductType       string           `json:"product_type"`
	Status            string           `json:"status"`
	Tags              string           `json:"tags"`
	Price             decimal.Decimal  `json:"price" gorm:"type:numeric(14,2)"`
	TotalInventory    int              `json:"total_inventory"`
	PublishedAt       *time.Time       `json:"published_at"`
	ExternalCreatedAt *time.Time       `json:"external_created_at"`
	ExternalUpdatedAt *time.Time       `json:"external_updated_at"`
	Variants          []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type ProductVariant struct {
	ID                string              `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID         string              `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_variants_product_external"`
	ExternalID        string              `json:"external_id" gorm:"not null;uniqueIndex:idx_variants_product_external"`
	Title             string              `json:"title"`
	SKU               string              `json:"sku"`
	Price             decimal.Decimal     `json:"price" gorm:"type:numeric(14,2)"`
	CompareAtPrice    decimal.NullDecimal `json:"compare_at_price" gorm:"type:numeric(14,2)"`
	InventoryQuantity int                 `json:"inventory_quantity"`
	Position          int                 `json:"position"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
