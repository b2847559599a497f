package shopify

import (
	"strconv"
	"time"

	"storelens/internal/models"

	"github.com/shopspring/decimal"
)

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// ExternalID renders an upstream numeric id the way it is stored locally.
func ExternalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// TransformProduct converts a Shopify product to our canonical format. The
// product price is the price of its primary variant (position 1, else the
// first listed).
func (t *Transformer) TransformProduct(tenantID string, p *Product) *models.Product {
	product := &models.Product{
		TenantID:          tenantID,
		ExternalID:        ExternalID(p.ID),
		Title:             p.Title,
		Handle:            p.Handle,
		Vendor:            p.Vendor,
		ProductType:       p.ProductType,
		Status:            p.Status,
		Tags:              p.Tags,
		Price:             decimal.Zero,
		PublishedAt:       p.PublishedAt,
		ExternalCreatedAt: timePtr(p.CreatedAt),
		ExternalUpdatedAt: timePtr(p.UpdatedAt),
	}

	if primary := primaryVariant(p.Variants); primary != nil {
		product.Price = primary.Price
	}

	product.Variants = make([]models.ProductVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		product.TotalInventory += v.InventoryQuantity
		product.Variants = append(product.Variants, t.TransformVariant(&v))
	}

	return product
}

// TransformVariant leaves ProductID unset; the caller assigns it once the
// parent row exists.
func (t *Transformer) TransformVariant(v *Variant) models.ProductVariant {
	return models.ProductVariant{
		ExternalID:        ExternalID(v.ID),
		Title:             v.Title,
		SKU:               v.Sku,
		Price:             v.Price,
		CompareAtPrice:    v.CompareAtPrice,
		InventoryQuantity: v.InventoryQuantity,
		Position:          v.Position,
	}
}

func (t *Transformer) TransformCustomer(tenantID string, c *Customer) *models.Customer {
	return &models.Customer{
		TenantID:          tenantID,
		ExternalID:        ExternalID(c.ID),
		Email:             c.Email,
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Phone:             c.Phone,
		State:             c.State,
		Tags:              c.Tags,
		Currency:          c.Currency,
		TotalSpent:        c.TotalSpent,
		OrdersCount:       c.OrdersCount,
		ExternalCreatedAt: timePtr(c.CreatedAt),
		ExternalUpdatedAt: timePtr(c.UpdatedAt),
	}
}

// TransformOrder maps the order header only. Customer and line item
// references are resolved against local rows by the synchronizer.
func (t *Transformer) TransformOrder(tenantID string, o *Order) *models.Order {
	order := &models.Order{
		TenantID:          tenantID,
		ExternalID:        ExternalID(o.ID),
		OrderNumber:       o.OrderNumber,
		Name:              o.Name,
		Email:             o.Email,
		FinancialStatus:   o.FinancialStatus,
		Currency:          o.Currency,
		SubtotalPrice:     o.SubtotalPrice,
		TotalTax:          o.TotalTax,
		TotalDiscounts:    o.TotalDiscounts,
		TotalPrice:        o.TotalPrice,
		CancelledAt:       o.CancelledAt,
		ProcessedAt:       o.ProcessedAt,
		ExternalCreatedAt: timePtr(o.CreatedAt),
		ExternalUpdatedAt: timePtr(o.UpdatedAt),
	}
	if o.FulfillmentStatus != nil {
		order.FulfillmentStatus = *o.FulfillmentStatus
	}
	return order
}

func (t *Transformer) TransformLineItem(li *LineItem) models.LineItem {
	item := models.LineItem{
		ExternalID:    ExternalID(li.ID),
		Title:         li.Title,
		VariantTitle:  li.VariantTitle,
		SKU:           li.Sku,
		Quantity:      li.Quantity,
		Price:         li.Price,
		TotalDiscount: li.TotalDiscount,
	}
	if li.VariantID != nil {
		item.VariantExternalID = ExternalID(*li.VariantID)
	}
	return item
}

func primaryVariant(variants []Variant) *Variant {
	for i := range variants {
		if variants[i].Position == 1 {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[0]
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
