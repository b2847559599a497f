package repository

import (
	"context"
	"fmt"

	"storelens/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	tenantKey  = []clause.Column{{Name: "tenant_id"}, {Name: "external_id"}}
	variantKey = []clause.Column{{Name: "product_id"}, {Name: "external_id"}}

	productColumns = []string{
		"title", "handle", "vendor", "product_type", "status", "tags", "price",
		"total_inventory", "published_at", "external_created_at", "external_updated_at", "updated_at",
	}
	variantColumns = []string{
		"title", "sku", "price", "compare_at_price", "inventory_quantity", "position", "updated_at",
	}
	customerColumns = []string{
		"email", "first_name", "last_name", "phone", "state", "tags", "currency",
		"total_spent", "orders_count", "external_created_at", "external_updated_at", "updated_at",
	}
	orderColumns = []string{
		"customer_id", "order_number", "name", "email", "financial_status", "fulfillment_status",
		"currency", "subtotal_price", "total_tax", "total_discounts", "total_price",
		"cancelled_at", "processed_at", "external_created_at", "external_updated_at", "updated_at",
	}
)

// UpsertProduct writes the product and its variants in one transaction and
// returns the local id. Variants missing from p are left untouched.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *p
		row.Variants = nil

		var err error
		id, err = upsertByTenant(tx, &row, &models.Product{}, p.TenantID, p.ExternalID, productColumns)
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ExternalID, err)
		}

		for i := range p.Variants {
			v := p.Variants[i]
			v.ProductID = id
			if err := upsertVariant(tx, &v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpsertVariant writes a single variant of an already persisted product.
func (s *Store) UpsertVariant(ctx context.Context, v *models.ProductVariant) error {
	return upsertVariant(s.db.WithContext(ctx), v)
}

func upsertVariant(tx *gorm.DB, v *models.ProductVariant) error {
	row := *v
	row.ID = ""
	err := tx.Clauses(clause.OnConflict{
		Columns:   variantKey,
		DoUpdates: clause.AssignmentColumns(variantColumns),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert variant %s: %w", v.ExternalID, err)
	}
	return nil
}

func (s *Store) UpsertCustomer(ctx context.Context, c *models.Customer) (string, error) {
	row := *c
	id, err := upsertByTenant(s.db.WithContext(ctx), &row, &models.Customer{}, c.TenantID, c.ExternalID, customerColumns)
	if err != nil {
		return "", fmt.Errorf("failed to upsert customer %s: %w", c.ExternalID, err)
	}
	return id, nil
}

// UpsertOrder writes the order header and replaces its line items in one
// transaction, so an order is never observed with a partial item set.
func (s *Store) UpsertOrder(ctx context.Context, o *models.Order, items []models.LineItem) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *o
		row.LineItems = nil

		var err error
		id, err = upsertByTenant(tx, &row, &models.Order{}, o.TenantID, o.ExternalID, orderColumns)
		if err != nil {
			return fmt.Errorf("failed to upsert order %s: %w", o.ExternalID, err)
		}
		return replaceLineItems(tx, id, items)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceLineItems deletes every line item of the order and inserts items.
func (s *Store) ReplaceLineItems(ctx context.Context, orderID string, items []models.LineItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceLineItems(tx, orderID, items)
	})
}

func replaceLineItems(tx *gorm.DB, orderID string, items []models.LineItem) error {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.LineItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete line items of order %s: %w", orderID, err)
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([]models.LineItem, len(items))
	for i, item := range items {
		item.ID = ""
		item.OrderID = orderID
		rows[i] = item
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert line items of order %s: %w", orderID, err)
	}
	return nil
}

// upsertByTenant inserts row or updates columns of the row already holding
// (tenantID, externalID), then reads back the surviving primary key. model
// is a zero value of row's type used for the read.
func upsertByTenant(tx *gorm.DB, row, model interface{}, tenantID, externalID string, columns []string) (string, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   tenantKey,
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
	if err != nil {
		return "", err
	}

	var id string
	err = tx.Model(model).
		Select("id").
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindProductIDs maps external ids to local ids. Unknown ids are absent.
func (s *Store) FindProductIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error) {
	return findIDs(s.db.WithContext(ctx), &models.Product{}, tenantID, externalIDs)
}

func (s *Store) FindCustomerIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error) {
	return findIDs(s.db.WithContext(ctx), &models.Customer{}, tenantID, externalIDs)
}

// FindProductID returns nil when the product was never synced.
func (s *Store) FindProductID(ctx context.Context, tenantID, externalID string) (*string, error) {
	return findID(s.db.WithContext(ctx), &models.Product{}, tenantID, externalID)
}

func (s *Store) FindCustomerID(ctx context.Context, tenantID, externalID string) (*string, error) {
	return findID(s.db.WithContext(ctx), &models.Customer{}, tenantID, externalID)
}

func findID(tx *gorm.DB, model interface{}, tenantID, externalID string) (*string, error) {
	ids, err := findIDs(tx, model, tenantID, []string{externalID})
	if err != nil {
		return nil, err
	}
	id, ok := ids[externalID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func findIDs(tx *gorm.DB, model interface{}, tenantID string, externalIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID         string
		ExternalID string
	}
	err := tx.Model(model).
		Select("id", "external_id").
		Where("tenant_id = ? AND external_id IN ?", tenantID, externalIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up ids: %w", err)
	}

	for _, r := range rows {
		out[r.ExternalID] = r.ID
	}
	return out, nil
}

// Count returns how many records of kind the tenant holds locally.
func (s *Store) Count(ctx context.Context, tenantID string, kind models.EntityKind) (int64, error) {
	var model interface{}
	switch kind {
	case models.EntityProducts:
		model = &models.Product{}
	case models.EntityCustomers:
		model = &models.Customer{}
	case models.EntityOrders:
		model = &models.Order{}
	default:
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}
