package shopify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a Shopify product
type Product struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	BodyHTML    string     `json:"body_html"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Handle      string     `json:"handle"`
	Status      string     `json:"status"`
	Tags        string     `json:"tags"`
	Variants    []Variant  `json:"variants"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// Variant represents a product variant
type Variant struct {
	ID                int64               `json:"id"`
	ProductID         int64               `json:"product_id"`
	Title             string              `json:"title"`
	Price             decimal.Decimal     `json:"price"`
	CompareAtPrice    decimal.NullDecimal `json:"compare_at_price"`
	Sku               string              `json:"sku"`
	Position          int                 `json:"position"`
	InventoryQuantity int                 `json:"inventory_quantity"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Customer represents a Shopify customer
type Customer struct {
	ID          int64           `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Phone       string          `json:"phone"`
	State       string          `json:"state"`
	Tags        string          `json:"tags"`
	Currency    string          `json:"currency"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	OrdersCount int             `json:"orders_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Order represents a Shopify order. Customer is null for guest checkouts.
type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       int64           `json:"order_number"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus *string         `json:"fulfillment_status"`
	Currency          string          `json:"currency"`
	SubtotalPrice     decimal.Decimal `json:"subtotal_price"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	TotalDiscounts    decimal.Decimal `json:"total_discounts"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Customer          *OrderCustomer  `json:"customer"`
	LineItems         []LineItem      `json:"line_items"`
	CancelledAt       *time.Time      `json:"cancelled_at"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type OrderCustomer struct {
	ID int64 `json:"id"`
}

// LineItem is one row of an order. ProductID and VariantID are null for
// custom items and for products deleted since the order was placed.
type LineItem struct {
	ID            int64           `json:"id"`
	ProductID     *int64          `json:"product_id"`
	VariantID     *int64          `json:"variant_id"`
	Title         string          `json:"title"`
	VariantTitle  string          `json:"variant_title"`
	Sku           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

type ProductsResponse struct {
	Products []Product `json:"products"`
}

type CustomersResponse struct {
	Customers []Customer `json:"customers"`
}

type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// ProductPage is one page of products plus the cursor for the next one.
// NextCursor is empty on the last page.
type ProductPage struct {
	Products   []Product
	NextCursor string
}

type CustomerPage struct {
	Customers  []Customer
	NextCursor string
}

type OrderPage struct {
	Orders     []Order
	NextCursor string
}
