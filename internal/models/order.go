package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the canonical marketplace order record. Unique per
// (account, external order id).
type Order struct {
	ID              uint        `json:"id" gorm:"primarykey"`
	AccountID       uint        `json:"account_id" gorm:"not null;uniqueIndex:idx_orders_key,priority:1"`
	ExternalOrderID string      `json:"external_order_id" gorm:"size:64;not null;uniqueIndex:idx_orders_key,priority:2"`
	OrderNumber     string      `json:"order_number" gorm:"size:64;uniqueIndex"`
	Status          OrderStatus `json:"status" gorm:"size:32;default:pending;index"`
	CustomerName    string      `json:"customer_name" gorm:"size:255"`
	// CustomerPhone is always stored masked.
	CustomerPhone  string          `json:"customer_phone" gorm:"size:64"`
	Currency       string          `json:"currency" gorm:"size:8"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2)"`
	ShippingAmount decimal.Decimal `json:"shipping_amount" gorm:"type:decimal(12,2)"`
	PlacedAt       *time.Time      `json:"placed_at"`
	Items          []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Shippable reports whether the order is in a terminal state that makes
// its items eligible for stock deduction.
func (o *Order) Shippable() bool {
	return o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered
}

// OrderItem is a line item, unique within its order by external SKU.
type OrderItem struct {
	ID                uint            `json:"id" gorm:"primarykey"`
	OrderID           uint            `json:"order_id" gorm:"not null;uniqueIndex:idx_order_items_key,priority:1"`
	ExternalSKU       string          `json:"external_sku" gorm:"size:128;uniqueIndex:idx_order_items_key,priority:2"`
	ExternalProductID string          `json:"external_product_id" gorm:"size:64"`
	Name              string          `json:"name" gorm:"size:512"`
	Quantity          int             `json:"quantity" gorm:"default:1"`
	Price             decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	ProductID         *uint           `json:"product_id"`
	VariantID         *uint           `json:"variant_id"`
	PackageID         *uint           `json:"package_id"`
	WarehouseID       *uint           `json:"warehouse_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Linked reports whether the item resolves to an internal target.
func (i *OrderItem) Linked() bool {
	return i.ProductID != nil || i.PackageID != nil
}

// OrderEvent is an append-only audit note on an order.
type OrderEvent struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	OrderID   uint      `json:"order_id" gorm:"not null;index"`
	EventType string    `json:"event_type" gorm:"size:32;not null"`
	Message   string    `json:"message" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
