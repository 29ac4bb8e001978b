package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	IsDefault bool      `json:"is_default" gorm:"default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockLevel is the quantity on hand per (product, variant, warehouse).
// Negative quantities are permitted (back-orders) but flagged when written.
type StockLevel struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	ProductID   uint            `json:"product_id" gorm:"not null;uniqueIndex:idx_stock_levels_key,priority:1"`
	VariantID   *uint           `json:"variant_id" gorm:"uniqueIndex:idx_stock_levels_key,priority:2"`
	WarehouseID uint            `json:"warehouse_id" gorm:"not null;uniqueIndex:idx_stock_levels_key,priority:3"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// StockMovement is the append-only journal of quantity changes. An outbound
// movement exists at most once per (reference, product, variant, warehouse)
// tuple, which is what makes deduction idempotent under retries.
type StockMovement struct {
	ID            string            `json:"id" gorm:"size:36;primary_key"`
	ProductID     uint              `json:"product_id" gorm:"not null;index"`
	VariantID     *uint             `json:"variant_id"`
	WarehouseID   uint              `json:"warehouse_id" gorm:"not null;index"`
	Direction     MovementDirection `json:"direction" gorm:"size:8;not null"`
	Quantity      decimal.Decimal   `json:"quantity" gorm:"type:decimal(20,4);not null"`
	BeforeQty     decimal.Decimal   `json:"before_qty" gorm:"type:decimal(20,4)"`
	AfterQty      decimal.Decimal   `json:"after_qty" gorm:"type:decimal(20,4)"`
	ReferenceType string            `json:"reference_type" gorm:"size:32;index"`
	ReferenceID   uint              `json:"reference_id" gorm:"index"`
	Note          string            `json:"note" gorm:"type:text"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// ReferenceTypeOrderItem marks movements journaled against an order line.
const ReferenceTypeOrderItem = "order_item"
