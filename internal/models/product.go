package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an internal catalog product.
type Product struct {
	ID        uint             `json:"id" gorm:"primarykey"`
	SKU       string           `json:"sku" gorm:"size:128;uniqueIndex"`
	Name      string           `json:"name" gorm:"size:512;not null"`
	Barcode   string           `json:"barcode" gorm:"size:64;index"`
	Price     decimal.Decimal  `json:"price" gorm:"type:decimal(12,2)"`
	IsActive  bool             `json:"is_active" gorm:"default:true;index"`
	Variants  []ProductVariant `json:"variants" gorm:"foreignKey:ProductID"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ProductVariant struct {
	ID        uint            `json:"id" gorm:"primarykey"`
	ProductID uint            `json:"product_id" gorm:"not null;index"`
	SKU       string          `json:"sku" gorm:"size:128;index"`
	Barcode   string          `json:"barcode" gorm:"size:64;index"`
	Name      string          `json:"name" gorm:"size:512"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Package bundles several products sold as one unit.
type Package struct {
	ID        uint             `json:"id" gorm:"primarykey"`
	SKU       string           `json:"sku" gorm:"size:128;index"`
	Name      string           `json:"name" gorm:"size:512;not null"`
	IsActive  bool             `json:"is_active" gorm:"default:true"`
	Products  []PackageProduct `json:"products" gorm:"foreignKey:PackageID"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PackageProduct is the pivot between a package and a constituent product.
// Quantity is the per-unit multiplier applied to the order line quantity.
type PackageProduct struct {
	ID        uint  `json:"id" gorm:"primarykey"`
	PackageID uint  `json:"package_id" gorm:"not null;index"`
	ProductID uint  `json:"product_id" gorm:"not null"`
	VariantID *uint `json:"variant_id"`
	Quantity  int   `json:"quantity" gorm:"default:1"`
}
