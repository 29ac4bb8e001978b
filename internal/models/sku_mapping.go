package models

import "time"

// SkuMapping links one (platform, account-or-global, external SKU) triple to
// exactly one of an internal product (optionally a variant) or a package.
// ProductID and PackageID are mutually exclusive for an active mapping.
// Mappings are never deleted; they become inactive.
type SkuMapping struct {
	ID       uint   `json:"id" gorm:"primarykey"`
	Platform string `json:"platform" gorm:"size:32;not null;uniqueIndex:idx_sku_mappings_key,priority:1"`
	// AccountID nil means the mapping is global to the platform.
	AccountID         *uint                  `json:"account_id" gorm:"uniqueIndex:idx_sku_mappings_key,priority:2"`
	ExternalSKU       string                 `json:"external_sku" gorm:"size:128;not null;uniqueIndex:idx_sku_mappings_key,priority:3"`
	ExternalProductID string                 `json:"external_product_id" gorm:"size:64;index"`
	ProductID         *uint                  `json:"product_id" gorm:"index"`
	VariantID         *uint                  `json:"variant_id"`
	PackageID         *uint                  `json:"package_id" gorm:"index"`
	MatchConfidence   float64                `json:"match_confidence"`
	MatchReason       string                 `json:"match_reason" gorm:"size:64"`
	Metadata          map[string]interface{} `json:"metadata" gorm:"serializer:json;type:text"`
	IsActive          bool                   `json:"is_active" gorm:"default:true;index"`
	UseCount          int                    `json:"use_count" gorm:"default:0"`
	LastUsedAt        *time.Time             `json:"last_used_at"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// Valid reports whether exactly one of product or package is set.
func (m *SkuMapping) Valid() bool {
	return (m.ProductID != nil) != (m.PackageID != nil)
}
