package models

import "time"

type PendingProductStatus string

const (
	PendingStatusPending  PendingProductStatus = "pending"
	PendingStatusLinked   PendingProductStatus = "linked"
	PendingStatusCreated  PendingProductStatus = "created"
	PendingStatusRejected PendingProductStatus = "rejected"
)

// PendingProduct is a review-queue item for an external product that could
// not be auto-linked above the confidence threshold. A row with status
// "linked" but no suggestion target is an orphan; the backfill tool detects
// and optionally resets those.
type PendingProduct struct {
	ID                 uint                   `json:"id" gorm:"primarykey"`
	AccountID          uint                   `json:"account_id" gorm:"not null;uniqueIndex:idx_pending_products_key,priority:1"`
	ExternalProductID  string                 `json:"external_product_id" gorm:"size:64;not null;uniqueIndex:idx_pending_products_key,priority:2"`
	ExternalSKU        string                 `json:"external_sku" gorm:"size:128;index"`
	Name               string                 `json:"name" gorm:"size:512"`
	SuggestedProductID *uint                  `json:"suggested_product_id"`
	SuggestedVariantID *uint                  `json:"suggested_variant_id"`
	SuggestedPackageID *uint                  `json:"suggested_package_id"`
	MatchConfidence    float64                `json:"match_confidence"`
	MatchReason        string                 `json:"match_reason" gorm:"size:64"`
	Status             PendingProductStatus   `json:"status" gorm:"size:16;default:pending;index"`
	Payload            map[string]interface{} `json:"payload" gorm:"serializer:json;type:text"`
	ReviewedAt         *time.Time             `json:"reviewed_at"`
	ReviewedBy         *uint                  `json:"reviewed_by"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// Orphaned reports a linked row that lost its suggestion target.
func (p *PendingProduct) Orphaned() bool {
	return p.Status == PendingStatusLinked &&
		p.SuggestedProductID == nil && p.SuggestedPackageID == nil
}
