package models

import (
	"time"
)

// PlatformTikTok is the only marketplace platform currently wired in.
const PlatformTikTok = "tiktok"

// Account is one connected marketplace shop. Accounts are deactivated on
// disconnect, never deleted, because historical orders reference them.
type Account struct {
	ID             uint   `json:"id" gorm:"primarykey"`
	Platform       string `json:"platform" gorm:"size:32;not null;uniqueIndex:idx_accounts_platform_shop,priority:1"`
	ExternalShopID string `json:"external_shop_id" gorm:"size:64;not null;uniqueIndex:idx_accounts_platform_shop,priority:2"`
	// ProviderAccountID is the seller/account id as reported by the provider.
	// Historical rows sometimes carry the shop id here instead, so conflict
	// checks consult both keys.
	ProviderAccountID string                 `json:"provider_account_id" gorm:"size:64;index"`
	Name              string                 `json:"name" gorm:"size:255"`
	Currency          string                 `json:"currency" gorm:"size:8"`
	Region            string                 `json:"region" gorm:"size:8"`
	Metadata          map[string]interface{} `json:"metadata" gorm:"serializer:json;type:text"`
	IsActive          bool                   `json:"is_active" gorm:"default:true"`
	AutoSyncOrders    bool                   `json:"auto_sync_orders" gorm:"default:true"`
	AutoSyncProducts  bool                   `json:"auto_sync_products" gorm:"default:false"`
	LastOrderSyncAt   *time.Time             `json:"last_order_sync_at"`
	LastProductSyncAt *time.Time             `json:"last_product_sync_at"`
	LastSyncSummary   map[string]interface{} `json:"last_sync_summary" gorm:"serializer:json;type:text"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ShopCipher returns the per-shop encryption context stored in metadata,
// or "" when the provider did not supply one.
func (a *Account) ShopCipher() string {
	if a.Metadata == nil {
		return ""
	}
	if v, ok := a.Metadata["shop_cipher"].(string); ok {
		return v
	}
	return ""
}
