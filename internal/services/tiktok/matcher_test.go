package tiktok

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository/memstore"
)

func TestMatcherExactSKU(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, 1, ExternalProduct{
		ID:  "ext-1",
		SKU: "MUG-350",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, product.ID, *result.ProductID)
	assert.Equal(t, float64(100), result.Confidence)
	assert.Equal(t, "exact_sku", result.Reason)
	assert.True(t, ShouldAutoLink(result))
}

func TestMatcherVariantSKU(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{
		SKU: "SHIRT", Name: "T-Shirt", IsActive: true,
		Variants: []models.ProductVariant{{SKU: "SHIRT-L", Name: "T-Shirt Large"}},
	})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, 1, ExternalProduct{
		ID:  "ext-2",
		SKU: "SHIRT-L",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, product.ID, *result.ProductID)
	require.NotNil(t, result.VariantID)
	assert.Equal(t, "exact_variant_sku", result.Reason)
	assert.True(t, ShouldAutoLink(result))
}

func TestMatcherBarcode(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "KB-01", Name: "Keyboard", Barcode: "4006381333931", IsActive: true})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, 1, ExternalProduct{
		ID:      "ext-3",
		SKU:     "UNKNOWN-SKU",
		Barcode: "4006381333931",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, product.ID, *result.ProductID)
	assert.Equal(t, "barcode", result.Reason)
	assert.True(t, ShouldAutoLink(result))
}

func TestMatcherExistingMappingWins(t *testing.T) {
	store, repos := memstore.New()
	mapped := store.AddProduct(&models.Product{SKU: "OLD-SKU", Name: "Mapped Product", IsActive: true})
	store.AddProduct(&models.Product{SKU: "EXT-SKU", Name: "Other Product", IsActive: true})
	accountID := uint(1)
	store.AddMapping(&models.SkuMapping{
		Platform:    models.PlatformTikTok,
		AccountID:   &accountID,
		ExternalSKU: "EXT-SKU",
		ProductID:   &mapped.ID,
		IsActive:    true,
	})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, accountID, ExternalProduct{
		ID:  "ext-4",
		SKU: "EXT-SKU",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	// The prior mapping beats the exact catalog SKU hit.
	assert.Equal(t, mapped.ID, *result.ProductID)
	assert.Equal(t, "existing_mapping", result.Reason)
}

func TestMatcherSkuLessProductIgnoresSkuLessMapping(t *testing.T) {
	store, repos := memstore.New()
	cup := store.AddProduct(&models.Product{SKU: "CUP-1", Name: "Cup", Barcode: "1111111111111", IsActive: true})
	plate := store.AddProduct(&models.Product{SKU: "PLT-1", Name: "Plate", Barcode: "2222222222222", IsActive: true})
	accountID := uint(1)
	// A prior barcode auto-link of a SKU-less product left this row behind.
	store.AddMapping(&models.SkuMapping{
		Platform:          models.PlatformTikTok,
		AccountID:         &accountID,
		ExternalSKU:       "",
		ExternalProductID: "ext-a",
		ProductID:         &cup.ID,
		IsActive:          true,
	})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, accountID, ExternalProduct{
		ID:      "ext-b",
		Barcode: "2222222222222",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, plate.ID, *result.ProductID)
	assert.Equal(t, "barcode", result.Reason)
}

func TestMatcherNameSimilarityNeverAutoLinks(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{
		SKU: "GDT-1", Name: "Amazing Gadget Pro", IsActive: true,
		Price: decimal.NewFromFloat(29.99),
	})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, 1, ExternalProduct{
		ID:    "ext-5",
		SKU:   "NO-SUCH-SKU",
		Name:  "The Amazing Gadget Pro - FREE Shipping!",
		Price: 29.99,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, product.ID, *result.ProductID)
	assert.Equal(t, "name_similarity", result.Reason)
	assert.False(t, result.AutoLink)
	assert.False(t, ShouldAutoLink(result))
	assert.True(t, ShouldSuggest(result))
	// The price boost never certifies an auto-link.
	assert.LessOrEqual(t, result.Confidence, float64(90))
}

func TestMatcherNameBelowThreshold(t *testing.T) {
	store, repos := memstore.New()
	store.AddProduct(&models.Product{SKU: "BTL-1", Name: "Stainless Water Bottle", IsActive: true})

	m := NewMatcher(repos, 0.80, zap.NewNop())
	result, err := m.Match(context.Background(), models.PlatformTikTok, 1, ExternalProduct{
		ID:   "ext-6",
		SKU:  "NO-SUCH-SKU",
		Name: "Leather Wallet",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestShouldAutoLinkGates(t *testing.T) {
	assert.False(t, ShouldAutoLink(nil))
	assert.False(t, ShouldAutoLink(&MatchResult{Confidence: 100, AutoLink: false}))
	assert.False(t, ShouldAutoLink(&MatchResult{Confidence: 95, AutoLink: true}))
	assert.True(t, ShouldAutoLink(&MatchResult{Confidence: 100, AutoLink: true}))
}
