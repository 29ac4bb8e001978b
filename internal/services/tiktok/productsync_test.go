package tiktok

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/crypto"
	"shopsync/internal/models"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	"shopsync/internal/repository/memstore"
)

type productFixture struct {
	store   *memstore.Store
	repos   *repository.Repositories
	account *models.Account
	engine  *ProductSyncEngine
}

func newProductFixture(t *testing.T, api API) *productFixture {
	t.Helper()
	store, repos := memstore.New()
	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	account := store.AddAccount(&models.Account{
		Platform:       models.PlatformTikTok,
		ExternalShopID: "shop-1",
		IsActive:       true,
	})
	expires := clock.t.Add(12 * time.Hour)
	store.AddCredential(&models.Credential{
		AccountID:   account.ID,
		Type:        models.CredentialTypeOAuth,
		AccessToken: "token",
		ExpiresAt:   &expires,
		IsActive:    true,
	})

	cfg := testConfig()
	log := zap.NewNop()
	auth := NewAuthManager(cfg, repos, crypto.Plain{}, clock, log)
	matcher := NewMatcher(repos, cfg.MatchThreshold, log)
	tracker := progress.NewTracker(progress.NewMemoryStore())
	engine := NewProductSyncEngine(cfg, repos, fakeProvider{api: api}, auth, matcher, tracker, clock, log)

	return &productFixture{store: store, repos: repos, account: account, engine: engine}
}

func productPayload(id, sku, barcode, name string) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"title": name,
		"skus": []interface{}{
			map[string]interface{}{
				"seller_sku": sku,
				"barcode":    barcode,
				"price": map[string]interface{}{
					"sale_price": "19.99",
				},
			},
		},
	}
}

func TestSyncProductsAutoLinksByBarcode(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-1", "TT-MUG", "4006381333931", "Ceramic Mug"),
	}}}}
	f := newProductFixture(t, api)
	product := f.store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Mug", Barcode: "4006381333931", IsActive: true})

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoLinked)
	assert.Equal(t, 0, result.Queued)

	mapping, err := f.repos.SkuMapping.ActiveBySKU(context.Background(), models.PlatformTikTok, f.account.ID, "TT-MUG")
	require.NoError(t, err)
	require.NotNil(t, mapping.ProductID)
	assert.Equal(t, product.ID, *mapping.ProductID)
	assert.Equal(t, "barcode", mapping.MatchReason)

	// Second run counts it as already linked.
	api.productCalls = 0
	result, err = f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlreadyLinked)
	assert.Equal(t, 0, result.AutoLinked)
}

func TestSyncProductsQueuesFuzzyMatch(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-2", "TT-GADGET", "", "The Amazing Gadget Pro - FREE Shipping!"),
	}}}}
	f := newProductFixture(t, api)
	product := f.store.AddProduct(&models.Product{SKU: "GDT-1", Name: "Amazing Gadget Pro", IsActive: true})

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 0, result.AutoLinked)
	assert.Equal(t, 1, result.Queued)

	pending, err := f.repos.PendingProduct.GetByExternalID(context.Background(), f.account.ID, "ext-2")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusPending, pending.Status)
	require.NotNil(t, pending.SuggestedProductID)
	assert.Equal(t, product.ID, *pending.SuggestedProductID)
	assert.Equal(t, "name_similarity", pending.MatchReason)
}

func TestSyncProductsQueuesWithoutSuggestion(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-3", "TT-NEW", "", "Completely Unrelated Thing"),
	}}}}
	f := newProductFixture(t, api)

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)

	pending, err := f.repos.PendingProduct.GetByExternalID(context.Background(), f.account.ID, "ext-3")
	require.NoError(t, err)
	assert.Nil(t, pending.SuggestedProductID)
	assert.Zero(t, pending.MatchConfidence)
}

func TestSyncProductsSkipsEmptyPayload(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		{"id": "ext-4"},
		{"title": "no id"},
	}}}}
	f := newProductFixture(t, api)

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
}

func TestSyncProductsRejectedRowStaysRejected(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-5", "TT-X", "", "Some Product"),
	}}}}
	f := newProductFixture(t, api)
	require.NoError(t, f.repos.PendingProduct.Upsert(context.Background(), &models.PendingProduct{
		AccountID:         f.account.ID,
		ExternalProductID: "ext-5",
		ExternalSKU:       "TT-X",
		Status:            models.PendingStatusRejected,
	}))

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	pending, err := f.repos.PendingProduct.GetByExternalID(context.Background(), f.account.ID, "ext-5")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusRejected, pending.Status)
}

func TestSyncProductsResolvesPendingOnAutoLink(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-6", "MUG-350", "", "Ceramic Mug"),
	}}}}
	f := newProductFixture(t, api)
	product := f.store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	require.NoError(t, f.repos.PendingProduct.Upsert(context.Background(), &models.PendingProduct{
		AccountID:         f.account.ID,
		ExternalProductID: "ext-6",
		ExternalSKU:       "MUG-350",
		Status:            models.PendingStatusPending,
	}))

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoLinked)

	pending, err := f.repos.PendingProduct.GetByExternalID(context.Background(), f.account.ID, "ext-6")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusLinked, pending.Status)
	require.NotNil(t, pending.SuggestedProductID)
	assert.Equal(t, product.ID, *pending.SuggestedProductID)
}

func TestSyncProductsSkuLessProductsLinkIndependently(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-a", "", "1111111111111", "Cup"),
		productPayload("ext-b", "", "2222222222222", "Plate"),
	}}}}
	f := newProductFixture(t, api)
	cup := f.store.AddProduct(&models.Product{SKU: "CUP-1", Name: "Cup", Barcode: "1111111111111", IsActive: true})
	plate := f.store.AddProduct(&models.Product{SKU: "PLT-1", Name: "Plate", Barcode: "2222222222222", IsActive: true})

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AutoLinked)

	mappingA, err := f.repos.SkuMapping.ActiveByExternalProductID(context.Background(), models.PlatformTikTok, f.account.ID, "ext-a")
	require.NoError(t, err)
	require.NotNil(t, mappingA.ProductID)
	assert.Equal(t, cup.ID, *mappingA.ProductID)
	assert.Equal(t, "barcode", mappingA.MatchReason)

	mappingB, err := f.repos.SkuMapping.ActiveByExternalProductID(context.Background(), models.PlatformTikTok, f.account.ID, "ext-b")
	require.NoError(t, err)
	require.NotNil(t, mappingB.ProductID)
	assert.Equal(t, plate.ID, *mappingB.ProductID)
	assert.Equal(t, "barcode", mappingB.MatchReason)
}

func TestSyncProductsSkuMappingCountsAsAlreadyLinked(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-new", "TT-MUG", "", "Ceramic Mug"),
	}}}}
	f := newProductFixture(t, api)
	product := f.store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	accountID := f.account.ID
	require.NoError(t, f.repos.SkuMapping.Upsert(context.Background(), &models.SkuMapping{
		Platform:          models.PlatformTikTok,
		AccountID:         &accountID,
		ExternalSKU:       "TT-MUG",
		ExternalProductID: "ext-old",
		ProductID:         &product.ID,
		MatchConfidence:   88,
		MatchReason:       "manual_review",
		IsActive:          true,
	}))

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlreadyLinked)
	assert.Equal(t, 0, result.AutoLinked)

	mapping, err := f.repos.SkuMapping.ActiveBySKU(context.Background(), models.PlatformTikTok, f.account.ID, "TT-MUG")
	require.NoError(t, err)
	assert.Equal(t, "manual_review", mapping.MatchReason)
	assert.Equal(t, 88.0, mapping.MatchConfidence)
}

func TestSyncProductsAlreadyLinkedSettlesPendingRow(t *testing.T) {
	api := &fakeAPI{productPages: []*ProductPage{{Products: []map[string]interface{}{
		productPayload("ext-7", "TT-Y", "", "Pitcher"),
	}}}}
	f := newProductFixture(t, api)
	product := f.store.AddProduct(&models.Product{SKU: "PIT-1", Name: "Pitcher", IsActive: true})
	accountID := f.account.ID
	require.NoError(t, f.repos.SkuMapping.Upsert(context.Background(), &models.SkuMapping{
		Platform:          models.PlatformTikTok,
		AccountID:         &accountID,
		ExternalSKU:       "TT-Y",
		ExternalProductID: "ext-7",
		ProductID:         &product.ID,
		MatchReason:       "manual_review",
		IsActive:          true,
	}))
	require.NoError(t, f.repos.PendingProduct.Upsert(context.Background(), &models.PendingProduct{
		AccountID:         f.account.ID,
		ExternalProductID: "ext-7",
		ExternalSKU:       "TT-Y",
		Status:            models.PendingStatusPending,
	}))

	result, err := f.engine.SyncProducts(context.Background(), f.account)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlreadyLinked)

	pending, err := f.repos.PendingProduct.GetByExternalID(context.Background(), f.account.ID, "ext-7")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusLinked, pending.Status)
	require.NotNil(t, pending.SuggestedProductID)
	assert.Equal(t, product.ID, *pending.SuggestedProductID)
	assert.NotNil(t, pending.ReviewedAt)
}

func TestExtractExternalProduct(t *testing.T) {
	ext := extractExternalProduct(productPayload("p-1", "SKU-1", "123456", "Widget"))
	assert.Equal(t, "p-1", ext.ID)
	assert.Equal(t, "SKU-1", ext.SKU)
	assert.Equal(t, "123456", ext.Barcode)
	assert.Equal(t, "Widget", ext.Name)
	assert.Equal(t, 19.99, ext.Price)

	bare := extractExternalProduct(map[string]interface{}{"id": "p-2", "seller_sku": "TOP"})
	assert.Equal(t, "TOP", bare.SKU)
}
