package tiktok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/crypto"
	"shopsync/internal/models"
	"shopsync/internal/repository"
	"shopsync/internal/repository/memstore"
	perrors "shopsync/pkg/errors"
)

func authFixture(t *testing.T, handler http.Handler) (*AuthManager, *memstore.Store, *repository.Repositories, fixedClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	cfg.TikTokAppKey = "app-key"
	cfg.TikTokAppSecret = "app-secret"
	cfg.TikTokAuthBase = srv.URL
	cfg.TikTokAPIBase = srv.URL
	cfg.TikTokRedirect = "http://localhost/callback"

	store, repos := memstore.New()
	return NewAuthManager(cfg, repos, crypto.Plain{}, clock, zap.NewNop()), store, repos, clock
}

func tokenHandler(accessToken, refreshToken string, expiresIn int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    0,
			"message": "success",
			"data": map[string]interface{}{
				"access_token":            accessToken,
				"refresh_token":           refreshToken,
				"access_token_expire_in":  expiresIn,
				"refresh_token_expire_in": int64(30 * 24 * 3600),
				"granted_scopes":          "order.read,product.read",
				"seller_name":             "Test Seller",
				"open_id":                 "seller-1",
			},
		})
	})
}

func TestAuthorizationURL(t *testing.T) {
	m, _, _, _ := authFixture(t, http.NotFoundHandler())

	url, state, err := m.AuthorizationURL("")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, url, "app_key=app-key")
	assert.Contains(t, url, "state="+state)

	_, state2, err := m.AuthorizationURL("fixed-state")
	require.NoError(t, err)
	assert.Equal(t, "fixed-state", state2)
}

func TestExchangeCode(t *testing.T) {
	m, _, _, _ := authFixture(t, tokenHandler("access-1", "refresh-1", 86400))

	bundle, err := m.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", bundle.AccessToken)
	assert.Equal(t, "refresh-1", bundle.RefreshToken)
	assert.Equal(t, int64(86400), bundle.ExpiresIn)
	assert.Equal(t, "Test Seller", bundle.SellerName)
	assert.Equal(t, "seller-1", bundle.SellerID)
}

func TestExchangeCodeMissingToken(t *testing.T) {
	m, _, _, _ := authFixture(t, tokenHandler("", "", 0))

	_, err := m.ExchangeCode(context.Background(), "auth-code")
	require.Error(t, err)
	var authErr *perrors.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestCreateOrUpdateAccount(t *testing.T) {
	m, _, repos, _ := authFixture(t, tokenHandler("access-1", "refresh-1", 86400))
	bundle, err := m.ExchangeCode(context.Background(), "code")
	require.NoError(t, err)

	shop := ShopInfo{ID: "shop-1", Name: "My Shop", Region: "AU", Cipher: "cipher-1"}
	account, err := m.CreateOrUpdateAccount(context.Background(), bundle, shop)
	require.NoError(t, err)
	assert.Equal(t, "shop-1", account.ExternalShopID)
	assert.Equal(t, "My Shop", account.Name)
	assert.Equal(t, "seller-1", account.ProviderAccountID)
	assert.True(t, account.AutoSyncOrders)
	assert.False(t, account.AutoSyncProducts)
	assert.Equal(t, "cipher-1", account.ShopCipher())
	assert.Equal(t, "AUD", account.Currency)

	cred, err := repos.Credential.ActiveByAccount(context.Background(), account.ID, models.CredentialTypeOAuth)
	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.True(t, cred.IsActive)

	// Reconnecting the same shop reuses the account and rotates the
	// credential.
	again, err := m.CreateOrUpdateAccount(context.Background(), bundle, shop)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
	fresh, err := repos.Credential.ActiveByAccount(context.Background(), account.ID, models.CredentialTypeOAuth)
	require.NoError(t, err)
	assert.NotEqual(t, cred.ID, fresh.ID)
}

func TestAccountCurrencyFromRegion(t *testing.T) {
	m, _, _, _ := authFixture(t, tokenHandler("access-1", "refresh-1", 86400))
	bundle, err := m.ExchangeCode(context.Background(), "code")
	require.NoError(t, err)

	account, err := m.CreateOrUpdateAccount(context.Background(), bundle, ShopInfo{ID: "shop-gb", Region: "GB"})
	require.NoError(t, err)
	assert.Equal(t, "GBP", account.Currency)

	// Unknown regions settle in USD.
	account, err = m.CreateOrUpdateAccount(context.Background(), bundle, ShopInfo{ID: "shop-xx", Region: "XX"})
	require.NoError(t, err)
	assert.Equal(t, "USD", account.Currency)
}

func TestLinkExistingAccountConflict(t *testing.T) {
	m, store, _, _ := authFixture(t, tokenHandler("access-1", "refresh-1", 86400))

	store.AddAccount(&models.Account{
		ID:             1,
		Platform:       models.PlatformTikTok,
		ExternalShopID: "shop-1",
		Name:           "Account A",
		IsActive:       true,
	})
	store.AddAccount(&models.Account{
		ID:             2,
		Platform:       models.PlatformTikTok,
		ExternalShopID: "other-shop",
		Name:           "Account B",
		IsActive:       true,
	})

	bundle := &TokenBundle{AccessToken: "access-1", ExpiresIn: 3600}
	_, err := m.LinkExistingAccount(context.Background(), 2, bundle, ShopInfo{ID: "shop-1", Name: "Shop"})
	require.Error(t, err)
	var authErr *perrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "Account A")
}

func TestNeedsTokenRefresh(t *testing.T) {
	m, store, _, clock := authFixture(t, http.NotFoundHandler())
	account := store.AddAccount(&models.Account{
		Platform:       models.PlatformTikTok,
		ExternalShopID: "shop-1",
		IsActive:       true,
	})

	// No credential at all.
	assert.True(t, m.NeedsTokenRefresh(context.Background(), account))

	soon := clock.t.Add(30 * time.Minute)
	cred := store.AddCredential(&models.Credential{
		AccountID:   account.ID,
		Type:        models.CredentialTypeOAuth,
		AccessToken: "token",
		ExpiresAt:   &soon,
		IsActive:    true,
	})
	assert.True(t, m.NeedsTokenRefresh(context.Background(), account))

	later := clock.t.Add(3 * time.Hour)
	cred.ExpiresAt = &later
	assert.False(t, m.NeedsTokenRefresh(context.Background(), account))

	past := clock.t.Add(-time.Minute)
	cred.ExpiresAt = &past
	assert.True(t, m.NeedsTokenRefresh(context.Background(), account))
	assert.True(t, m.CredentialExpired(context.Background(), account))
}

func TestRefreshTokenRotates(t *testing.T) {
	// Provider omits the refresh token on rotation; the old one is kept.
	m, store, repos, _ := authFixture(t, tokenHandler("access-2", "", 86400))
	account := store.AddAccount(&models.Account{
		Platform:       models.PlatformTikTok,
		ExternalShopID: "shop-1",
		IsActive:       true,
	})
	store.AddCredential(&models.Credential{
		AccountID:    account.ID,
		Type:         models.CredentialTypeOAuth,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		IsActive:     true,
	})

	assert.True(t, m.RefreshToken(context.Background(), account))

	cred, err := repos.Credential.ActiveByAccount(context.Background(), account.ID, models.CredentialTypeOAuth)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, 1, cred.RefreshCount)
	require.NotNil(t, cred.LastRefreshedAt)
	require.NotNil(t, cred.ExpiresAt)
}

func TestRefreshTokenSoftFailure(t *testing.T) {
	m, store, repos, _ := authFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	account := store.AddAccount(&models.Account{
		Platform:       models.PlatformTikTok,
		ExternalShopID: "shop-1",
		IsActive:       true,
	})
	store.AddCredential(&models.Credential{
		AccountID:    account.ID,
		Type:         models.CredentialTypeOAuth,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		IsActive:     true,
	})

	assert.False(t, m.RefreshToken(context.Background(), account))

	// The credential is untouched and still active.
	cred, err := repos.Credential.ActiveByAccount(context.Background(), account.ID, models.CredentialTypeOAuth)
	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.True(t, cred.IsActive)
}

func TestDisconnectAccountIdempotent(t *testing.T) {
	m, store, repos, _ := authFixture(t, http.NotFoundHandler())
	account := store.AddAccount(&models.Account{
		Platform:         models.PlatformTikTok,
		ExternalShopID:   "shop-1",
		IsActive:         true,
		AutoSyncOrders:   true,
		AutoSyncProducts: true,
	})
	store.AddCredential(&models.Credential{
		AccountID:   account.ID,
		Type:        models.CredentialTypeOAuth,
		AccessToken: "token",
		IsActive:    true,
	})

	require.NoError(t, m.DisconnectAccount(context.Background(), account))
	assert.False(t, account.IsActive)
	assert.False(t, account.AutoSyncOrders)
	assert.False(t, account.AutoSyncProducts)
	_, err := repos.Credential.ActiveByAccount(context.Background(), account.ID, models.CredentialTypeOAuth)
	require.Error(t, err)

	// A second disconnect is a no-op, not an error.
	require.NoError(t, m.DisconnectAccount(context.Background(), account))
}

func TestAuthorizedShops(t *testing.T) {
	m, _, _, _ := authFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/authorization/") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 0,
				"data": map[string]interface{}{
					"shops": []map[string]interface{}{
						{"id": "shop-1", "name": "My Shop", "region": "AU", "cipher": "c1"},
					},
				},
			})
			return
		}
		http.NotFound(w, r)
	}))

	shops, err := m.AuthorizedShops(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "shop-1", shops[0].ID)
	assert.Equal(t, "c1", shops[0].Cipher)
}

func TestAuthorizedShopsEmpty(t *testing.T) {
	m, _, _, _ := authFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "data": map[string]interface{}{}})
	}))

	shops, err := m.AuthorizedShops(context.Background(), "token")
	require.NoError(t, err)
	assert.Empty(t, shops)
}
