package tiktok

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/crypto"
	"shopsync/internal/models"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

// TokenBundle is the result of a code exchange or refresh.
type TokenBundle struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64
	RefreshExpiresIn int64
	Scopes           string
	SellerName       string
	SellerID         string
}

// ShopInfo describes one shop an access token is authorized for.
type ShopInfo struct {
	ID         string
	Name       string
	Region     string
	Cipher     string
	SellerType string
}

// AuthManager owns the OAuth credential lifecycle: authorization URL,
// code exchange, refresh, account linking and disconnect.
type AuthManager struct {
	cfg        *config.Config
	repos      *repository.Repositories
	cipher     crypto.Cipher
	clock      Clock
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAuthManager(cfg *config.Config, repos *repository.Repositories, cipher crypto.Cipher, clock Clock, logger *zap.Logger) *AuthManager {
	return &AuthManager{
		cfg:    cfg,
		repos:  repos,
		cipher: cipher,
		clock:  clock,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// AuthorizationURL builds the provider redirect URL. When state is empty an
// unguessable one is generated.
func (m *AuthManager) AuthorizationURL(state string) (string, string, error) {
	if state == "" {
		var err error
		state, err = generateState()
		if err != nil {
			return "", "", fmt.Errorf("failed to generate state: %w", err)
		}
	}

	authURL := fmt.Sprintf(
		"%s/oauth/authorize?app_key=%s&state=%s&redirect_uri=%s",
		m.cfg.TikTokAuthBase,
		m.cfg.TikTokAppKey,
		state,
		url.QueryEscape(m.cfg.TikTokRedirect),
	)
	return authURL, state, nil
}

type tokenResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		AccessToken          string `json:"access_token"`
		RefreshToken         string `json:"refresh_token"`
		AccessTokenExpireIn  int64  `json:"access_token_expire_in"`
		RefreshTokenExpireIn int64  `json:"refresh_token_expire_in"`
		GrantedScopes        string `json:"granted_scopes"`
		SellerName           string `json:"seller_name"`
		SellerBaseRegion     string `json:"seller_base_region"`
		OpenID               string `json:"open_id"`
	} `json:"data"`
}

// ExchangeCode exchanges an authorization code for tokens.
func (m *AuthManager) ExchangeCode(ctx context.Context, code string) (*TokenBundle, error) {
	query := url.Values{}
	query.Set("app_key", m.cfg.TikTokAppKey)
	query.Set("app_secret", m.cfg.TikTokAppSecret)
	query.Set("auth_code", code)
	query.Set("grant_type", "authorized_code")

	bundle, err := m.tokenRequest(ctx, query)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func (m *AuthManager) tokenRequest(ctx context.Context, query url.Values) (*TokenBundle, error) {
	endpoint := m.cfg.TikTokAuthBase + "/api/v2/token/get?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("token request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("token request failed with status %d", resp.StatusCode)}
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("failed to parse token response: %v", err)}
	}
	if tokenResp.Data.AccessToken == "" {
		return nil, &perrors.AuthError{Message: "provider response did not include an access token"}
	}

	return &TokenBundle{
		AccessToken:      tokenResp.Data.AccessToken,
		RefreshToken:     tokenResp.Data.RefreshToken,
		ExpiresIn:        tokenResp.Data.AccessTokenExpireIn,
		RefreshExpiresIn: tokenResp.Data.RefreshTokenExpireIn,
		Scopes:           tokenResp.Data.GrantedScopes,
		SellerName:       tokenResp.Data.SellerName,
		SellerID:         tokenResp.Data.OpenID,
	}, nil
}

// AuthorizedShops lists the shops a token can act on. A response without a
// shops array is an empty list, not an error.
func (m *AuthManager) AuthorizedShops(ctx context.Context, accessToken string) ([]ShopInfo, error) {
	query := url.Values{}
	query.Set("app_key", m.cfg.TikTokAppKey)
	endpoint := m.cfg.TikTokAPIBase + "/authorization/202309/shops?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-tts-access-token", accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("shop listing failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("shop listing failed with status %d", resp.StatusCode)}
	}

	var shopsResp struct {
		Code int `json:"code"`
		Data struct {
			Shops []struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				Region     string `json:"region"`
				Cipher     string `json:"cipher"`
				SellerType string `json:"seller_type"`
			} `json:"shops"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shopsResp); err != nil {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("failed to parse shop listing: %v", err)}
	}

	shops := make([]ShopInfo, 0, len(shopsResp.Data.Shops))
	for _, s := range shopsResp.Data.Shops {
		shops = append(shops, ShopInfo{
			ID:         s.ID,
			Name:       s.Name,
			Region:     s.Region,
			Cipher:     s.Cipher,
			SellerType: s.SellerType,
		})
	}
	return shops, nil
}

// CreateOrUpdateAccount upserts the account keyed by (platform, shop id) and
// stores the credentials in the same transaction. New accounts default to
// order sync on, product sync off.
func (m *AuthManager) CreateOrUpdateAccount(ctx context.Context, bundle *TokenBundle, shop ShopInfo) (*models.Account, error) {
	var account *models.Account
	err := m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Account.GetByPlatformShop(ctx, models.PlatformTikTok, shop.ID)
		if err != nil {
			var nf *perrors.NotFoundError
			if !errors.As(err, &nf) {
				return err
			}
			existing = &models.Account{
				Platform:         models.PlatformTikTok,
				ExternalShopID:   shop.ID,
				AutoSyncOrders:   true,
				AutoSyncProducts: false,
			}
		}
		m.applyShopInfo(existing, bundle, shop)
		if err := tx.Account.Save(ctx, existing); err != nil {
			return err
		}
		if err := m.storeCredential(ctx, tx, existing.ID, bundle); err != nil {
			return err
		}
		account = existing
		return nil
	})
	return account, err
}

// LinkExistingAccount attaches fresh tokens to a pre-existing account. It
// rejects the link when the shop already belongs to a different account,
// checked against both the shop id and the provider account id because
// historical rows were written inconsistently.
func (m *AuthManager) LinkExistingAccount(ctx context.Context, accountID uint, bundle *TokenBundle, shop ShopInfo) (*models.Account, error) {
	target, err := m.repos.Account.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if other, err := m.repos.Account.GetByPlatformShop(ctx, models.PlatformTikTok, shop.ID); err == nil && other.ID != accountID {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("shop %s is already linked to account %q", shop.ID, other.Name)}
	}
	if other, err := m.repos.Account.GetByProviderAccountID(ctx, models.PlatformTikTok, shop.ID); err == nil && other.ID != accountID {
		return nil, &perrors.AuthError{Message: fmt.Sprintf("shop %s is already linked to account %q", shop.ID, other.Name)}
	}

	err = m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		m.applyShopInfo(target, bundle, shop)
		if err := tx.Account.Save(ctx, target); err != nil {
			return err
		}
		return m.storeCredential(ctx, tx, target.ID, bundle)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// regionCurrencies maps seller base regions to their settlement currency.
var regionCurrencies = map[string]string{
	"AU": "AUD",
	"US": "USD",
	"GB": "GBP",
	"ID": "IDR",
	"MY": "MYR",
	"PH": "PHP",
	"SG": "SGD",
	"TH": "THB",
	"VN": "VND",
}

func (m *AuthManager) applyShopInfo(account *models.Account, bundle *TokenBundle, shop ShopInfo) {
	account.ExternalShopID = shop.ID
	if bundle.SellerID != "" {
		account.ProviderAccountID = bundle.SellerID
	}
	if shop.Name != "" {
		account.Name = shop.Name
	} else if bundle.SellerName != "" {
		account.Name = bundle.SellerName
	}
	account.Region = shop.Region
	if currency, ok := regionCurrencies[shop.Region]; ok {
		account.Currency = currency
	} else if account.Currency == "" {
		account.Currency = "USD"
	}
	account.IsActive = true
	if account.Metadata == nil {
		account.Metadata = map[string]interface{}{}
	}
	if shop.Cipher != "" {
		account.Metadata["shop_cipher"] = shop.Cipher
	}
	if shop.Region != "" {
		account.Metadata["region"] = shop.Region
	}
	account.Metadata["connected_via"] = "oauth"
}

// storeCredential deactivates prior credentials and creates the new one.
// Runs inside the caller's transaction.
func (m *AuthManager) storeCredential(ctx context.Context, tx *repository.Repositories, accountID uint, bundle *TokenBundle) error {
	if err := tx.Credential.DeactivateByAccount(ctx, accountID, models.CredentialTypeOAuth); err != nil {
		return err
	}

	encAccess, err := m.cipher.Encrypt(bundle.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh := ""
	if bundle.RefreshToken != "" {
		if encRefresh, err = m.cipher.Encrypt(bundle.RefreshToken); err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	now := m.clock.Now()
	expiresAt, fellBack := calculateExpiry(now, bundle.ExpiresIn)
	if fellBack {
		m.logger.Warn("provider expiry out of range, using 1-day default",
			zap.Uint("account_id", accountID), zap.Int64("expires_in", bundle.ExpiresIn))
	}
	cred := &models.Credential{
		AccountID:    accountID,
		Type:         models.CredentialTypeOAuth,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		ExpiresAt:    &expiresAt,
		Scopes:       bundle.Scopes,
		IsActive:     true,
		AutoRefresh:  true,
	}
	if bundle.RefreshExpiresIn > 0 {
		refreshExpiry, _ := calculateExpiry(now, bundle.RefreshExpiresIn)
		cred.RefreshExpiresAt = &refreshExpiry
	}
	return tx.Credential.Save(ctx, cred)
}

// RefreshToken rotates the account's access token. Failures are soft: the
// existing credential is left active so sync can still proceed against a
// token that has not technically expired yet.
func (m *AuthManager) RefreshToken(ctx context.Context, account *models.Account) bool {
	cred, err := m.repos.Credential.ActiveByAccount(ctx, account.ID, models.CredentialTypeOAuth)
	if err != nil {
		m.logger.Warn("no active credential to refresh", zap.Uint("account_id", account.ID))
		return false
	}
	if cred.RefreshToken == "" {
		m.logger.Warn("credential has no refresh token", zap.Uint("account_id", account.ID))
		return false
	}
	refreshToken, err := m.cipher.Decrypt(cred.RefreshToken)
	if err != nil {
		m.logger.Warn("failed to decrypt refresh token",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return false
	}

	query := url.Values{}
	query.Set("app_key", m.cfg.TikTokAppKey)
	query.Set("app_secret", m.cfg.TikTokAppSecret)
	query.Set("refresh_token", refreshToken)
	query.Set("grant_type", "refresh_token")

	bundle, err := m.tokenRequest(ctx, query)
	if err != nil {
		m.logger.Warn("token refresh rejected by provider",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return false
	}

	encAccess, err := m.cipher.Encrypt(bundle.AccessToken)
	if err != nil {
		m.logger.Error("failed to encrypt refreshed token",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return false
	}
	cred.AccessToken = encAccess
	// Providers may omit the refresh token on rotation; keep the old one.
	if bundle.RefreshToken != "" {
		encRefresh, err := m.cipher.Encrypt(bundle.RefreshToken)
		if err != nil {
			m.logger.Error("failed to encrypt rotated refresh token",
				zap.Uint("account_id", account.ID), zap.Error(err))
			return false
		}
		cred.RefreshToken = encRefresh
	}

	now := m.clock.Now()
	expiresAt, fellBack := calculateExpiry(now, bundle.ExpiresIn)
	if fellBack {
		m.logger.Warn("provider expiry out of range on refresh, using 1-day default",
			zap.Uint("account_id", account.ID), zap.Int64("expires_in", bundle.ExpiresIn))
	}
	cred.ExpiresAt = &expiresAt
	cred.RefreshCount++
	cred.LastRefreshedAt = &now

	if err := m.repos.Credential.Save(ctx, cred); err != nil {
		m.logger.Error("failed to persist refreshed credential",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return false
	}
	return true
}

// NeedsTokenRefresh is deliberately narrow so valid ~24h tokens are not
// refreshed prematurely: true only when no credential exists, the token is
// expired, or it expires within the configured horizon.
func (m *AuthManager) NeedsTokenRefresh(ctx context.Context, account *models.Account) bool {
	cred, err := m.repos.Credential.ActiveByAccount(ctx, account.ID, models.CredentialTypeOAuth)
	if err != nil {
		return true
	}
	now := m.clock.Now()
	return cred.Expired(now) || cred.ExpiresWithin(now, m.cfg.TokenRefreshHorizon)
}

// CredentialExpired reports whether the active credential has already passed
// its expiry. A missing credential counts as expired.
func (m *AuthManager) CredentialExpired(ctx context.Context, account *models.Account) bool {
	cred, err := m.repos.Credential.ActiveByAccount(ctx, account.ID, models.CredentialTypeOAuth)
	if err != nil {
		return true
	}
	return cred.Expired(m.clock.Now())
}

// DisconnectAccount deactivates all credentials and flips the account
// inactive with sync flags off. Idempotent.
func (m *AuthManager) DisconnectAccount(ctx context.Context, account *models.Account) error {
	return m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Credential.DeactivateByAccount(ctx, account.ID, models.CredentialTypeOAuth); err != nil {
			return err
		}
		account.IsActive = false
		account.AutoSyncOrders = false
		account.AutoSyncProducts = false
		return tx.Account.Save(ctx, account)
	})
}

// generateState generates a cryptographically secure random state token.
func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
