package tiktok

import (
	"context"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/crypto"
	"shopsync/internal/models"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

// ClientProvider builds an API client for an account. The sync engines
// depend on this instead of the concrete factory so tests can inject fakes.
type ClientProvider interface {
	ClientFor(ctx context.Context, account *models.Account) (API, error)
}

// ClientFactory builds authenticated clients from stored credentials.
type ClientFactory struct {
	cfg    *config.Config
	repos  *repository.Repositories
	cipher crypto.Cipher
	clock  Clock
	logger *zap.Logger
}

func NewClientFactory(cfg *config.Config, repos *repository.Repositories, cipher crypto.Cipher, clock Clock, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{cfg: cfg, repos: repos, cipher: cipher, clock: clock, logger: logger}
}

// ClientFor selects the newest active, non-expired oauth credential for the
// account, decrypts it and returns a bound client. App-level key/secret are
// checked before anything else; their absence is a deployment problem, not
// an account problem.
func (f *ClientFactory) ClientFor(ctx context.Context, account *models.Account) (API, error) {
	if f.cfg.TikTokAppKey == "" || f.cfg.TikTokAppSecret == "" {
		return nil, &perrors.ConfigError{Message: "TikTok app key/secret are not configured"}
	}

	cred, err := f.repos.Credential.ActiveByAccount(ctx, account.ID, models.CredentialTypeOAuth)
	if err != nil {
		return nil, &perrors.CredentialError{AccountID: account.ID, Message: "no active credential"}
	}
	if cred.Expired(f.clock.Now()) {
		return nil, &perrors.CredentialError{AccountID: account.ID, Message: "credential is expired"}
	}

	token, err := f.cipher.Decrypt(cred.AccessToken)
	if err != nil {
		return nil, &perrors.CredentialError{AccountID: account.ID, Message: "stored token cannot be decrypted"}
	}

	// Usage bookkeeping must never fail client construction.
	now := f.clock.Now()
	cred.LastUsedAt = &now
	if err := f.repos.Credential.Save(ctx, cred); err != nil {
		f.logger.Warn("failed to mark credential used",
			zap.Uint("account_id", account.ID), zap.Error(err))
	}

	return NewClient(
		f.cfg.TikTokAPIBase,
		f.cfg.TikTokAppKey,
		f.cfg.TikTokAppSecret,
		token,
		account.ShopCipher(),
		f.logger,
	), nil
}
