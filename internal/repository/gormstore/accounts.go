package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/models"
	perrors "shopsync/pkg/errors"
)

type accountRepo struct {
	db *gorm.DB
}

func (r *accountRepo) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "account", ID: fmt.Sprintf("%d", id)}
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetByPlatformShop(ctx context.Context, platform, externalShopID string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_shop_id = ?", platform, externalShopID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "account", ID: externalShopID}
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetByProviderAccountID(ctx context.Context, platform, providerAccountID string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("platform = ? AND provider_account_id = ?", platform, providerAccountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "account", ID: providerAccountID}
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) ListActive(ctx context.Context, platform string) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Where("platform = ? AND is_active = ?", platform, true).
		Order("id").
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) Save(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}
