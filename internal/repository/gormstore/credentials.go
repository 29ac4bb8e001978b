package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/models"
	perrors "shopsync/pkg/errors"
)

type credentialRepo struct {
	db *gorm.DB
}

func (r *credentialRepo) ActiveByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND type = ? AND is_active = ?", accountID, ctype, true).
		Order("created_at DESC").
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "credential", ID: fmt.Sprintf("account %d", accountID)}
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) DeactivateByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) error {
	return r.db.WithContext(ctx).
		Model(&models.Credential{}).
		Where("account_id = ? AND type = ? AND is_active = ?", accountID, ctype, true).
		Update("is_active", false).Error
}

func (r *credentialRepo) Save(ctx context.Context, cred *models.Credential) error {
	return r.db.WithContext(ctx).Save(cred).Error
}
