package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/models"
	perrors "shopsync/pkg/errors"
)

type skuMappingRepo struct {
	db *gorm.DB
}

func (r *skuMappingRepo) ActiveBySKU(ctx context.Context, platform string, accountID uint, sku string) (*models.SkuMapping, error) {
	if sku == "" {
		return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: sku}
	}
	var mapping models.SkuMapping
	// Account-scoped mapping wins over a global one.
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_sku = ? AND is_active = ?", platform, sku, true).
		Where("account_id = ? OR account_id IS NULL", accountID).
		Order("account_id DESC NULLS LAST").
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: sku}
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *skuMappingRepo) ActiveByExternalProductID(ctx context.Context, platform string, accountID uint, externalProductID string) (*models.SkuMapping, error) {
	var mapping models.SkuMapping
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_product_id = ? AND is_active = ?", platform, externalProductID, true).
		Where("account_id = ? OR account_id IS NULL", accountID).
		Order("account_id DESC NULLS LAST").
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: externalProductID}
		}
		return nil, err
	}
	return &mapping, nil
}

// Upsert applies update-or-create semantics on the (platform, account,
// external SKU) key. SKU-less mappings key on the external product id
// instead, so they never collide with each other on the empty string.
func (r *skuMappingRepo) Upsert(ctx context.Context, mapping *models.SkuMapping) error {
	var existing models.SkuMapping
	q := r.db.WithContext(ctx).Where("platform = ?", mapping.Platform)
	if mapping.ExternalSKU != "" {
		q = q.Where("external_sku = ?", mapping.ExternalSKU)
	} else {
		q = q.Where("external_product_id = ?", mapping.ExternalProductID)
	}
	if mapping.AccountID != nil {
		q = q.Where("account_id = ?", *mapping.AccountID)
	} else {
		q = q.Where("account_id IS NULL")
	}
	err := q.First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(mapping).Error
		}
		return err
	}
	mapping.ID = existing.ID
	mapping.CreatedAt = existing.CreatedAt
	mapping.UseCount = existing.UseCount
	return r.db.WithContext(ctx).Save(mapping).Error
}

func (r *skuMappingRepo) Save(ctx context.Context, mapping *models.SkuMapping) error {
	return r.db.WithContext(ctx).Save(mapping).Error
}

type pendingProductRepo struct {
	db *gorm.DB
}

func (r *pendingProductRepo) GetByID(ctx context.Context, id uint) (*models.PendingProduct, error) {
	var pending models.PendingProduct
	err := r.db.WithContext(ctx).First(&pending, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "pending product", ID: fmt.Sprintf("%d", id)}
		}
		return nil, err
	}
	return &pending, nil
}

func (r *pendingProductRepo) GetByExternalID(ctx context.Context, accountID uint, externalProductID string) (*models.PendingProduct, error) {
	var pending models.PendingProduct
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND external_product_id = ?", accountID, externalProductID).
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "pending product", ID: externalProductID}
		}
		return nil, err
	}
	return &pending, nil
}

func (r *pendingProductRepo) Upsert(ctx context.Context, pending *models.PendingProduct) error {
	existing, err := r.GetByExternalID(ctx, pending.AccountID, pending.ExternalProductID)
	if err != nil {
		var nf *perrors.NotFoundError
		if errors.As(err, &nf) {
			return r.db.WithContext(ctx).Create(pending).Error
		}
		return err
	}
	pending.ID = existing.ID
	pending.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(pending).Error
}

func (r *pendingProductRepo) Save(ctx context.Context, pending *models.PendingProduct) error {
	return r.db.WithContext(ctx).Save(pending).Error
}

func (r *pendingProductRepo) ListByStatus(ctx context.Context, accountID uint, status models.PendingProductStatus, limit, offset int) ([]*models.PendingProduct, error) {
	var rows []*models.PendingProduct
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, status).
		Order("id").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *pendingProductRepo) ListOrphans(ctx context.Context, accountID uint) ([]*models.PendingProduct, error) {
	var rows []*models.PendingProduct
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, models.PendingStatusLinked).
		Where("suggested_product_id IS NULL AND suggested_package_id IS NULL").
		Find(&rows).Error
	return rows, err
}
