package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/models"
	perrors "shopsync/pkg/errors"
)

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "product", ID: fmt.Sprintf("%d", id)}
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("sku = ? AND is_active = ?", sku, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "product", ID: sku}
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("barcode = ? AND is_active = ?", barcode, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "product", ID: barcode}
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) VariantBySKU(ctx context.Context, sku string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "variant", ID: sku}
		}
		return nil, err
	}
	return &variant, nil
}

func (r *productRepo) VariantByBarcode(ctx context.Context, barcode string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "variant", ID: barcode}
		}
		return nil, err
	}
	return &variant, nil
}

func (r *productRepo) ListActive(ctx context.Context, limit int) ([]*models.Product, error) {
	var products []*models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Limit(limit).
		Find(&products).Error
	return products, err
}

type packageRepo struct {
	db *gorm.DB
}

func (r *packageRepo) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	var pkg models.Package
	err := r.db.WithContext(ctx).Preload("Products").First(&pkg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "package", ID: fmt.Sprintf("%d", id)}
		}
		return nil, err
	}
	return &pkg, nil
}

type warehouseRepo struct {
	db *gorm.DB
}

func (r *warehouseRepo) Default(ctx context.Context) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).
		Where("is_default = ?", true).
		Order("id").
		First(&warehouse).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "warehouse", ID: "default"}
		}
		return nil, err
	}
	return &warehouse, nil
}
