package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"shopsync/internal/models"
)

type stockRepo struct {
	db *gorm.DB
}

func (r *stockRepo) LevelFor(ctx context.Context, productID uint, variantID *uint, warehouseID uint) (*models.StockLevel, error) {
	var level models.StockLevel
	q := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	err := q.First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

func (r *stockRepo) SaveLevel(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

func (r *stockRepo) MovementExists(ctx context.Context, refType string, refID uint, productID uint, variantID *uint, warehouseID uint, direction models.MovementDirection) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Where("product_id = ? AND warehouse_id = ? AND direction = ?", productID, warehouseID, direction)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *stockRepo) AddMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}
