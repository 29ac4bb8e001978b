package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/models"
	perrors "shopsync/pkg/errors"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) GetByExternalID(ctx context.Context, accountID uint, externalOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("account_id = ? AND external_order_id = ?", accountID, externalOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "order", ID: externalOrderID}
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) Save(ctx context.Context, order *models.Order) error {
	// Items are reconciled individually by the sync engine.
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *orderRepo) SaveItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *orderRepo) DeleteItem(ctx context.Context, itemID uint) error {
	return r.db.WithContext(ctx).Delete(&models.OrderItem{}, itemID).Error
}

func (r *orderRepo) AddEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *orderRepo) ListUnlinkedItems(ctx context.Context, accountID uint, limit int) ([]*models.OrderItem, error) {
	var items []*models.OrderItem
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.account_id = ?", accountID).
		Where("order_items.product_id IS NULL AND order_items.package_id IS NULL").
		Order("order_items.id").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *orderRepo) GetOrderForItem(ctx context.Context, itemID uint) (*models.Order, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "order item", ID: fmt.Sprintf("%d", itemID)}
		}
		return nil, err
	}
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, item.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &perrors.NotFoundError{Resource: "order", ID: fmt.Sprintf("%d", item.OrderID)}
		}
		return nil, err
	}
	return &order, nil
}
