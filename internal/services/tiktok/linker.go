package tiktok

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

// Linker resolves order line items to internal products via the SKU mapping
// table and performs idempotent stock deduction.
type Linker struct {
	repos  *repository.Repositories
	clock  Clock
	logger *zap.Logger
}

func NewLinker(repos *repository.Repositories, clock Clock, logger *zap.Logger) *Linker {
	return &Linker{repos: repos, clock: clock, logger: logger}
}

// LinkItemToMapping applies the active mapping for the item's external SKU.
// It returns true only when it actually mutated the item.
func (l *Linker) LinkItemToMapping(ctx context.Context, item *models.OrderItem, platform string, accountID uint) (bool, error) {
	if item.ExternalSKU == "" {
		return false, nil
	}
	mapping, err := l.repos.SkuMapping.ActiveBySKU(ctx, platform, accountID, item.ExternalSKU)
	if err != nil {
		var nf *perrors.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}

	// Exactly one side is set, mirroring the mapping's own invariant.
	if mapping.PackageID != nil {
		item.PackageID = mapping.PackageID
		item.ProductID = nil
		item.VariantID = nil
	} else {
		item.ProductID = mapping.ProductID
		item.VariantID = mapping.VariantID
		item.PackageID = nil
	}

	if item.WarehouseID == nil {
		warehouse, err := l.repos.Warehouse.Default(ctx)
		if err == nil {
			item.WarehouseID = &warehouse.ID
		} else {
			l.logger.Warn("no default warehouse for linked item",
				zap.Uint("item_id", item.ID))
		}
	}

	if err := l.repos.Order.SaveItem(ctx, item); err != nil {
		return false, err
	}

	now := l.clock.Now()
	mapping.UseCount++
	mapping.LastUsedAt = &now
	if err := l.repos.SkuMapping.Save(ctx, mapping); err != nil {
		l.logger.Warn("failed to record mapping usage",
			zap.Uint("mapping_id", mapping.ID), zap.Error(err))
	}
	return true, nil
}

// DeductionSummary reports the outcome of a per-order deduction pass.
type DeductionSummary struct {
	Deducted int
	Skipped  int
	Errors   []string
}

// DeductStockForOrder deducts stock for every linked item of a shippable
// order. Items without a warehouse are skipped, not failed.
func (l *Linker) DeductStockForOrder(ctx context.Context, order *models.Order) (*DeductionSummary, error) {
	summary := &DeductionSummary{}
	if !order.Shippable() {
		summary.Skipped = len(order.Items)
		return summary, nil
	}

	for i := range order.Items {
		item := &order.Items[i]
		if !item.Linked() || item.WarehouseID == nil {
			summary.Skipped++
			continue
		}

		var (
			deducted bool
			err      error
		)
		if item.PackageID != nil {
			deducted, err = l.deductPackageItem(ctx, item, order)
		} else {
			qty := decimal.NewFromInt(int64(item.Quantity))
			desc := fmt.Sprintf("order %s item %s", order.OrderNumber, item.ExternalSKU)
			deducted, err = l.DeductWithValidation(ctx, item, *item.ProductID, item.VariantID, *item.WarehouseID, qty, order, desc)
		}
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("item %s: %v", item.ExternalSKU, err))
			continue
		}
		if deducted {
			summary.Deducted++
		} else {
			summary.Skipped++
		}
	}
	return summary, nil
}

// deductPackageItem expands the package and deducts each constituent
// independently. It reports success only when every constituent deducted;
// there is no compensating rollback for partial failure.
func (l *Linker) deductPackageItem(ctx context.Context, item *models.OrderItem, order *models.Order) (bool, error) {
	pkg, err := l.repos.Package.GetByID(ctx, *item.PackageID)
	if err != nil {
		return false, err
	}

	allOK := true
	anyDeducted := false
	for _, constituent := range pkg.Products {
		qty := decimal.NewFromInt(int64(item.Quantity * constituent.Quantity))
		desc := fmt.Sprintf("order %s item %s (package %s)", order.OrderNumber, item.ExternalSKU, pkg.Name)
		deducted, err := l.DeductWithValidation(ctx, item, constituent.ProductID, constituent.VariantID, *item.WarehouseID, qty, order, desc)
		if err != nil {
			l.logger.Error("package constituent deduction failed",
				zap.Uint("item_id", item.ID),
				zap.Uint("product_id", constituent.ProductID),
				zap.Error(err))
			allOK = false
			continue
		}
		if deducted {
			anyDeducted = true
		}
	}
	if !allOK {
		return false, fmt.Errorf("package %d partially deducted", pkg.ID)
	}
	return anyDeducted, nil
}

// DeductWithValidation is the idempotency boundary: a prior outbound
// movement for the same (item, product, variant, warehouse) tuple makes the
// call a no-op, so repeated sync or backfill runs never double-deduct.
func (l *Linker) DeductWithValidation(ctx context.Context, item *models.OrderItem, productID uint, variantID *uint, warehouseID uint, qty decimal.Decimal, order *models.Order, description string) (bool, error) {
	exists, err := l.repos.Stock.MovementExists(ctx, models.ReferenceTypeOrderItem, item.ID, productID, variantID, warehouseID, models.MovementOut)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var deducted bool
	err = l.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		level, err := tx.Stock.LevelFor(ctx, productID, variantID, warehouseID)
		if err != nil {
			return err
		}
		if level == nil {
			level = &models.StockLevel{
				ProductID:   productID,
				VariantID:   variantID,
				WarehouseID: warehouseID,
				Quantity:    decimal.Zero,
			}
		}

		before := level.Quantity
		after := before.Sub(qty)
		level.Quantity = after
		if err := tx.Stock.SaveLevel(ctx, level); err != nil {
			return err
		}

		note := description
		if after.IsNegative() {
			// Back-order: permitted, but observable.
			note += " [negative stock]"
			l.logger.Warn("stock level went negative",
				zap.Uint("product_id", productID),
				zap.Uint("warehouse_id", warehouseID),
				zap.String("quantity", after.String()))
		}

		movement := &models.StockMovement{
			ProductID:     productID,
			VariantID:     variantID,
			WarehouseID:   warehouseID,
			Direction:     models.MovementOut,
			Quantity:      qty,
			BeforeQty:     before,
			AfterQty:      after,
			ReferenceType: models.ReferenceTypeOrderItem,
			ReferenceID:   item.ID,
			Note:          note,
		}
		if err := tx.Stock.AddMovement(ctx, movement); err != nil {
			return err
		}
		deducted = true
		return nil
	})
	return deducted, err
}
