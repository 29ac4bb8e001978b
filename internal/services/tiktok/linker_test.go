package tiktok

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository/memstore"
)

func TestLinkItemToMapping(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	warehouse := store.AddWarehouse(&models.Warehouse{Name: "Main", IsDefault: true})
	accountID := uint(1)
	store.AddMapping(&models.SkuMapping{
		Platform:    models.PlatformTikTok,
		AccountID:   &accountID,
		ExternalSKU: "EXT-MUG",
		ProductID:   &product.ID,
		IsActive:    true,
	})
	order := store.AddOrder(&models.Order{
		AccountID:       accountID,
		ExternalOrderID: "O-1",
		Items:           []models.OrderItem{{ExternalSKU: "EXT-MUG", Quantity: 2}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())
	item := &order.Items[0]
	linked, err := linker.LinkItemToMapping(context.Background(), item, models.PlatformTikTok, accountID)
	require.NoError(t, err)
	assert.True(t, linked)
	require.NotNil(t, item.ProductID)
	assert.Equal(t, product.ID, *item.ProductID)
	require.NotNil(t, item.WarehouseID)
	assert.Equal(t, warehouse.ID, *item.WarehouseID)
}

func TestLinkItemNoMapping(t *testing.T) {
	store, repos := memstore.New()
	order := store.AddOrder(&models.Order{
		AccountID:       1,
		ExternalOrderID: "O-2",
		Items:           []models.OrderItem{{ExternalSKU: "UNMAPPED", Quantity: 1}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())
	linked, err := linker.LinkItemToMapping(context.Background(), &order.Items[0], models.PlatformTikTok, 1)
	require.NoError(t, err)
	assert.False(t, linked)
	assert.Nil(t, order.Items[0].ProductID)
}

func TestDeductStockIdempotent(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	warehouse := store.AddWarehouse(&models.Warehouse{Name: "Main", IsDefault: true})
	order := store.AddOrder(&models.Order{
		AccountID:       1,
		ExternalOrderID: "O-3",
		OrderNumber:     "TT-abc",
		Status:          models.OrderStatusShipped,
		Items: []models.OrderItem{{
			ExternalSKU: "EXT-MUG",
			Quantity:    3,
			ProductID:   &product.ID,
			WarehouseID: &warehouse.ID,
		}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())

	summary, err := linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deducted)
	require.Len(t, store.Movements(), 1)

	// Second run is a no-op: the journal already holds the movement.
	summary, err = linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deducted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, store.Movements(), 1)

	level := store.Level(product.ID, nil, warehouse.ID)
	require.NotNil(t, level)
	assert.True(t, level.Quantity.Equal(decimal.NewFromInt(-3)))
}

func TestDeductStockPendingOrderSkipped(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	warehouse := store.AddWarehouse(&models.Warehouse{Name: "Main", IsDefault: true})
	order := store.AddOrder(&models.Order{
		AccountID:       1,
		ExternalOrderID: "O-4",
		Status:          models.OrderStatusPending,
		Items: []models.OrderItem{{
			ExternalSKU: "EXT-MUG",
			Quantity:    1,
			ProductID:   &product.ID,
			WarehouseID: &warehouse.ID,
		}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())
	summary, err := linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deducted)
	assert.Empty(t, store.Movements())
}

func TestDeductStockItemWithoutWarehouseSkipped(t *testing.T) {
	store, repos := memstore.New()
	product := store.AddProduct(&models.Product{SKU: "MUG-350", Name: "Ceramic Mug", IsActive: true})
	order := store.AddOrder(&models.Order{
		AccountID:       1,
		ExternalOrderID: "O-5",
		Status:          models.OrderStatusDelivered,
		Items: []models.OrderItem{{
			ExternalSKU: "EXT-MUG",
			Quantity:    1,
			ProductID:   &product.ID,
		}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())
	summary, err := linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deducted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Errors)
}

func TestDeductPackageExpandsConstituents(t *testing.T) {
	store, repos := memstore.New()
	cup := store.AddProduct(&models.Product{SKU: "CUP", Name: "Cup", IsActive: true})
	plate := store.AddProduct(&models.Product{SKU: "PLATE", Name: "Plate", IsActive: true})
	warehouse := store.AddWarehouse(&models.Warehouse{Name: "Main", IsDefault: true})
	pkg := store.AddPackage(&models.Package{
		SKU: "SET-1", Name: "Dinner Set", IsActive: true,
		Products: []models.PackageProduct{
			{ProductID: cup.ID, Quantity: 4},
			{ProductID: plate.ID, Quantity: 2},
		},
	})
	order := store.AddOrder(&models.Order{
		AccountID:       1,
		ExternalOrderID: "O-6",
		OrderNumber:     "TT-def",
		Status:          models.OrderStatusShipped,
		Items: []models.OrderItem{{
			ExternalSKU: "EXT-SET",
			Quantity:    2,
			PackageID:   &pkg.ID,
			WarehouseID: &warehouse.ID,
		}},
	})

	linker := NewLinker(repos, SystemClock, zap.NewNop())
	summary, err := linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deducted)
	assert.Len(t, store.Movements(), 2)

	// Order quantity times pivot multiplier.
	cupLevel := store.Level(cup.ID, nil, warehouse.ID)
	require.NotNil(t, cupLevel)
	assert.True(t, cupLevel.Quantity.Equal(decimal.NewFromInt(-8)))
	plateLevel := store.Level(plate.ID, nil, warehouse.ID)
	require.NotNil(t, plateLevel)
	assert.True(t, plateLevel.Quantity.Equal(decimal.NewFromInt(-4)))

	// Re-running deducts nothing more.
	summary, err = linker.DeductStockForOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deducted)
	assert.Len(t, store.Movements(), 2)
}
