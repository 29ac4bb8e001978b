package repository

import (
	"context"

	"shopsync/internal/models"
)

// AccountRepository defines marketplace account data access methods
type AccountRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByPlatformShop(ctx context.Context, platform, externalShopID string) (*models.Account, error)
	GetByProviderAccountID(ctx context.Context, platform, providerAccountID string) (*models.Account, error)
	ListActive(ctx context.Context, platform string) ([]*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// CredentialRepository defines credential data access methods
type CredentialRepository interface {
	// ActiveByAccount returns the most recently created active credential of
	// the given type, or a NotFoundError.
	ActiveByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) (*models.Credential, error)
	DeactivateByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) error
	Save(ctx context.Context, cred *models.Credential) error
}

// ProductRepository defines internal catalog access methods
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	VariantBySKU(ctx context.Context, sku string) (*models.ProductVariant, error)
	VariantByBarcode(ctx context.Context, barcode string) (*models.ProductVariant, error)
	ListActive(ctx context.Context, limit int) ([]*models.Product, error)
}

// PackageRepository defines package access methods
type PackageRepository interface {
	// GetByID returns the package with its constituent products loaded.
	GetByID(ctx context.Context, id uint) (*models.Package, error)
}

// SkuMappingRepository defines SKU mapping data access methods
type SkuMappingRepository interface {
	// ActiveBySKU resolves an account-scoped mapping first, then a global one.
	ActiveBySKU(ctx context.Context, platform string, accountID uint, sku string) (*models.SkuMapping, error)
	ActiveByExternalProductID(ctx context.Context, platform string, accountID uint, externalProductID string) (*models.SkuMapping, error)
	Upsert(ctx context.Context, mapping *models.SkuMapping) error
	Save(ctx context.Context, mapping *models.SkuMapping) error
}

// PendingProductRepository defines review-queue access methods
type PendingProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.PendingProduct, error)
	GetByExternalID(ctx context.Context, accountID uint, externalProductID string) (*models.PendingProduct, error)
	Upsert(ctx context.Context, pending *models.PendingProduct) error
	Save(ctx context.Context, pending *models.PendingProduct) error
	ListByStatus(ctx context.Context, accountID uint, status models.PendingProductStatus, limit, offset int) ([]*models.PendingProduct, error)
	// ListOrphans returns rows marked linked that lost their suggestion target.
	ListOrphans(ctx context.Context, accountID uint) ([]*models.PendingProduct, error)
}

// OrderRepository defines order data access methods
type OrderRepository interface {
	// GetByExternalID returns the order with items loaded, or a NotFoundError.
	GetByExternalID(ctx context.Context, accountID uint, externalOrderID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	SaveItem(ctx context.Context, item *models.OrderItem) error
	DeleteItem(ctx context.Context, itemID uint) error
	AddEvent(ctx context.Context, event *models.OrderEvent) error
	// ListUnlinkedItems returns items with no product or package link for the
	// account's orders, oldest first.
	ListUnlinkedItems(ctx context.Context, accountID uint, limit int) ([]*models.OrderItem, error)
	GetOrderForItem(ctx context.Context, itemID uint) (*models.Order, error)
}

// StockRepository defines stock level and movement access methods
type StockRepository interface {
	LevelFor(ctx context.Context, productID uint, variantID *uint, warehouseID uint) (*models.StockLevel, error)
	SaveLevel(ctx context.Context, level *models.StockLevel) error
	MovementExists(ctx context.Context, refType string, refID uint, productID uint, variantID *uint, warehouseID uint, direction models.MovementDirection) (bool, error)
	AddMovement(ctx context.Context, movement *models.StockMovement) error
}

// WarehouseRepository defines warehouse access methods
type WarehouseRepository interface {
	Default(ctx context.Context) (*models.Warehouse, error)
}

// Repositories aggregates all repositories. Transaction runs fn against a
// transaction-scoped aggregate; the whole fn commits or rolls back as one.
type Repositories struct {
	Account        AccountRepository
	Credential     CredentialRepository
	Product        ProductRepository
	Package        PackageRepository
	SkuMapping     SkuMappingRepository
	PendingProduct PendingProductRepository
	Order          OrderRepository
	Stock          StockRepository
	Warehouse      WarehouseRepository

	Transaction func(ctx context.Context, fn func(tx *Repositories) error) error
}
