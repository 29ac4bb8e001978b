package gormstore

import (
	"context"

	"gorm.io/gorm"

	"shopsync/internal/repository"
)

// New builds the repository aggregate backed by gorm.
func New(db *gorm.DB) *repository.Repositories {
	return build(db)
}

func build(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Account:        &accountRepo{db: db},
		Credential:     &credentialRepo{db: db},
		Product:        &productRepo{db: db},
		Package:        &packageRepo{db: db},
		SkuMapping:     &skuMappingRepo{db: db},
		PendingProduct: &pendingProductRepo{db: db},
		Order:          &orderRepo{db: db},
		Stock:          &stockRepo{db: db},
		Warehouse:      &warehouseRepo{db: db},
		Transaction: func(ctx context.Context, fn func(tx *repository.Repositories) error) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return fn(build(tx))
			})
		},
	}
}
