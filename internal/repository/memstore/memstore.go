// Package memstore is an in-memory implementation of the repository
// interfaces. It backs unit tests and local development without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopsync/internal/models"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

type Store struct {
	mu sync.Mutex

	accounts   map[uint]*models.Account
	creds      map[uint]*models.Credential
	products   map[uint]*models.Product
	variants   map[uint]*models.ProductVariant
	packages   map[uint]*models.Package
	mappings   map[uint]*models.SkuMapping
	pending    map[uint]*models.PendingProduct
	orders     map[uint]*models.Order
	items      map[uint]*models.OrderItem
	events     []*models.OrderEvent
	warehouses map[uint]*models.Warehouse
	levels     map[uint]*models.StockLevel
	movements  []*models.StockMovement

	nextID uint
}

// New builds a Store and the repository aggregate over it.
func New() (*Store, *repository.Repositories) {
	s := &Store{
		accounts:   map[uint]*models.Account{},
		creds:      map[uint]*models.Credential{},
		products:   map[uint]*models.Product{},
		variants:   map[uint]*models.ProductVariant{},
		packages:   map[uint]*models.Package{},
		mappings:   map[uint]*models.SkuMapping{},
		pending:    map[uint]*models.PendingProduct{},
		orders:     map[uint]*models.Order{},
		items:      map[uint]*models.OrderItem{},
		warehouses: map[uint]*models.Warehouse{},
		levels:     map[uint]*models.StockLevel{},
	}
	repos := &repository.Repositories{
		Account:        (*accountRepo)(s),
		Credential:     (*credentialRepo)(s),
		Product:        (*productRepo)(s),
		Package:        (*packageRepo)(s),
		SkuMapping:     (*skuMappingRepo)(s),
		PendingProduct: (*pendingProductRepo)(s),
		Order:          (*orderRepo)(s),
		Stock:          (*stockRepo)(s),
		Warehouse:      (*warehouseRepo)(s),
	}
	// Single-writer semantics are enough for tests; fn runs directly.
	repos.Transaction = func(ctx context.Context, fn func(tx *repository.Repositories) error) error {
		return fn(repos)
	}
	s.nextID = 1
	return s, repos
}

func (s *Store) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

// Seed helpers used by tests.

func (s *Store) AddAccount(a *models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	a.CreatedAt = time.Now()
	s.accounts[a.ID] = a
	return a
}

func (s *Store) AddCredential(c *models.Credential) *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.creds[c.ID] = c
	return c
}

func (s *Store) AddProduct(p *models.Product) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.products[p.ID] = p
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.ID == 0 {
			v.ID = s.id()
		}
		v.ProductID = p.ID
		s.variants[v.ID] = v
	}
	return p
}

func (s *Store) AddPackage(p *models.Package) *models.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	for i := range p.Products {
		if p.Products[i].ID == 0 {
			p.Products[i].ID = s.id()
		}
		p.Products[i].PackageID = p.ID
	}
	s.packages[p.ID] = p
	return p
}

func (s *Store) AddWarehouse(w *models.Warehouse) *models.Warehouse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == 0 {
		w.ID = s.id()
	}
	s.warehouses[w.ID] = w
	return w
}

func (s *Store) AddMapping(m *models.SkuMapping) *models.SkuMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.id()
	}
	m.CreatedAt = time.Now()
	s.mappings[m.ID] = m
	return m
}

func (s *Store) AddOrder(o *models.Order) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.id()
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == 0 {
			it.ID = s.id()
		}
		it.OrderID = o.ID
		s.items[it.ID] = it
	}
	s.orders[o.ID] = o
	return o
}

// Movements returns a copy of the journal for assertions.
func (s *Store) Movements() []*models.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Events returns a copy of the order audit trail.
func (s *Store) Events() []*models.OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.OrderEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Level returns the stock level row for assertions, or nil.
func (s *Store) Level(productID uint, variantID *uint, warehouseID uint) *models.StockLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.levels {
		if l.ProductID == productID && l.WarehouseID == warehouseID && uintPtrEq(l.VariantID, variantID) {
			return l
		}
	}
	return nil
}

func uintPtrEq(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// --- account repo ---

type accountRepo Store

func (r *accountRepo) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, &perrors.NotFoundError{Resource: "account", ID: fmt.Sprintf("%d", id)}
}

func (r *accountRepo) GetByPlatformShop(ctx context.Context, platform, shopID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Platform == platform && a.ExternalShopID == shopID {
			return a, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "account", ID: shopID}
}

func (r *accountRepo) GetByProviderAccountID(ctx context.Context, platform, providerAccountID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Platform == platform && a.ProviderAccountID == providerAccountID && providerAccountID != "" {
			return a, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "account", ID: providerAccountID}
}

func (r *accountRepo) ListActive(ctx context.Context, platform string) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		if a.Platform == platform && a.IsActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *accountRepo) Save(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == 0 {
		account.ID = (*Store)(r).id()
		account.CreatedAt = time.Now()
	}
	account.UpdatedAt = time.Now()
	r.accounts[account.ID] = account
	return nil
}

// --- credential repo ---

type credentialRepo Store

func (r *credentialRepo) ActiveByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.Credential
	for _, c := range r.creds {
		if c.AccountID == accountID && c.Type == ctype && c.IsActive {
			if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
				newest = c
			}
		}
	}
	if newest == nil {
		return nil, &perrors.NotFoundError{Resource: "credential", ID: fmt.Sprintf("account %d", accountID)}
	}
	return newest, nil
}

func (r *credentialRepo) DeactivateByAccount(ctx context.Context, accountID uint, ctype models.CredentialType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.AccountID == accountID && c.Type == ctype {
			c.IsActive = false
		}
	}
	return nil
}

func (r *credentialRepo) Save(ctx context.Context, cred *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cred.ID == 0 {
		cred.ID = (*Store)(r).id()
		if cred.CreatedAt.IsZero() {
			cred.CreatedAt = time.Now()
		}
	}
	cred.UpdatedAt = time.Now()
	r.creds[cred.ID] = cred
	return nil
}

// --- product repo ---

type productRepo Store

func (r *productRepo) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, &perrors.NotFoundError{Resource: "product", ID: fmt.Sprintf("%d", id)}
}

func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.IsActive && p.SKU == sku && sku != "" {
			return p, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "product", ID: sku}
}

func (r *productRepo) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.IsActive && p.Barcode == barcode && barcode != "" {
			return p, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "product", ID: barcode}
}

func (r *productRepo) VariantBySKU(ctx context.Context, sku string) (*models.ProductVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.SKU == sku && sku != "" {
			return v, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "variant", ID: sku}
}

func (r *productRepo) VariantByBarcode(ctx context.Context, barcode string) (*models.ProductVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.Barcode == barcode && barcode != "" {
			return v, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "variant", ID: barcode}
}

func (r *productRepo) ListActive(ctx context.Context, limit int) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Product
	for _, p := range r.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- package repo ---

type packageRepo Store

func (r *packageRepo) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.packages[id]; ok {
		return p, nil
	}
	return nil, &perrors.NotFoundError{Resource: "package", ID: fmt.Sprintf("%d", id)}
}

// --- sku mapping repo ---

type skuMappingRepo Store

func (r *skuMappingRepo) ActiveBySKU(ctx context.Context, platform string, accountID uint, sku string) (*models.SkuMapping, error) {
	if sku == "" {
		return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: sku}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var global *models.SkuMapping
	for _, m := range r.mappings {
		if m.Platform != platform || !m.IsActive || m.ExternalSKU != sku {
			continue
		}
		if m.AccountID != nil && *m.AccountID == accountID {
			return m, nil
		}
		if m.AccountID == nil {
			global = m
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: sku}
}

func (r *skuMappingRepo) ActiveByExternalProductID(ctx context.Context, platform string, accountID uint, externalProductID string) (*models.SkuMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var global *models.SkuMapping
	for _, m := range r.mappings {
		if m.Platform != platform || !m.IsActive || m.ExternalProductID != externalProductID || externalProductID == "" {
			continue
		}
		if m.AccountID != nil && *m.AccountID == accountID {
			return m, nil
		}
		if m.AccountID == nil {
			global = m
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, &perrors.NotFoundError{Resource: "sku mapping", ID: externalProductID}
}

func (r *skuMappingRepo) Upsert(ctx context.Context, mapping *models.SkuMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.Platform != mapping.Platform || !uintPtrEq(m.AccountID, mapping.AccountID) {
			continue
		}
		sameKey := m.ExternalSKU == mapping.ExternalSKU
		if mapping.ExternalSKU == "" {
			sameKey = m.ExternalProductID == mapping.ExternalProductID
		}
		if sameKey {
			mapping.ID = m.ID
			mapping.CreatedAt = m.CreatedAt
			mapping.UseCount = m.UseCount
			r.mappings[m.ID] = mapping
			return nil
		}
	}
	mapping.ID = (*Store)(r).id()
	mapping.CreatedAt = time.Now()
	r.mappings[mapping.ID] = mapping
	return nil
}

func (r *skuMappingRepo) Save(ctx context.Context, mapping *models.SkuMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mapping.ID == 0 {
		mapping.ID = (*Store)(r).id()
		mapping.CreatedAt = time.Now()
	}
	r.mappings[mapping.ID] = mapping
	return nil
}

// --- pending product repo ---

type pendingProductRepo Store

func (r *pendingProductRepo) GetByID(ctx context.Context, id uint) (*models.PendingProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[id]; ok {
		return p, nil
	}
	return nil, &perrors.NotFoundError{Resource: "pending product", ID: fmt.Sprintf("%d", id)}
}

func (r *pendingProductRepo) GetByExternalID(ctx context.Context, accountID uint, externalProductID string) (*models.PendingProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p.AccountID == accountID && p.ExternalProductID == externalProductID {
			return p, nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "pending product", ID: externalProductID}
}

func (r *pendingProductRepo) Upsert(ctx context.Context, pending *models.PendingProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p.AccountID == pending.AccountID && p.ExternalProductID == pending.ExternalProductID {
			pending.ID = p.ID
			pending.CreatedAt = p.CreatedAt
			r.pending[p.ID] = pending
			return nil
		}
	}
	pending.ID = (*Store)(r).id()
	pending.CreatedAt = time.Now()
	r.pending[pending.ID] = pending
	return nil
}

func (r *pendingProductRepo) Save(ctx context.Context, pending *models.PendingProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pending.ID == 0 {
		pending.ID = (*Store)(r).id()
	}
	r.pending[pending.ID] = pending
	return nil
}

func (r *pendingProductRepo) ListByStatus(ctx context.Context, accountID uint, status models.PendingProductStatus, limit, offset int) ([]*models.PendingProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PendingProduct
	for _, p := range r.pending {
		if p.AccountID == accountID && p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *pendingProductRepo) ListOrphans(ctx context.Context, accountID uint) ([]*models.PendingProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PendingProduct
	for _, p := range r.pending {
		if p.AccountID == accountID && p.Orphaned() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- order repo ---

type orderRepo Store

func (r *orderRepo) GetByExternalID(ctx context.Context, accountID uint, externalOrderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.AccountID == accountID && o.ExternalOrderID == externalOrderID {
			return (*Store)(r).orderWithItems(o), nil
		}
	}
	return nil, &perrors.NotFoundError{Resource: "order", ID: externalOrderID}
}

func (s *Store) orderWithItems(o *models.Order) *models.Order {
	cp := *o
	cp.Items = nil
	var ids []uint
	for id, it := range s.items {
		if it.OrderID == o.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cp.Items = append(cp.Items, *s.items[id])
	}
	return &cp
}

func (r *orderRepo) Save(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == 0 {
		order.ID = (*Store)(r).id()
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = time.Now()
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = &stored
	return nil
}

func (r *orderRepo) SaveItem(ctx context.Context, item *models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == 0 {
		item.ID = (*Store)(r).id()
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = time.Now()
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *orderRepo) DeleteItem(ctx context.Context, itemID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, itemID)
	return nil
}

func (r *orderRepo) AddEvent(ctx context.Context, event *models.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == 0 {
		event.ID = (*Store)(r).id()
	}
	event.CreatedAt = time.Now()
	r.events = append(r.events, event)
	return nil
}

func (r *orderRepo) ListUnlinkedItems(ctx context.Context, accountID uint, limit int) ([]*models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OrderItem
	for _, it := range r.items {
		o, ok := r.orders[it.OrderID]
		if !ok || o.AccountID != accountID {
			continue
		}
		if it.ProductID == nil && it.PackageID == nil {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *orderRepo) GetOrderForItem(ctx context.Context, itemID uint) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return nil, &perrors.NotFoundError{Resource: "order item", ID: fmt.Sprintf("%d", itemID)}
	}
	o, ok := r.orders[it.OrderID]
	if !ok {
		return nil, &perrors.NotFoundError{Resource: "order", ID: fmt.Sprintf("%d", it.OrderID)}
	}
	return (*Store)(r).orderWithItems(o), nil
}

// --- stock repo ---

type stockRepo Store

func (r *stockRepo) LevelFor(ctx context.Context, productID uint, variantID *uint, warehouseID uint) (*models.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.levels {
		if l.ProductID == productID && l.WarehouseID == warehouseID && uintPtrEq(l.VariantID, variantID) {
			return l, nil
		}
	}
	return nil, nil
}

func (r *stockRepo) SaveLevel(ctx context.Context, level *models.StockLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if level.ID == 0 {
		level.ID = (*Store)(r).id()
	}
	level.UpdatedAt = time.Now()
	r.levels[level.ID] = level
	return nil
}

func (r *stockRepo) MovementExists(ctx context.Context, refType string, refID uint, productID uint, variantID *uint, warehouseID uint, direction models.MovementDirection) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.ReferenceType == refType && m.ReferenceID == refID &&
			m.ProductID == productID && m.WarehouseID == warehouseID &&
			m.Direction == direction && uintPtrEq(m.VariantID, variantID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stockRepo) AddMovement(ctx context.Context, movement *models.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	movement.CreatedAt = time.Now()
	r.movements = append(r.movements, movement)
	return nil
}

// --- warehouse repo ---

type warehouseRepo Store

func (r *warehouseRepo) Default(ctx context.Context) (*models.Warehouse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for id, w := range r.warehouses {
		if w.IsDefault {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &perrors.NotFoundError{Resource: "warehouse", ID: "default"}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return r.warehouses[ids[0]], nil
}
