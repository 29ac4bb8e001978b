package tiktok

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/models"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

const (
	orderRetryAttempts = 3
	orderRetryBase     = 500 * time.Millisecond
)

// OrderSyncOptions tune one sync run. Zero values fall back to config.
type OrderSyncOptions struct {
	Days   int
	Status string
}

// OrderSyncResult summarizes one sync run.
type OrderSyncResult struct {
	Imported    int      `json:"imported"`
	Updated     int      `json:"updated"`
	Failed      int      `json:"failed"`
	ItemsLinked int      `json:"items_linked"`
	Deducted    int      `json:"deducted"`
	Errors      []string `json:"errors,omitempty"`
}

func (r *OrderSyncResult) summary() map[string]interface{} {
	return map[string]interface{}{
		"imported":     r.Imported,
		"updated":      r.Updated,
		"failed":       r.Failed,
		"items_linked": r.ItemsLinked,
		"deducted":     r.Deducted,
	}
}

// OrderSyncEngine pulls orders from the marketplace into local storage,
// links their items and deducts stock for shippable orders.
type OrderSyncEngine struct {
	cfg     *config.Config
	repos   *repository.Repositories
	clients ClientProvider
	auth    *AuthManager
	linker  *Linker
	tracker *progress.Tracker
	clock   Clock
	logger  *zap.Logger

	// retryBase is overridable so tests do not sleep.
	retryBase time.Duration
}

func NewOrderSyncEngine(cfg *config.Config, repos *repository.Repositories, clients ClientProvider, auth *AuthManager, linker *Linker, tracker *progress.Tracker, clock Clock, logger *zap.Logger) *OrderSyncEngine {
	return &OrderSyncEngine{
		cfg:       cfg,
		repos:     repos,
		clients:   clients,
		auth:      auth,
		linker:    linker,
		tracker:   tracker,
		clock:     clock,
		logger:    logger,
		retryBase: orderRetryBase,
	}
}

// SyncOrders runs a full order sync for the account. The run aborts up front
// only when a refresh attempt failed AND the credential has actually expired;
// a failed refresh over a still-valid token proceeds.
func (e *OrderSyncEngine) SyncOrders(ctx context.Context, account *models.Account, opts OrderSyncOptions) (*OrderSyncResult, error) {
	e.tracker.Start(ctx, "orders", account.ID)

	if e.auth.NeedsTokenRefresh(ctx, account) {
		if !e.auth.RefreshToken(ctx, account) && e.auth.CredentialExpired(ctx, account) {
			err := &perrors.CredentialError{AccountID: account.ID, Message: "credential expired and refresh failed"}
			e.tracker.Fail(ctx, "orders", account.ID, err.Error())
			return nil, err
		}
	}

	client, err := e.clients.ClientFor(ctx, account)
	if err != nil {
		e.tracker.Fail(ctx, "orders", account.ID, err.Error())
		return nil, err
	}

	days := opts.Days
	if days <= 0 {
		days = e.cfg.OrderSyncDays
	}
	now := e.clock.Now()
	params := OrderSearchParams{
		CreateTimeFrom: now.AddDate(0, 0, -days),
		CreateTimeTo:   now,
		Status:         opts.Status,
	}

	result := &OrderSyncResult{}
	processed := 0
	for {
		page, err := client.SearchOrders(ctx, params)
		if err != nil {
			e.tracker.Fail(ctx, "orders", account.ID, err.Error())
			return nil, fmt.Errorf("order search failed: %w", err)
		}

		for _, payload := range page.Orders {
			if processed >= e.cfg.OrderSyncCap {
				break
			}
			processed++

			if err := e.syncWithRetry(ctx, account, payload, result); err != nil {
				result.Failed++
				if len(result.Errors) < 20 {
					result.Errors = append(result.Errors, err.Error())
				}
				e.logger.Error("order sync failed",
					zap.Uint("account_id", account.ID),
					zap.String("external_order_id", fieldString(payload, "id", "order_id")),
					zap.Error(err))
			}

			if processed%25 == 0 {
				percent := 0
				if page.Total > 0 {
					percent = processed * 100 / page.Total
					if percent > 99 {
						percent = 99
					}
				}
				e.tracker.Update(ctx, "orders", account.ID, percent,
					fmt.Sprintf("processed %d orders", processed))
			}
		}

		if page.NextPageToken == "" || processed >= e.cfg.OrderSyncCap {
			break
		}
		params.PageToken = page.NextPageToken
	}

	syncedAt := e.clock.Now()
	account.LastOrderSyncAt = &syncedAt
	account.LastSyncSummary = result.summary()
	if err := e.repos.Account.Save(ctx, account); err != nil {
		e.logger.Warn("failed to record sync timestamp",
			zap.Uint("account_id", account.ID), zap.Error(err))
	}

	e.tracker.Complete(ctx, "orders", account.ID, result.summary())
	return result, nil
}

// syncWithRetry retries a single order on lock contention only. Other
// failures surface immediately.
func (e *OrderSyncEngine) syncWithRetry(ctx context.Context, account *models.Account, payload map[string]interface{}, result *OrderSyncResult) error {
	var err error
	for attempt := 1; attempt <= orderRetryAttempts; attempt++ {
		err = e.syncSingleOrder(ctx, account, payload, result)
		if err == nil || !isTransientStoreError(err) {
			return err
		}
		if attempt < orderRetryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.retryBase * time.Duration(attempt)):
			}
		}
	}
	return err
}

// syncSingleOrder upserts one order and its items atomically, then links and
// deducts outside the write transaction.
func (e *OrderSyncEngine) syncSingleOrder(ctx context.Context, account *models.Account, payload map[string]interface{}, result *OrderSyncResult) error {
	externalID := fieldString(payload, "id", "order_id")
	if externalID == "" {
		return &perrors.ValidationError{Message: "order payload has no id"}
	}

	var (
		order *models.Order
		isNew bool
	)
	err := e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Order.GetByExternalID(ctx, account.ID, externalID)
		if err != nil {
			var nf *perrors.NotFoundError
			if !errors.As(err, &nf) {
				return err
			}
			existing = &models.Order{
				AccountID:       account.ID,
				ExternalOrderID: externalID,
				OrderNumber:     fmt.Sprintf("TT-%s", uuid.New().String()[:8]),
			}
			isNew = true
		}

		e.applyOrderFields(existing, payload, isNew)
		if err := tx.Order.Save(ctx, existing); err != nil {
			return err
		}
		if err := e.reconcileItems(ctx, tx, existing, payload); err != nil {
			return err
		}

		eventType := "updated"
		if isNew {
			eventType = "imported"
		}
		if err := tx.Order.AddEvent(ctx, &models.OrderEvent{
			OrderID:   existing.ID,
			EventType: eventType,
			Message:   fmt.Sprintf("synced from %s (status %s)", account.Platform, existing.Status),
		}); err != nil {
			return err
		}
		order = existing
		return nil
	})
	if err != nil {
		return err
	}

	if isNew {
		result.Imported++
	} else {
		result.Updated++
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.Linked() {
			continue
		}
		linked, err := e.linker.LinkItemToMapping(ctx, item, account.Platform, account.ID)
		if err != nil {
			e.logger.Warn("item link failed",
				zap.Uint("order_id", order.ID),
				zap.String("sku", item.ExternalSKU),
				zap.Error(err))
			continue
		}
		if linked {
			result.ItemsLinked++
		}
	}

	if order.Shippable() {
		summary, err := e.linker.DeductStockForOrder(ctx, order)
		if err != nil {
			return err
		}
		result.Deducted += summary.Deducted
		for _, msg := range summary.Errors {
			if len(result.Errors) < 20 {
				result.Errors = append(result.Errors, msg)
			}
		}
	}
	return nil
}

func (e *OrderSyncEngine) applyOrderFields(order *models.Order, payload map[string]interface{}, isNew bool) {
	order.Status = mapOrderStatus(fieldString(payload, "status", "order_status"))
	order.Currency = fieldString(payload, "currency")

	if payment := fieldMap(payload, "payment"); payment != nil {
		order.TotalAmount = decimal.NewFromFloat(fieldAmount(payment, "total_amount", "total"))
		order.ShippingAmount = decimal.NewFromFloat(fieldAmount(payment, "shipping_fee"))
		if order.Currency == "" {
			order.Currency = fieldString(payment, "currency")
		}
	} else {
		order.TotalAmount = decimal.NewFromFloat(fieldAmount(payload, "total_amount", "payment_amount"))
		order.ShippingAmount = decimal.NewFromFloat(fieldAmount(payload, "shipping_fee"))
	}

	if recipient := fieldMap(payload, "recipient_address"); recipient != nil {
		if name := fieldString(recipient, "name"); name != "" {
			order.CustomerName = name
		}
		// A phone edited locally sticks; sync only fills an empty slot.
		if order.CustomerPhone == "" {
			order.CustomerPhone = maskPhone(fieldString(recipient, "phone_number", "phone"))
		}
	} else if order.CustomerPhone == "" {
		order.CustomerPhone = maskPhone(fieldString(payload, "buyer_phone", "phone"))
	}

	if ts := fieldInt64(payload, "create_time", "created_at"); ts > 0 && isNew {
		placed := time.Unix(ts, 0).UTC()
		order.PlacedAt = &placed
	}
}

// reconcileItems upserts incoming line items by external SKU and prunes
// stored items that vanished upstream. Pruning only happens when both the
// stored and incoming SKU sets are non-empty, so a malformed page can never
// wipe an order's items.
func (e *OrderSyncEngine) reconcileItems(ctx context.Context, tx *repository.Repositories, order *models.Order, payload map[string]interface{}) error {
	incoming := fieldSlice(payload, "line_items")
	if incoming == nil {
		incoming = fieldSlice(payload, "items")
	}

	existingBySKU := make(map[string]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		existingBySKU[order.Items[i].ExternalSKU] = &order.Items[i]
	}

	incomingSKUs := make(map[string]bool, len(incoming))
	var reconciled []models.OrderItem
	for _, raw := range incoming {
		sku := fieldString(raw, "seller_sku", "sku_id", "sku")
		if sku == "" {
			continue
		}
		// Duplicate SKUs on one order collapse into the first occurrence.
		if incomingSKUs[sku] {
			continue
		}
		incomingSKUs[sku] = true

		item := existingBySKU[sku]
		if item == nil {
			item = &models.OrderItem{
				OrderID:     order.ID,
				ExternalSKU: sku,
			}
		}
		item.ExternalProductID = fieldString(raw, "product_id")
		item.Name = fieldString(raw, "product_name", "name")
		if qty := fieldInt(raw, "quantity"); qty > 0 {
			item.Quantity = qty
		} else if item.Quantity == 0 {
			item.Quantity = 1
		}
		item.Price = decimal.NewFromFloat(fieldAmount(raw, "sale_price", "original_price", "price"))

		if err := tx.Order.SaveItem(ctx, item); err != nil {
			return err
		}
		reconciled = append(reconciled, *item)
	}

	if len(existingBySKU) > 0 && len(incomingSKUs) > 0 {
		for sku, item := range existingBySKU {
			if incomingSKUs[sku] {
				continue
			}
			if err := tx.Order.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
		}
	} else {
		// Keep unmatched stored items when the incoming set is empty.
		for sku, item := range existingBySKU {
			if !incomingSKUs[sku] {
				reconciled = append(reconciled, *item)
			}
		}
	}
	order.Items = reconciled
	return nil
}

// mapOrderStatus translates provider order states to local ones. Unknown
// states land in pending so they surface for review rather than vanish.
func mapOrderStatus(providerStatus string) models.OrderStatus {
	switch providerStatus {
	case "UNPAID", "unpaid":
		return models.OrderStatusPending
	case "AWAITING_SHIPMENT", "awaiting_shipment":
		return models.OrderStatusConfirmed
	case "AWAITING_COLLECTION", "awaiting_collection", "PARTIALLY_SHIPPING", "partially_shipping":
		return models.OrderStatusProcessing
	case "IN_TRANSIT", "in_transit":
		return models.OrderStatusShipped
	case "DELIVERED", "delivered":
		return models.OrderStatusDelivered
	case "COMPLETED", "completed":
		return models.OrderStatusCompleted
	case "CANCELLED", "cancelled", "CANCELLED_BY_BUYER", "CANCELLED_BY_SELLER":
		return models.OrderStatusCancelled
	default:
		return models.OrderStatusPending
	}
}
