package tiktok

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/models"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

// ProductSyncResult summarizes one catalog sync run. Every product lands in
// exactly one counter.
type ProductSyncResult struct {
	AlreadyLinked int      `json:"already_linked"`
	AutoLinked    int      `json:"auto_linked"`
	Queued        int      `json:"queued"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors,omitempty"`
}

func (r *ProductSyncResult) summary() map[string]interface{} {
	return map[string]interface{}{
		"already_linked": r.AlreadyLinked,
		"auto_linked":    r.AutoLinked,
		"queued":         r.Queued,
		"skipped":        r.Skipped,
		"failed":         r.Failed,
	}
}

// ProductSyncEngine walks the marketplace catalog, auto-links what it can
// and queues the rest for human review. A single product failure never
// aborts the batch.
type ProductSyncEngine struct {
	cfg     *config.Config
	repos   *repository.Repositories
	clients ClientProvider
	auth    *AuthManager
	matcher *Matcher
	tracker *progress.Tracker
	clock   Clock
	logger  *zap.Logger
}

func NewProductSyncEngine(cfg *config.Config, repos *repository.Repositories, clients ClientProvider, auth *AuthManager, matcher *Matcher, tracker *progress.Tracker, clock Clock, logger *zap.Logger) *ProductSyncEngine {
	return &ProductSyncEngine{
		cfg:     cfg,
		repos:   repos,
		clients: clients,
		auth:    auth,
		matcher: matcher,
		tracker: tracker,
		clock:   clock,
		logger:  logger,
	}
}

// SyncProducts pulls the catalog page by page up to the configured page cap.
func (e *ProductSyncEngine) SyncProducts(ctx context.Context, account *models.Account) (*ProductSyncResult, error) {
	e.tracker.Start(ctx, "products", account.ID)

	if e.auth.NeedsTokenRefresh(ctx, account) {
		if !e.auth.RefreshToken(ctx, account) && e.auth.CredentialExpired(ctx, account) {
			err := &perrors.CredentialError{AccountID: account.ID, Message: "credential expired and refresh failed"}
			e.tracker.Fail(ctx, "products", account.ID, err.Error())
			return nil, err
		}
	}

	client, err := e.clients.ClientFor(ctx, account)
	if err != nil {
		e.tracker.Fail(ctx, "products", account.ID, err.Error())
		return nil, err
	}

	result := &ProductSyncResult{}
	pageToken := ""
	for pageNum := 1; pageNum <= e.cfg.ProductSyncMaxPages; pageNum++ {
		page, err := client.GetProducts(ctx, pageToken, 100)
		if err != nil {
			e.tracker.Fail(ctx, "products", account.ID, err.Error())
			return nil, fmt.Errorf("product search failed: %w", err)
		}

		for _, payload := range page.Products {
			if err := e.syncSingleProduct(ctx, account, payload, result); err != nil {
				result.Failed++
				if len(result.Errors) < 20 {
					result.Errors = append(result.Errors, err.Error())
				}
				e.logger.Error("product sync failed",
					zap.Uint("account_id", account.ID),
					zap.String("external_product_id", fieldString(payload, "id", "product_id")),
					zap.Error(err))
			}
		}

		percent := pageNum * 100 / e.cfg.ProductSyncMaxPages
		if page.NextPageToken == "" {
			percent = 99
		}
		e.tracker.Update(ctx, "products", account.ID, percent,
			fmt.Sprintf("processed page %d", pageNum))

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	syncedAt := e.clock.Now()
	account.LastProductSyncAt = &syncedAt
	if err := e.repos.Account.Save(ctx, account); err != nil {
		e.logger.Warn("failed to record sync timestamp",
			zap.Uint("account_id", account.ID), zap.Error(err))
	}

	e.tracker.Complete(ctx, "products", account.ID, result.summary())
	return result, nil
}

// syncSingleProduct classifies one product: already linked, auto-linked,
// queued for review, or skipped when it carries nothing to match on.
func (e *ProductSyncEngine) syncSingleProduct(ctx context.Context, account *models.Account, payload map[string]interface{}, result *ProductSyncResult) error {
	ext := extractExternalProduct(payload)
	if ext.ID == "" || (ext.SKU == "" && ext.Barcode == "" && ext.Name == "") {
		result.Skipped++
		return nil
	}

	linked, err := e.existingMapping(ctx, account, ext)
	if err != nil {
		return err
	}
	if linked != nil {
		if err := e.settlePendingRow(ctx, account, ext, linked); err != nil {
			return err
		}
		result.AlreadyLinked++
		return nil
	}

	match, err := e.matcher.Match(ctx, account.Platform, account.ID, ext)
	if err != nil {
		return err
	}

	if ShouldAutoLink(match) {
		return e.autoLink(ctx, account, ext, match, result)
	}
	return e.queueForReview(ctx, account, ext, match, payload, result)
}

// existingMapping resolves an active mapping by external product id or SKU.
func (e *ProductSyncEngine) existingMapping(ctx context.Context, account *models.Account, ext ExternalProduct) (*models.SkuMapping, error) {
	var nf *perrors.NotFoundError
	mapping, err := e.repos.SkuMapping.ActiveByExternalProductID(ctx, account.Platform, account.ID, ext.ID)
	if err == nil {
		return mapping, nil
	}
	if !errors.As(err, &nf) {
		return nil, err
	}
	if ext.SKU == "" {
		return nil, nil
	}
	mapping, err = e.repos.SkuMapping.ActiveBySKU(ctx, account.Platform, account.ID, ext.SKU)
	if err == nil {
		return mapping, nil
	}
	if errors.As(err, &nf) {
		return nil, nil
	}
	return nil, err
}

// settlePendingRow marks a still-pending review row linked once a mapping
// already covers the product.
func (e *ProductSyncEngine) settlePendingRow(ctx context.Context, account *models.Account, ext ExternalProduct, mapping *models.SkuMapping) error {
	pending, err := e.repos.PendingProduct.GetByExternalID(ctx, account.ID, ext.ID)
	if err != nil {
		var nf *perrors.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	if pending.Status != models.PendingStatusPending {
		return nil
	}
	now := e.clock.Now()
	pending.Status = models.PendingStatusLinked
	pending.SuggestedProductID = mapping.ProductID
	pending.SuggestedVariantID = mapping.VariantID
	pending.SuggestedPackageID = mapping.PackageID
	pending.MatchConfidence = mapping.MatchConfidence
	pending.MatchReason = mapping.MatchReason
	pending.ReviewedAt = &now
	return e.repos.PendingProduct.Save(ctx, pending)
}

func (e *ProductSyncEngine) autoLink(ctx context.Context, account *models.Account, ext ExternalProduct, match *MatchResult, result *ProductSyncResult) error {
	err := e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		accountID := account.ID
		mapping := &models.SkuMapping{
			Platform:          account.Platform,
			AccountID:         &accountID,
			ExternalSKU:       ext.SKU,
			ExternalProductID: ext.ID,
			ProductID:         match.ProductID,
			VariantID:         match.VariantID,
			PackageID:         match.PackageID,
			MatchConfidence:   match.Confidence,
			MatchReason:       match.Reason,
			IsActive:          true,
		}
		if err := tx.SkuMapping.Upsert(ctx, mapping); err != nil {
			return err
		}

		// A pending row from an earlier run resolves itself.
		pending, err := tx.PendingProduct.GetByExternalID(ctx, account.ID, ext.ID)
		if err != nil {
			var nf *perrors.NotFoundError
			if errors.As(err, &nf) {
				return nil
			}
			return err
		}
		now := e.clock.Now()
		pending.Status = models.PendingStatusLinked
		pending.SuggestedProductID = match.ProductID
		pending.SuggestedVariantID = match.VariantID
		pending.SuggestedPackageID = match.PackageID
		pending.MatchConfidence = match.Confidence
		pending.MatchReason = match.Reason
		pending.ReviewedAt = &now
		return tx.PendingProduct.Save(ctx, pending)
	})
	if err != nil {
		return err
	}
	result.AutoLinked++
	return nil
}

func (e *ProductSyncEngine) queueForReview(ctx context.Context, account *models.Account, ext ExternalProduct, match *MatchResult, payload map[string]interface{}, result *ProductSyncResult) error {
	// Rows a reviewer already acted on are not re-queued.
	if existing, err := e.repos.PendingProduct.GetByExternalID(ctx, account.ID, ext.ID); err == nil {
		if existing.Status != models.PendingStatusPending {
			result.Skipped++
			return nil
		}
	} else {
		var nf *perrors.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
	}

	pending := &models.PendingProduct{
		AccountID:         account.ID,
		ExternalProductID: ext.ID,
		ExternalSKU:       ext.SKU,
		Name:              ext.Name,
		Status:            models.PendingStatusPending,
		Payload:           payload,
	}
	if ShouldSuggest(match) {
		pending.SuggestedProductID = match.ProductID
		pending.SuggestedVariantID = match.VariantID
		pending.SuggestedPackageID = match.PackageID
		pending.MatchConfidence = match.Confidence
		pending.MatchReason = match.Reason
	}
	if err := e.repos.PendingProduct.Upsert(ctx, pending); err != nil {
		return err
	}
	result.Queued++
	return nil
}

// extractExternalProduct flattens the provider payload. The first SKU entry
// carries the sellable identity; barcode lives on the SKU when present.
func extractExternalProduct(payload map[string]interface{}) ExternalProduct {
	ext := ExternalProduct{
		ID:   fieldString(payload, "id", "product_id"),
		Name: fieldString(payload, "title", "product_name", "name"),
	}
	if skus := fieldSlice(payload, "skus"); len(skus) > 0 {
		first := skus[0]
		ext.SKU = fieldString(first, "seller_sku", "sku")
		ext.Barcode = fieldString(first, "barcode", "ean", "upc")
		if price := fieldMap(first, "price"); price != nil {
			ext.Price = fieldAmount(price, "sale_price", "original_price", "amount")
		} else {
			ext.Price = fieldAmount(first, "sale_price", "price")
		}
	}
	if ext.SKU == "" {
		ext.SKU = fieldString(payload, "seller_sku", "sku")
	}
	return ext
}
