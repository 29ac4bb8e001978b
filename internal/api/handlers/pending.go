package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository"
)

// PendingHandler serves the product review queue.
type PendingHandler struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewPendingHandler(repos *repository.Repositories, logger *zap.Logger) *PendingHandler {
	return &PendingHandler{repos: repos, logger: logger}
}

// List returns review-queue rows for an account, filtered by status.
func (h *PendingHandler) List(c *gin.Context) {
	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	status := models.PendingProductStatus(c.DefaultQuery("status", string(models.PendingStatusPending)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := h.repos.PendingProduct.ListByStatus(c.Request.Context(), uint(accountID), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_products": rows})
}

// Approve links a pending product to an internal target. The body may name
// the target explicitly; otherwise the stored suggestion is used.
func (h *PendingHandler) Approve(c *gin.Context) {
	pending, ok := h.loadPending(c)
	if !ok {
		return
	}
	if pending.Status != models.PendingStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "pending product already reviewed"})
		return
	}

	var body struct {
		ProductID *uint `json:"product_id"`
		VariantID *uint `json:"variant_id"`
		PackageID *uint `json:"package_id"`
	}
	_ = c.ShouldBindJSON(&body)

	productID := body.ProductID
	variantID := body.VariantID
	packageID := body.PackageID
	if productID == nil && packageID == nil {
		productID = pending.SuggestedProductID
		variantID = pending.SuggestedVariantID
		packageID = pending.SuggestedPackageID
	}
	if (productID != nil) == (packageID != nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of product_id or package_id is required"})
		return
	}

	account, err := h.repos.Account.GetByID(c.Request.Context(), pending.AccountID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	err = h.repos.Transaction(c.Request.Context(), func(tx *repository.Repositories) error {
		accountID := account.ID
		mapping := &models.SkuMapping{
			Platform:          account.Platform,
			AccountID:         &accountID,
			ExternalSKU:       pending.ExternalSKU,
			ExternalProductID: pending.ExternalProductID,
			ProductID:         productID,
			VariantID:         variantID,
			PackageID:         packageID,
			MatchConfidence:   pending.MatchConfidence,
			MatchReason:       "manual_review",
			IsActive:          true,
		}
		if err := tx.SkuMapping.Upsert(c.Request.Context(), mapping); err != nil {
			return err
		}

		now := time.Now()
		pending.Status = models.PendingStatusLinked
		pending.SuggestedProductID = productID
		pending.SuggestedVariantID = variantID
		pending.SuggestedPackageID = packageID
		pending.ReviewedAt = &now
		return tx.PendingProduct.Save(c.Request.Context(), pending)
	})
	if err != nil {
		h.logger.Error("approve failed",
			zap.Uint("pending_id", pending.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending_product": pending})
}

// Reject marks the row rejected so future syncs leave it alone.
func (h *PendingHandler) Reject(c *gin.Context) {
	pending, ok := h.loadPending(c)
	if !ok {
		return
	}
	if pending.Status != models.PendingStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "pending product already reviewed"})
		return
	}

	now := time.Now()
	pending.Status = models.PendingStatusRejected
	pending.ReviewedAt = &now
	if err := h.repos.PendingProduct.Save(c.Request.Context(), pending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_product": pending})
}

func (h *PendingHandler) loadPending(c *gin.Context) (*models.PendingProduct, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pending product id"})
		return nil, false
	}
	pending, err := h.repos.PendingProduct.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return pending, true
}
