package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	"shopsync/internal/worker"
)

// Enqueuer abstracts the job queue so the API can run without kafka in
// development.
type Enqueuer interface {
	Enqueue(ctx context.Context, job worker.Job) error
}

type SyncHandler struct {
	repos    *repository.Repositories
	producer Enqueuer
	tracker  *progress.Tracker
	logger   *zap.Logger
}

func NewSyncHandler(repos *repository.Repositories, producer Enqueuer, tracker *progress.Tracker, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{repos: repos, producer: producer, tracker: tracker, logger: logger}
}

// SyncOrders queues an order sync for the account.
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}

	var body struct {
		Days   int    `json:"days"`
		Status string `json:"status"`
	}
	// Body is optional; defaults come from config.
	_ = c.ShouldBindJSON(&body)

	job := worker.Job{
		Type:      worker.JobSyncOrders,
		AccountID: account.ID,
		Options:   map[string]interface{}{},
	}
	if body.Days > 0 {
		job.Options["days"] = body.Days
	}
	if body.Status != "" {
		job.Options["status"] = body.Status
	}

	if err := h.producer.Enqueue(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to enqueue order sync",
			zap.Uint("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "order sync queued",
		"progress": "/api/v1/tiktok/accounts/" + c.Param("id") + "/progress/orders",
	})
}

// SyncProducts queues a product sync for the account.
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}

	job := worker.Job{
		Type:      worker.JobSyncProducts,
		AccountID: account.ID,
	}
	if err := h.producer.Enqueue(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to enqueue product sync",
			zap.Uint("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "product sync queued",
		"progress": "/api/v1/tiktok/accounts/" + c.Param("id") + "/progress/products",
	})
}

// Progress returns the published sync state for polling. An absent entry
// reads as idle.
func (h *SyncHandler) Progress(c *gin.Context) {
	account, ok := h.loadAccount(c)
	if !ok {
		return
	}
	kind := c.Param("kind")
	if kind != "orders" && kind != "products" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync kind"})
		return
	}

	state, err := h.tracker.Get(c.Request.Context(), kind, account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if state == nil {
		c.JSON(http.StatusOK, gin.H{"status": progress.StatusIdle})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *SyncHandler) loadAccount(c *gin.Context) (*models.Account, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return nil, false
	}
	account, err := h.repos.Account.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return account, true
}
