package worker

import "time"

const Topic = "sync-jobs"

const (
	JobSyncOrders    = "sync_orders"
	JobSyncProducts  = "sync_products"
	JobRefreshTokens = "refresh_tokens"
)

// Job is one queued sync request. Options are job-type specific.
type Job struct {
	Type      string                 `json:"type"`
	AccountID uint                   `json:"account_id"`
	Options   map[string]interface{} `json:"options,omitempty"`
	QueuedAt  time.Time              `json:"queued_at"`
}
