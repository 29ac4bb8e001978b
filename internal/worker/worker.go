package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository"
	"shopsync/internal/services/tiktok"
)

// Worker consumes sync jobs and runs them against the sync engines.
type Worker struct {
	reader   *kafka.Reader
	repos    *repository.Repositories
	orders   *tiktok.OrderSyncEngine
	products *tiktok.ProductSyncEngine
	auth     *tiktok.AuthManager
	logger   *zap.Logger
}

func New(brokers string, repos *repository.Repositories, orders *tiktok.OrderSyncEngine, products *tiktok.ProductSyncEngine, auth *tiktok.AuthManager, logger *zap.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{brokers},
		GroupID:        "shopsync-worker",
		Topic:          Topic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &Worker{
		reader:   reader,
		repos:    repos,
		orders:   orders,
		products: products,
		auth:     auth,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("worker started, listening for sync jobs")

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to read message", zap.Error(err))
			continue
		}

		var job Job
		if err := json.Unmarshal(message.Value, &job); err != nil {
			w.logger.Error("failed to parse job", zap.Error(err))
			continue
		}

		if err := w.process(ctx, job); err != nil {
			w.logger.Error("job failed",
				zap.String("type", job.Type),
				zap.Uint("account_id", job.AccountID),
				zap.Error(err))
			continue
		}
		w.logger.Debug("job processed",
			zap.String("type", job.Type),
			zap.Uint("account_id", job.AccountID))
	}
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	w.reader.Close()
}

func (w *Worker) process(ctx context.Context, job Job) error {
	switch job.Type {
	case JobSyncOrders:
		account, err := w.repos.Account.GetByID(ctx, job.AccountID)
		if err != nil {
			return err
		}
		opts := tiktok.OrderSyncOptions{}
		if days, ok := job.Options["days"].(float64); ok {
			opts.Days = int(days)
		}
		if status, ok := job.Options["status"].(string); ok {
			opts.Status = status
		}
		result, err := w.orders.SyncOrders(ctx, account, opts)
		if err != nil {
			return err
		}
		w.logger.Info("order sync finished",
			zap.Uint("account_id", account.ID),
			zap.Int("imported", result.Imported),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed))
		return nil

	case JobSyncProducts:
		account, err := w.repos.Account.GetByID(ctx, job.AccountID)
		if err != nil {
			return err
		}
		result, err := w.products.SyncProducts(ctx, account)
		if err != nil {
			return err
		}
		w.logger.Info("product sync finished",
			zap.Uint("account_id", account.ID),
			zap.Int("auto_linked", result.AutoLinked),
			zap.Int("queued", result.Queued),
			zap.Int("failed", result.Failed))
		return nil

	case JobRefreshTokens:
		accounts, err := w.repos.Account.ListActive(ctx, models.PlatformTikTok)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if !w.auth.NeedsTokenRefresh(ctx, account) {
				continue
			}
			if !w.auth.RefreshToken(ctx, account) {
				w.logger.Warn("token refresh failed",
					zap.Uint("account_id", account.ID))
			}
		}
		return nil

	default:
		w.logger.Warn("unknown job type", zap.String("type", job.Type))
		return nil
	}
}
