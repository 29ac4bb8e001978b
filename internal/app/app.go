// Package app wires the shared object graph the binaries boot from.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/crypto"
	"shopsync/internal/database"
	"shopsync/internal/logger"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	"shopsync/internal/repository/gormstore"
	"shopsync/internal/services/tiktok"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *database.Database
	Repos   *repository.Repositories
	Cipher  crypto.Cipher
	Clock   tiktok.Clock
	Tracker *progress.Tracker

	Auth     *tiktok.AuthManager
	Clients  *tiktok.ClientFactory
	Matcher  *tiktok.Matcher
	Linker   *tiktok.Linker
	Orders   *tiktok.OrderSyncEngine
	Products *tiktok.ProductSyncEngine
}

// New builds the full graph. Progress falls back to an in-process store when
// redis is unreachable; everything else is fatal.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repos := gormstore.New(db.DB)

	cipher, err := crypto.NewAES(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	var store progress.Store
	if redisStore, err := progress.NewRedisStore(cfg.RedisURL); err == nil {
		store = redisStore
	} else {
		log.Warn("redis unavailable, using in-process progress store", zap.Error(err))
		store = progress.NewMemoryStore()
	}
	tracker := progress.NewTracker(store)

	clock := tiktok.SystemClock
	auth := tiktok.NewAuthManager(cfg, repos, cipher, clock, log)
	clients := tiktok.NewClientFactory(cfg, repos, cipher, clock, log)
	matcher := tiktok.NewMatcher(repos, cfg.MatchThreshold, log)
	linker := tiktok.NewLinker(repos, clock, log)
	orders := tiktok.NewOrderSyncEngine(cfg, repos, clients, auth, linker, tracker, clock, log)
	products := tiktok.NewProductSyncEngine(cfg, repos, clients, auth, matcher, tracker, clock, log)

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Repos:    repos,
		Cipher:   cipher,
		Clock:    clock,
		Tracker:  tracker,
		Auth:     auth,
		Clients:  clients,
		Matcher:  matcher,
		Linker:   linker,
		Orders:   orders,
		Products: products,
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Logger != nil {
		a.Logger.Sync()
	}
}
