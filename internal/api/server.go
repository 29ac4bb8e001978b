package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/internal/api/handlers"
	"shopsync/internal/api/middleware"
	"shopsync/internal/config"
	"shopsync/internal/progress"
	"shopsync/internal/repository"
	"shopsync/internal/services/tiktok"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *zap.Logger, repos *repository.Repositories, auth *tiktok.AuthManager, producer handlers.Enqueuer, tracker *progress.Tracker) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	tiktokHandler := handlers.NewTikTokHandler(repos, auth, logger)
	syncHandler := handlers.NewSyncHandler(repos, producer, tracker, logger)
	pendingHandler := handlers.NewPendingHandler(repos, logger)

	v1 := router.Group("/api/v1")
	{
		tt := v1.Group("/tiktok")
		{
			tt.GET("/install", tiktokHandler.Install)
			tt.GET("/callback", tiktokHandler.Callback)

			accounts := tt.Group("/accounts")
			{
				accounts.GET("", tiktokHandler.ListAccounts)
				accounts.GET("/:id", tiktokHandler.GetAccount)
				accounts.POST("/:id/disconnect", tiktokHandler.Disconnect)
				accounts.POST("/:id/sync/orders", syncHandler.SyncOrders)
				accounts.POST("/:id/sync/products", syncHandler.SyncProducts)
				accounts.GET("/:id/progress/:kind", syncHandler.Progress)
				accounts.GET("/:id/pending-products", pendingHandler.List)
			}

			pending := tt.Group("/pending-products")
			{
				pending.POST("/:id/approve", pendingHandler.Approve)
				pending.POST("/:id/reject", pendingHandler.Reject)
			}
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
