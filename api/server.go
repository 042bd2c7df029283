package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradepost/api/handlers"
	"github.com/tradewind-labs/tradepost/internal/admin"
	"github.com/tradewind-labs/tradepost/internal/auth"
	"github.com/tradewind-labs/tradepost/internal/config"
	"github.com/tradewind-labs/tradepost/internal/marketplace"
)

// Server is the HTTP front of the marketplace.
type Server struct {
	logger *zap.Logger
	cfg    *config.Config
	http   *http.Server
}

// NewServer wires the gin engine: logging and recovery, CORS, rate
// limiting, the metrics and health endpoints, and the versioned API routes.
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	authManager *auth.Manager,
	market *marketplace.Service,
	adminSvc *admin.Service,
) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	rate, err := limiter.NewRateFromFormatted(cfg.Server.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", cfg.Server.RateLimit, err)
	}
	router.Use(mgin.NewMiddleware(limiter.New(memory.NewStore(), rate)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	marketHandler := handlers.NewMarketplaceHandler(logger, market)
	adminHandler := handlers.NewAdminHandler(logger, adminSvc)

	v1 := router.Group("/api/v1")
	{
		mkt := v1.Group("/marketplace")
		{
			mkt.GET("/listings", marketHandler.BrowseListings)
			mkt.GET("/listings/:id", marketHandler.GetListing)
			mkt.GET("/profiles/:id", marketHandler.GetSellerProfile)

			authed := mkt.Group("", authManager.Middleware())
			{
				authed.POST("/listings", marketHandler.CreateListing)
				authed.PUT("/listings/:id", marketHandler.UpdateListing)
				authed.DELETE("/listings/:id", marketHandler.RemoveListing)
				authed.GET("/listings/:id/offers", marketHandler.ListListingOffers)
				authed.GET("/my/listings", marketHandler.ListOwnListings)
				authed.GET("/my/offers", marketHandler.ListOwnOffers)
				authed.GET("/my/trades", marketHandler.ListPendingTrades)

				authed.POST("/listings/:id/offers", marketHandler.CreateOffer)
				authed.POST("/offers/:id/accept", marketHandler.AcceptOffer)
				authed.POST("/offers/:id/reject", marketHandler.RejectOffer)

				authed.POST("/trades/:id/confirm", marketHandler.ConfirmTrade)
				authed.POST("/trades/:id/cancel", marketHandler.CancelTrade)
			}
		}

		adm := v1.Group("/admin", authManager.Middleware(), auth.RequireAdmin())
		{
			adm.GET("/dashboard", adminHandler.Dashboard)
			adm.GET("/trades", adminHandler.ListTrades)
			adm.POST("/trades/:id/force-close", adminHandler.ForceCloseTrade)
			adm.POST("/listings/:id/close", adminHandler.CloseListing)
			adm.GET("/actions", adminHandler.ListActions)
		}
	}

	return &Server{
		logger: logger,
		cfg:    cfg,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}, nil
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
