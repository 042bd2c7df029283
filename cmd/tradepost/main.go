package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewind-labs/tradepost/api"
	"github.com/tradewind-labs/tradepost/internal/admin"
	"github.com/tradewind-labs/tradepost/internal/auth"
	"github.com/tradewind-labs/tradepost/internal/config"
	"github.com/tradewind-labs/tradepost/internal/database"
	"github.com/tradewind-labs/tradepost/internal/marketplace"
	"github.com/tradewind-labs/tradepost/internal/notification"
	"github.com/tradewind-labs/tradepost/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tradepost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	log, err := logger.NewLogger(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go database.MonitorPool(monitorCtx, db, cfg.Database.Driver)

	notifier := buildNotifier(log, cfg)

	market, err := marketplace.NewService(log, db, notifier)
	if err != nil {
		return fmt.Errorf("failed to create marketplace service: %w", err)
	}
	adminSvc, err := admin.NewService(log, db, market)
	if err != nil {
		return fmt.Errorf("failed to create admin service: %w", err)
	}

	if err := market.Start(); err != nil {
		return err
	}
	if err := adminSvc.Start(); err != nil {
		return err
	}

	authManager := auth.NewManager(cfg.Auth.JWTSecret)
	server, err := api.NewServer(log, cfg, authManager, market, adminSvc)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	_ = adminSvc.Stop()
	_ = market.Stop()
	log.Info("Shutdown complete")
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return database.NewPostgresDB(cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	case "sqlite":
		return database.NewSQLiteDB(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// buildNotifier composes the configured notification transports. Both are
// optional; with neither configured, transitions run silently.
func buildNotifier(log *zap.Logger, cfg *config.Config) notification.Notifier {
	var transports notification.Multi

	if cfg.Discord.WebhookURL != "" {
		transports = append(transports, notification.NewDiscord(log, cfg.Discord.WebhookURL, nil))
		log.Info("Discord webhook notifications enabled")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, event stream disabled",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = client.Close()
		} else {
			transports = append(transports, notification.NewEventStream(log, client, cfg.Redis.Channel))
			log.Info("Redis event stream enabled", zap.String("channel", cfg.Redis.Channel))
		}
	}

	if len(transports) == 0 {
		return notification.Nop{}
	}
	return transports
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
