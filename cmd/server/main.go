package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/cart"
	"storefront/internal/commons"
	"storefront/internal/docstore"
	"storefront/internal/identity"
	"storefront/internal/infrastructure/logger"
	"storefront/internal/infrastructure/mysql"
	"storefront/internal/order"
	"storefront/internal/product"
	"storefront/internal/server"

	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "internal/config/config.yaml"
	}

	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, "storefront")
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	orderModule, err := order.NewModule(db, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("building order module", zap.Error(err))
	}
	defer func() {
		if err := orderModule.Close(); err != nil {
			zapLogger.Error("closing order module", zap.Error(err))
		}
	}()

	if cfg.Auth.JWTSecret == "" {
		zapLogger.Warn("AUTH_JWT_SECRET not set, bearer tokens will be rejected")
	}

	router := server.NewRouter(server.RouterConfig{
		Auth:         identity.NewMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer, zapLogger),
		Products:     product.NewModule(db, cfg.Checkout.Currency, zapLogger),
		Carts:        cart.NewModule(docstore.NewMySQLStore(db), zapLogger),
		Orders:       orderModule,
		PaymentLimit: server.NewIPRateLimiter(cfg.Server.CallbackRateLimit, cfg.Server.CallbackBurst),
	})

	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-quit:
		zapLogger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			zapLogger.Error("server error", zap.Error(err))
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
		return
	}

	zapLogger.Info("server stopped gracefully")
}
