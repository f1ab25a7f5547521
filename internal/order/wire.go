package order

import (
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/docstore"
	"storefront/internal/gateway"
	"storefront/internal/infrastructure/redis"
	"storefront/internal/ledger/sqlite"
	"storefront/internal/order/controller"
	orderrepo "storefront/internal/order/repository"
	"storefront/internal/order/service"
	"storefront/internal/order/usecase"
	productrepo "storefront/internal/product/repository"
)

// Module holds the order controllers plus the use cases the reconcile CLI
// drives directly.
type Module struct {
	Checkout *controller.CheckoutController
	Payments *controller.PaymentController
	Orders   *controller.OrderController
	Sweep    *controller.SweepController

	Reconciler *usecase.ReconcileUseCase
	Sweeper    *usecase.SweepUseCase

	ledger *sqlite.Repository
	cache  redis.Cache
}

func NewModule(db *sql.DB, cfg *config.Config, logger *zap.Logger) (*Module, error) {
	orderRepo := orderrepo.NewMySQLOrderRepository(db)
	productRepo := productrepo.NewMySQLRepository(db)
	cartRepo := cart.NewRepository(docstore.NewMySQLStore(db))

	ledgerRepo, err := sqlite.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("opening payment ledger: %w", err)
	}

	var cache redis.Cache
	if cfg.Redis.Addr != "" {
		cache, err = redis.NewRedisCache(cfg.Redis)
		if err != nil {
			_ = ledgerRepo.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
	} else {
		logger.Warn("redis not configured, verification lock disabled")
		cache = redis.NewNoopCache(cfg.Redis.KeyPrefix)
	}

	gw := gateway.NewTelrClient(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Timeout}, logger)
	pricing := service.NewPricingPolicy(cfg.Checkout)

	fulfillment := service.NewFulfillmentService(
		db,
		productRepo,
		logger,
		cfg.Order.FulfillmentTxTimeout,
		cfg.Order.MaxRetryAttempts,
	)

	checkoutUC := usecase.NewCheckoutUseCase(
		orderRepo,
		productRepo,
		cartRepo,
		gw,
		pricing,
		usecase.CheckoutOptions{
			SiteURL:            cfg.Checkout.SiteURL,
			Description:        cfg.Checkout.Description,
			IDPrefix:           cfg.Order.IDPrefix,
			PersistMaxAttempts: cfg.Reconcile.PersistMaxAttempts,
			PersistBackoff:     cfg.Reconcile.PersistBackoff,
		},
		logger,
	)

	reconcileUC := usecase.NewReconcileUseCase(
		orderRepo,
		gw,
		ledgerRepo,
		cache,
		usecase.ReconcileOptions{
			VerifyTimeout:      cfg.Reconcile.VerifyTimeout,
			PersistMaxAttempts: cfg.Reconcile.PersistMaxAttempts,
			PersistBackoff:     cfg.Reconcile.PersistBackoff,
			LockTTL:            cfg.Reconcile.LockTTL,
			SettleTimeout:      cfg.Reconcile.SettleTimeout,
		},
		logger,
		fulfillment,
	)

	sweepUC := usecase.NewSweepUseCase(
		orderRepo,
		reconcileUC,
		usecase.SweepOptions{
			Concurrency: cfg.Reconcile.SweepConcurrency,
			BatchSize:   cfg.Reconcile.SweepBatchSize,
			MinAge:      cfg.Reconcile.SweepMinAge,
		},
		logger,
	)

	refundUC := usecase.NewRefundUseCase(orderRepo, gw, ledgerRepo, logger)
	queryUC := usecase.NewOrderQueryUseCase(orderRepo, ledgerRepo)

	return &Module{
		Checkout:   controller.NewCheckoutController(checkoutUC, logger),
		Payments:   controller.NewPaymentController(reconcileUC, logger),
		Orders:     controller.NewOrderController(queryUC, refundUC, logger),
		Sweep:      controller.NewSweepController(sweepUC, logger),
		Reconciler: reconcileUC,
		Sweeper:    sweepUC,
		ledger:     ledgerRepo,
		cache:      cache,
	}, nil
}

// Close releases the ledger database and the Redis connection.
func (m *Module) Close() error {
	cacheErr := m.cache.Close()
	if err := m.ledger.Close(); err != nil {
		return fmt.Errorf("closing payment ledger: %w", err)
	}
	return cacheErr
}
