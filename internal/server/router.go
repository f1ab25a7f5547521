package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/order"
	"storefront/internal/product"
)

type RouterConfig struct {
	Auth         *identity.Middleware
	Products     *product.Controller
	Carts        *cart.Controller
	Orders       *order.Module
	PaymentLimit *IPRateLimiter
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Provider returns and callbacks carry no credentials.
	r.Route("/payment", func(r chi.Router) {
		if cfg.PaymentLimit != nil {
			r.Use(cfg.PaymentLimit.Middleware)
		}
		r.Get("/success", cfg.Orders.Payments.Success)
		r.Get("/declined", cfg.Orders.Payments.Declined)
		r.Get("/cancelled", cfg.Orders.Payments.Cancelled)
		r.Post("/callback", cfg.Orders.Payments.Callback)
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Handler)

		r.Post("/products/lookup", cfg.Products.HandleLookupProducts)

		r.Get("/cart", cfg.Carts.HandleGetCart)
		r.Put("/cart", cfg.Carts.HandlePutCart)

		r.Post("/checkout", cfg.Orders.Checkout.Checkout)

		r.Get("/orders/{orderId}", cfg.Orders.Orders.GetOrder)
		r.Get("/orders/{orderId}/ledger", cfg.Orders.Orders.GetLedger)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAdmin)
			r.Post("/orders/{orderId}/refund", cfg.Orders.Orders.Refund)
			r.Post("/admin/reconcile/held", cfg.Orders.Sweep.ReconcileHeld)
		})
	})

	return r
}
