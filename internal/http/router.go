package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Cart           *CartHandler
	Checkout       *CheckoutHandler
	Library        *LibraryHandler
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(BearerTokenMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{book_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{book_id}", cfg.Cart.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Checkout)
			r.Get("/status", cfg.Checkout.Status)
			r.With(middleware.Timeout(cfg.RequestTimeout)).Get("/history", cfg.Checkout.History)
		})
		r.Route("/library", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Get("/", cfg.Library.List)
			r.Get("/purchases/{purchase_id}", cfg.Library.Purchase)
			r.Get("/{book_id}/owned", cfg.Library.Owned)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
