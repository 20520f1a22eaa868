package router

import (
	"net/http"

	"bazaar-api/internal/handler"
	"bazaar-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	MarketHandler  *handler.MarketHandler
	SessionHandler *handler.SessionHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	Gatherer       prometheus.Gatherer // nil disables /metrics
	Logger         *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Actor-ID", "X-Actor-Admin"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// PUBLIC routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Host routes: API key plus the acting identity
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}
			r.Use(middleware.Actor)
			hostRoutes(r, cfg)
		})
	})

	return r
}

func hostRoutes(r chi.Router, cfg Config) {
	if m := cfg.MarketHandler; m != nil {
		r.Route("/shops", func(r chi.Router) {
			r.Get("/", m.ListShops)
			r.Post("/", m.CreateShop)
			r.Route("/{shopID}", func(r chi.Router) {
				r.Get("/", m.GetShop)
				r.Delete("/", m.DeleteShop)
				r.Put("/name", m.UpdateShop("name"))
				r.Put("/description", m.UpdateShop("description"))
				r.Put("/icon", m.UpdateShop("icon"))
				r.Get("/listings", m.ListListings)
				r.Post("/listings", m.CreateListing)
			})
		})

		r.Route("/listings/{listingID}", func(r chi.Router) {
			r.Get("/", m.GetListing)
			r.Delete("/", m.RemoveListing)
			r.Post("/buy", m.Buy)
			r.Post("/sell", m.Sell)
			r.Post("/stock", m.Stock)
			r.Post("/withdraw", m.Withdraw)
			r.Post("/toggle", m.ToggleMode)
			r.Put("/price", m.SetPrice)
			r.Post("/move", m.MoveListing)
			r.Get("/move-targets", m.MoveTargets)
		})
	}

	if s := cfg.SessionHandler; s != nil {
		r.Post("/sessions", s.Start)
		r.Delete("/sessions/{identity}", s.End)
		r.Get("/sessions/{identity}/messages", s.Messages)
		r.Get("/notifications/{identity}/unread", s.Unread)
	}

	if a := cfg.AdminHandler; a != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", a.GetStats)
			r.Post("/sweep", a.Sweep)
		})
	}
}
