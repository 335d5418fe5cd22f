package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/coursereviews/pkg/health"
	"github.com/utafrali/coursereviews/pkg/middleware"
	"github.com/utafrali/coursereviews/services/review/internal/service"
)

// RoleAdmin may call the /admin routes.
const RoleAdmin = "admin"

// Services bundles the application services the router dispatches to.
type Services struct {
	Reviews       *service.ReviewService
	Interactions  *service.InteractionService
	Subscriptions *service.SubscriptionService
	Notifications *service.NotificationService
	Listings      *service.ListingService
	Catalog       *service.CatalogService
	Stats         *service.StatsService
}

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORS           middleware.CORSConfig
	RateLimitRPS   float64
	RateLimitBurst int
	// PprofCIDRs enables /debug/pprof for these client ranges.
	PprofCIDRs []string
	// CatalogMaxAge is the Cache-Control max-age of public catalog reads, in
	// seconds. 0 disables the header.
	CatalogMaxAge int
}

// NewRouter creates a chi router with all review service routes registered.
// ctx bounds the rate limiter's background cleanup.
func NewRouter(
	ctx context.Context,
	svcs Services,
	cfg RouterConfig,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "review"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst < 1 {
		cfg.RateLimitRPS, cfg.RateLimitBurst = 10, 20
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	limited := middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	public := func(next http.Handler) http.Handler { return next }
	if cfg.CatalogMaxAge > 0 {
		public = middleware.CacheControl(cfg.CatalogMaxAge)
	}

	catalogHandler := NewCatalogHandler(svcs.Catalog, svcs.Listings, cfg.MaxBodyBytes, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, cfg.MaxBodyBytes, logger)
	interactionHandler := NewInteractionHandler(svcs.Interactions, cfg.MaxBodyBytes, logger)
	subscriptionHandler := NewSubscriptionHandler(svcs.Subscriptions, svcs.Notifications, cfg.MaxBodyBytes, logger)
	adminHandler := NewAdminHandler(svcs.Stats, cfg.MaxBodyBytes, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Catalog
		r.Route("/courses", func(r chi.Router) {
			r.With(public).Get("/{id}", catalogHandler.GetCourse)
			r.Get("/{id}/reviews", catalogHandler.ListCourseReviews)
			r.Post("/filter", catalogHandler.FilterCourses)
			r.With(middleware.RequireRole(RoleAdmin)).Put("/{id}", catalogHandler.UpsertCourse)
		})
		r.Route("/instructors", func(r chi.Router) {
			r.With(public).Get("/{id}", catalogHandler.GetInstructor)
			r.Get("/{id}/reviews", catalogHandler.ListInstructorReviews)
			r.Post("/filter", catalogHandler.FilterInstructors)
			r.With(middleware.RequireRole(RoleAdmin)).Put("/", catalogHandler.UpsertInstructor)
		})
		r.With(public).Get("/stats/home", catalogHandler.HomeStats)

		// Reviews
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/{id}", reviewHandler.GetReview)
			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Use(limited)
				r.Post("/", reviewHandler.SubmitReview)
				r.Delete("/{id}", reviewHandler.DeleteReview)
			})
		})
		r.Get("/users/{userId}/reviews", reviewHandler.GetUserReviews)

		// Per-user state
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Route("/interactions", func(r chi.Router) {
				r.Get("/", interactionHandler.GetReaction)
				r.Get("/target/{type}/{id}", interactionHandler.ListForTarget)
				r.With(limited).Post("/", interactionHandler.React)
				r.With(limited).Delete("/", interactionHandler.Unreact)
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", subscriptionHandler.ListSubscriptions)
				r.Get("/{courseId}", subscriptionHandler.GetSubscription)
				r.With(limited).Post("/", subscriptionHandler.Subscribe)
				r.With(limited).Delete("/{courseId}", subscriptionHandler.Unsubscribe)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", subscriptionHandler.ListNotifications)
				r.Put("/seen", subscriptionHandler.MarkSeen)
				r.Delete("/", subscriptionHandler.DismissNotification)
			})
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(RoleAdmin))
			r.Post("/stats/recompute", adminHandler.RecomputeStats)
		})
	})

	return r
}
