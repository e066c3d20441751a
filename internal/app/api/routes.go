package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/logincode"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/resend"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/health"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/me/entitlements"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/me/usage"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/plans/generate"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/subscriptions/purchase"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/subscriptions/restore"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/tenants/invite"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/workouts/create"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/workouts/list"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/metrics"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/coaching"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/entitlement"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/identity"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/ledger"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/tenant"
	usageservice "github.com/magabrotheeeer/fitcoach-identity/internal/services/usage"
)

// Services сервисы, которые обслуживает HTTP API.
type Services struct {
	Identity     *identity.Registry
	Tenants      *tenant.Directory
	Entitlements *entitlement.Resolver
	Usage        *usageservice.Meter
	Ledger       *ledger.Ledger
	Coaching     *coaching.Service
	Limiter      *middlewarectx.RateLimiter
	Health       map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(s.Limiter, logger))
			r.Post("/register", register.New(logger, s.Identity).ServeHTTP)
			r.Post("/register/resend", resend.New(logger, s.Identity).ServeHTTP)
			r.Post("/verify", verify.New(logger, s.Identity).ServeHTTP)
			r.Post("/login/code", logincode.New(logger, s.Identity).ServeHTTP)
			r.Post("/login", login.New(logger, s.Identity).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Identity, logger))
			r.Post("/logout", logout.New(logger, s.Identity).ServeHTTP)
			r.Get("/me/entitlements", entitlements.New(logger, s.Entitlements).ServeHTTP)
			r.Get("/me/usage/{feature}", usage.New(logger, s.Usage).ServeHTTP)
			r.Post("/workouts", create.New(logger, s.Coaching).ServeHTTP)
			r.Get("/workouts", list.New(logger, s.Coaching).ServeHTTP)
			r.Post("/plans", generate.New(logger, s.Coaching).ServeHTTP)
			r.Post("/subscriptions/purchase", purchase.New(logger, s.Ledger).ServeHTTP)
			r.Post("/subscriptions/restore", restore.New(logger, s.Ledger).ServeHTTP)
			r.Post("/tenants/invitations", invite.New(logger, s.Tenants).ServeHTTP)
		})
	})

	r.Get("/healthz", health.New(logger, 2*time.Second, s.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
