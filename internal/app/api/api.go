// Package api собирает HTTP-процесс: хранилища, сервисы и маршруты.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/jonboulle/clockwork"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fitcoach-identity/internal/cache"
	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/handlers/health"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/jwt"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/migrations"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/paymentprovider"
	"github.com/magabrotheeeer/fitcoach-identity/internal/planner"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/coaching"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/entitlement"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/identity"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/ledger"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/sender"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/tenant"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/usage"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/verification"
	"github.com/magabrotheeeer/fitcoach-identity/internal/storage/repository"
)

const (
	codeNamespaceSignup = "verify"
	codeNamespaceLogin  = "login"
)

// App HTTP API.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = db.DB.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not reachable after retries: %w", err)
}

// New создаёт приложение. Миграции применяются до запуска сервера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	clock := clockwork.NewRealClock()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repository.CheckDatabaseReady(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.MailQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	mailer := sender.NewQueueMailer(&rabbitmq.Publisher{Ch: ch}, cfg.RabbitMQ.Exchange, clock, logger)

	issuerOpts := []verification.Option{
		verification.WithTTL(cfg.Verification.CodeTTL),
		verification.WithResendCooldown(cfg.Verification.ResendCooldown),
	}
	signupStore := cache.NewCodeStore(cacheRedis, codeNamespaceSignup).WithMaxAttempts(cfg.Verification.MaxAttempts)
	loginStore := cache.NewCodeStore(cacheRedis, codeNamespaceLogin).WithMaxAttempts(cfg.Verification.MaxAttempts)
	signupCodes := verification.NewIssuer(signupStore, clock, logger, issuerOpts...)
	loginCodes := verification.NewIssuer(loginStore, clock, logger, issuerOpts...)

	directory := tenant.NewDirectory(db, cacheRedis, mailer.WithKind(models.MailInvitation), clock, logger)
	registry := identity.New(identity.Deps{
		Repo:       db,
		Codes:      signupCodes,
		LoginCodes: loginCodes,
		Tenants:    directory,
		Mailer:     mailer,
		Sessions:   cache.NewSessionStore(cacheRedis),
		Tokens:     jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, clock),
		Clock:      clock,
	}, cfg.Registration, logger)

	resolver := entitlement.NewResolver(directory)

	var counters usage.Store = db
	if cfg.Usage.Backend == config.UsageBackendRedis {
		counters = cache.NewUsageStore(cacheRedis)
	}
	meter := usage.NewMeter(counters, clock, logger)

	verifier := paymentprovider.NewClient(cfg.Billing.VerifierURL, cfg.Billing.VerifierSecret, cfg.Billing.Timeout)
	subscriptions := ledger.New(db, verifier, ledger.DefaultCatalog(), clock, logger)

	coach := coaching.New(db, resolver, meter, planner.New(cfg.Planner.URL, cfg.Planner.Timeout),
		clock, cfg.Planner.Timeout, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Identity:     registry,
		Tenants:      directory,
		Entitlements: resolver,
		Usage:        meter,
		Ledger:       subscriptions,
		Coaching:     coach,
		Limiter:      middlewarectx.NewRateLimiter(cfg.RateLimit),
		Health: map[string]health.Pinger{
			"postgres": db.DB,
			"redis": health.PingFunc(func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			}),
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
