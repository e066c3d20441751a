// Package scheduler собирает процесс фоновых задач.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fitcoach-identity/internal/cache"
	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	schedulerservice "github.com/magabrotheeeer/fitcoach-identity/internal/services/scheduler"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/sender"
	"github.com/magabrotheeeer/fitcoach-identity/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	scheduler *schedulerservice.Scheduler
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.MailQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	// Счётчики чистятся там же, где их ведёт API.
	var usage schedulerservice.UsagePruner = db
	var cacheRedis *cache.Cache
	if cfg.Usage.Backend == config.UsageBackendRedis {
		cacheRedis, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			_ = db.Close()
			closeResources(ch, conn, logger)
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		usage = cache.NewUsageStore(cacheRedis)
	}

	clock := clockwork.NewRealClock()
	mailer := sender.NewQueueMailer(&rabbitmq.Publisher{Ch: ch}, cfg.RabbitMQ.Exchange, clock, logger).
		WithKind(models.MailExpiryReminder)
	jobs := schedulerservice.NewJobs(db, usage, mailer, cfg.Scheduler, clock, logger)

	s, err := schedulerservice.New(ctx, jobs, cfg.Scheduler, clock, logger)
	if err != nil {
		if cacheRedis != nil {
			_ = cacheRedis.Close()
		}
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	return &App{
		scheduler: s,
		db:        db,
		cache:     cacheRedis,
		conn:      conn,
		ch:        ch,
		logger:    logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает задачи и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("scheduler started", slog.Any("jobs", a.scheduler.JobNames()))
	a.scheduler.Start()

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Error("failed to stop scheduler", sl.Err(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	closeResources(a.ch, a.conn, a.logger)
	return nil
}
