package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
)

// Scheduler запускает задачи по интервалам из конфига.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
}

// New регистрирует задачи. Каждая задача выполняется не более чем в одном экземпляре.
func New(ctx context.Context, jobs *Jobs, cfg config.Scheduler, clock clockwork.Clock, log *slog.Logger) (*Scheduler, error) {
	const op = "scheduler.New"
	opts := []gocron.SchedulerOption{gocron.WithLocation(time.UTC)}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"subscription-lapse", cfg.ExpiryInterval, jobs.LapseSubscriptions},
		{"pending-identity-purge", cfg.PurgeInterval, jobs.PurgePendingIdentities},
		{"usage-retention", cfg.PurgeInterval, jobs.PruneUsage},
		{"expiry-reminders", cfg.ReminderInterval, jobs.RemindExpiring},
	}
	for _, d := range defs {
		if d.interval <= 0 {
			log.Warn("job disabled", slog.String("job", d.name))
			continue
		}
		if _, err := s.NewJob(
			gocron.DurationJob(d.interval),
			gocron.NewTask(d.run, ctx),
			gocron.WithName(d.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("%s: job %s: %w", op, d.name, err)
		}
	}
	log.Info("jobs registered", slog.Int("count", len(s.Jobs())))
	return &Scheduler{scheduler: s, log: log}, nil
}

// Start запускает планировщик.
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")
	s.scheduler.Start()
}

// Stop дожидается текущих задач и останавливает планировщик.
func (s *Scheduler) Stop() error {
	s.log.Info("stopping scheduler")
	return s.scheduler.Shutdown()
}

// JobNames возвращает имена зарегистрированных задач.
func (s *Scheduler) JobNames() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
