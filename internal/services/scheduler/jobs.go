// Package scheduler содержит периодические задачи: истечение подписок,
// очистку брошенных регистраций и старых счётчиков, напоминания об окончании подписки.
package scheduler

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/month"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Repository запросы, которые выполняют задачи.
type Repository interface {
	LapseSubscriptions(ctx context.Context, now time.Time, grace time.Duration) (int64, int64, error)
	PurgePendingIdentities(ctx context.Context, now time.Time) (int64, error)
	ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error)
}

// UsagePruner хранилище счётчиков использования: Postgres или Redis, как настроено для API.
type UsagePruner interface {
	DeleteUsageBefore(ctx context.Context, before models.Window) (int64, error)
}

// Mailer почтовый сервис для напоминаний.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (bool, error)
}

// Jobs набор задач планировщика.
type Jobs struct {
	repo   Repository
	usage  UsagePruner
	mailer Mailer
	cfg    config.Scheduler
	clock  clockwork.Clock
	log    *slog.Logger
}

// NewJobs создаёт набор задач.
func NewJobs(repo Repository, usage UsagePruner, mailer Mailer, cfg config.Scheduler,
	clock clockwork.Clock, log *slog.Logger) *Jobs {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Jobs{repo: repo, usage: usage, mailer: mailer, cfg: cfg, clock: clock, log: log}
}

// LapseSubscriptions переводит истёкшие подписки в льготный период или в expired.
func (j *Jobs) LapseSubscriptions(ctx context.Context) error {
	const op = "scheduler.LapseSubscriptions"
	graced, expired, err := j.repo.LapseSubscriptions(ctx, j.clock.Now().UTC(), j.cfg.GracePeriod)
	if err != nil {
		j.log.Error("failed to lapse subscriptions", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	j.log.Info("subscriptions lapsed", slog.Int64("grace", graced), slog.Int64("expired", expired))
	return nil
}

// PurgePendingIdentities удаляет регистрации, не подтверждённые в срок.
func (j *Jobs) PurgePendingIdentities(ctx context.Context) error {
	const op = "scheduler.PurgePendingIdentities"
	n, err := j.repo.PurgePendingIdentities(ctx, j.clock.Now().UTC())
	if err != nil {
		j.log.Error("failed to purge pending identities", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	j.log.Info("pending identities purged", slog.Int64("count", n))
	return nil
}

// PruneUsage удаляет счётчики старше usage_retention_months. Ноль означает хранить всё.
func (j *Jobs) PruneUsage(ctx context.Context) error {
	const op = "scheduler.PruneUsage"
	if j.cfg.UsageRetentionMonths <= 0 {
		return nil
	}
	before := month.Shift(month.WindowOf(j.clock.Now()), -j.cfg.UsageRetentionMonths)
	n, err := j.usage.DeleteUsageBefore(ctx, before)
	if err != nil {
		j.log.Error("failed to prune usage counters", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	j.log.Info("usage counters pruned", slog.String("before", before.String()), slog.Int64("count", n))
	return nil
}

// RemindExpiring ставит в очередь напоминания для подписок, истекающих завтра (UTC).
// Ошибка отправки одного письма не останавливает остальные.
func (j *Jobs) RemindExpiring(ctx context.Context) error {
	const op = "scheduler.RemindExpiring"
	now := j.clock.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	subs, err := j.repo.ListExpiringSubscriptions(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		j.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) == 0 {
		j.log.Info("no expiring subscriptions found")
		return nil
	}

	failed := 0
	for _, sub := range subs {
		if _, err := j.mailer.Send(ctx, sub.Email, reminderSubject, reminderBody(sub)); err != nil {
			failed++
			j.log.Error("failed to queue reminder", slog.String("user_id", sub.UserID), sl.Err(err))
		}
	}
	j.log.Info("expiry reminders queued", slog.Int("count", len(subs)-failed), slog.Int("failed", failed))
	return nil
}

const reminderSubject = "Ваша подписка FitCoach заканчивается завтра"

func reminderBody(sub models.ExpiringSubscription) string {
	return fmt.Sprintf(`<p>Здравствуйте, %s!</p>
<p>Подписка <b>%s</b> действует до %s (UTC). Продлите её, чтобы не потерять доступ к функциям.</p>`,
		html.EscapeString(sub.Name), sub.SubscriptionType, sub.ExpiresAt.Format("02.01.2006 15:04"))
}
