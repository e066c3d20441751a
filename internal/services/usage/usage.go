// Package usage считает метрируемые действия по календарным месяцам и применяет квоты.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/metrics"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/month"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/entitlement"
)

// Store хранилище счётчиков. IncrementIfBelow обязан проверять лимит и увеличивать
// счётчик атомарно для ключа.
type Store interface {
	Count(ctx context.Context, key models.UsageKey) (int64, error)
	IncrementIfBelow(ctx context.Context, key models.UsageKey, limit models.Limit) (int64, bool, error)
}

// Meter учитывает использование и применяет месячные лимиты.
type Meter struct {
	store Store
	clock clockwork.Clock
	log   *slog.Logger
}

// NewMeter создаёт Meter. nil clock означает системные часы.
func NewMeter(store Store, clock clockwork.Clock, log *slog.Logger) *Meter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Meter{store: store, clock: clock, log: log}
}

func (m *Meter) key(user models.User, feature models.FeatureKey, now time.Time) models.UsageKey {
	return models.UsageKey{UserID: user.ID, Feature: feature, Window: month.WindowOf(now)}
}

// TryConsume расходует одну единицу квоты. Члены зала всегда получают true,
// счётчики для них не трогаются. При исчерпанном лимите счётчик не меняется.
func (m *Meter) TryConsume(ctx context.Context, user models.User, feature models.FeatureKey) (bool, error) {
	const op = "usage.TryConsume"
	if user.IsGymMember() {
		metrics.RecordQuotaDecision(string(feature), true)
		return true, nil
	}
	limit, ok := entitlement.Limits(user).For(feature)
	if !ok {
		return false, fmt.Errorf("%s: %w: %s", op, models.ErrUnknownFeatureKey, feature)
	}
	key := m.key(user, feature, m.clock.Now())

	allowed := false
	if n, bounded := limit.Max(); !bounded || n > 0 {
		var err error
		_, allowed, err = m.store.IncrementIfBelow(ctx, key, limit)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	metrics.RecordQuotaDecision(string(feature), allowed)
	if !allowed {
		m.log.Info("quota exhausted",
			slog.String("user_id", user.ID),
			slog.String("feature", string(feature)),
			slog.String("window", key.Window.String()),
			slog.String("limit", limit.String()),
		)
	}
	return allowed, nil
}

// RemainingUsage возвращает использованное за текущий месяц и лимит.
// Для членов зала это (0, без ограничения).
func (m *Meter) RemainingUsage(ctx context.Context, user models.User, feature models.FeatureKey) (models.Usage, error) {
	const op = "usage.RemainingUsage"
	window := month.WindowOf(m.clock.Now())
	if user.IsGymMember() {
		return models.Usage{Feature: feature, Window: window, Used: 0, Limit: models.Unlimited()}, nil
	}
	limit, ok := entitlement.Limits(user).For(feature)
	if !ok {
		return models.Usage{}, fmt.Errorf("%s: %w: %s", op, models.ErrUnknownFeatureKey, feature)
	}
	used, err := m.store.Count(ctx, models.UsageKey{UserID: user.ID, Feature: feature, Window: window})
	if err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Usage{Feature: feature, Window: window, Used: used, Limit: limit}, nil
}
