// Package coaching хранит тренировки пользователей в рамках арендатора
// и генерирует планы через внешний генератор.
package coaching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/planner"
)

const maxWeeks = 12

// Repository хранилище тренировок.
type Repository interface {
	CreateWorkout(ctx context.Context, w models.Workout) error
	ListWorkouts(ctx context.Context, tenantID, userID string, limit, offset int) ([]models.Workout, error)
}

// Entitlements проверка доступа к функциям.
type Entitlements interface {
	HasFeature(ctx context.Context, user models.User, feature models.Feature) (bool, error)
}

// Quota месячные квоты.
type Quota interface {
	TryConsume(ctx context.Context, user models.User, feature models.FeatureKey) (bool, error)
}

// Generator внешний генератор планов.
type Generator interface {
	Generate(ctx context.Context, req planner.PlanRequest) (*planner.Plan, error)
}

// WorkoutInput данные новой тренировки.
type WorkoutInput struct {
	Title           string
	Notes           string
	ScheduledAt     time.Time
	DurationMinutes int
}

// Service сервис тренировок и планов.
type Service struct {
	repo      Repository
	ents      Entitlements
	quota     Quota
	generator Generator
	clock     clockwork.Clock
	timeout   time.Duration
	log       *slog.Logger
}

// New создаёт Service. timeout ограничивает обращение к генератору.
func New(repo Repository, ents Entitlements, quota Quota, generator Generator,
	clock clockwork.Clock, timeout time.Duration, log *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:      repo,
		ents:      ents,
		quota:     quota,
		generator: generator,
		clock:     clock,
		timeout:   timeout,
		log:       log,
	}
}

func tenantOf(user models.User) (string, error) {
	if user.TenantID == nil {
		return "", models.ErrForbidden
	}
	return *user.TenantID, nil
}

// CreateWorkout сохраняет тренировку, расходуя квоту workout.
func (s *Service) CreateWorkout(ctx context.Context, user models.User, in WorkoutInput) (*models.Workout, error) {
	const op = "coaching.CreateWorkout"
	tenantID, err := tenantOf(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := s.ents.HasFeature(ctx, user, models.FeatureWorkoutTracking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrFeatureNotAvailable)
	}
	allowed, err := s.quota.TryConsume(ctx, user, models.KeyWorkout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrQuotaExceeded)
	}

	w := models.Workout{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		TenantID:        tenantID,
		Title:           in.Title,
		Notes:           in.Notes,
		ScheduledAt:     in.ScheduledAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		CreatedAt:       s.clock.Now().UTC(),
	}
	if err := s.repo.CreateWorkout(ctx, w); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &w, nil
}

// ListWorkouts возвращает тренировки пользователя в его арендаторе.
func (s *Service) ListWorkouts(ctx context.Context, user models.User, limit, offset int) ([]models.Workout, error) {
	const op = "coaching.ListWorkouts"
	tenantID, err := tenantOf(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.repo.ListWorkouts(ctx, tenantID, user.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GeneratePlan генерирует план на weeks недель и сохраняет его тренировки.
// Требует функцию unlimitedAICoaching и расходует одну единицу квоты ai_query.
// Квота расходуется до обращения к генератору и не возвращается при его сбое.
func (s *Service) GeneratePlan(ctx context.Context, user models.User, weeks int, goal string) ([]models.Workout, error) {
	const op = "coaching.GeneratePlan"
	tenantID, err := tenantOf(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	weeks = min(max(weeks, 1), maxWeeks)

	ok, err := s.ents.HasFeature(ctx, user, models.FeatureUnlimitedAICoaching)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrFeatureNotAvailable)
	}
	allowed, err := s.quota.TryConsume(ctx, user, models.KeyAIQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrQuotaExceeded)
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	plan, err := s.generator.Generate(genCtx, planner.PlanRequest{
		UserID: user.ID,
		Tier:   user.SubscriptionType,
		Weeks:  weeks,
		Goal:   goal,
	})
	if err != nil {
		s.log.Error("plan generation failed", slog.String("user_id", user.ID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	workouts := make([]models.Workout, 0, len(plan.Sessions))
	for _, session := range plan.Sessions {
		if session.DayOffset < 0 || session.DayOffset >= weeks*7 {
			continue
		}
		w := models.Workout{
			ID:              uuid.NewString(),
			UserID:          user.ID,
			TenantID:        tenantID,
			Title:           session.Title,
			Notes:           session.Notes,
			ScheduledAt:     start.AddDate(0, 0, session.DayOffset),
			DurationMinutes: session.DurationMinutes,
			GeneratedByAI:   true,
			CreatedAt:       now,
		}
		if err := s.repo.CreateWorkout(ctx, w); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		workouts = append(workouts, w)
	}
	s.log.Info("plan generated",
		slog.String("user_id", user.ID),
		slog.Int("weeks", weeks),
		slog.Int("workouts", len(workouts)),
	)
	return workouts, nil
}
