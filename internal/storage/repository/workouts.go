package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// CreateWorkout сохраняет тренировку.
func (s *Storage) CreateWorkout(ctx context.Context, w models.Workout) error {
	const op = "storage.CreateWorkout"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO workouts (id, user_id, tenant_id, title, notes, scheduled_at,
			      duration_minutes, generated_by_ai, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.DB.ExecContext(ctx, query,
		w.ID, w.UserID, w.TenantID, w.Title, w.Notes, w.ScheduledAt,
		w.DurationMinutes, w.GeneratedByAI, w.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListWorkouts возвращает тренировки пользователя внутри арендатора.
// Записи чужого арендатора не возвращаются даже при совпадении userID.
func (s *Storage) ListWorkouts(ctx context.Context, tenantID, userID string, limit, offset int) ([]models.Workout, error) {
	const op = "storage.ListWorkouts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, tenant_id, title, notes, scheduled_at,
			      duration_minutes, generated_by_ai, created_at
			  FROM workouts
			  WHERE tenant_id = $1 AND user_id = $2
			  ORDER BY scheduled_at DESC, id
			  LIMIT $3 OFFSET $4`, tenantID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var res []models.Workout
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.UserID, &w.TenantID, &w.Title, &w.Notes, &w.ScheduledAt,
			&w.DurationMinutes, &w.GeneratedByAI, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		w.ScheduledAt = w.ScheduledAt.UTC()
		w.CreatedAt = w.CreatedAt.UTC()
		res = append(res, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
