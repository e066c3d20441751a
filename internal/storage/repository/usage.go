package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/month"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Count возвращает значение счётчика; отсутствующий счётчик равен нулю.
func (s *Storage) Count(ctx context.Context, key models.UsageKey) (int64, error) {
	const op = "storage.Count"
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT count FROM usage_counters
			  WHERE user_id = $1 AND feature_key = $2 AND year = $3 AND month = $4`,
		key.UserID, string(key.Feature), key.Window.Year, int(key.Window.Month)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// IncrementIfBelow атомарно увеличивает счётчик, если он меньше лимита.
// Проверка и увеличение выполняются одним upsert под блокировкой строки,
// поэтому параллельные запросы не превышают лимит.
func (s *Storage) IncrementIfBelow(ctx context.Context, key models.UsageKey, limit models.Limit) (int64, bool, error) {
	const op = "storage.IncrementIfBelow"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	args := []any{key.UserID, string(key.Feature), key.Window.Year, int(key.Window.Month)}
	query := `INSERT INTO usage_counters (user_id, feature_key, year, month, count)
			  VALUES ($1, $2, $3, $4, 1)
			  ON CONFLICT (user_id, feature_key, year, month) DO UPDATE
			  SET count = usage_counters.count + 1`
	if n, bounded := limit.Max(); bounded {
		if n <= 0 {
			count, err := s.Count(ctx, key)
			if err != nil {
				return 0, false, fmt.Errorf("%s: %w", op, err)
			}
			return count, false, nil
		}
		query += ` WHERE usage_counters.count < $5`
		args = append(args, n)
	}
	query += ` RETURNING count`

	var count int64
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := s.Count(ctx, key)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", op, err)
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return count, true, nil
}

// DeleteUsageBefore удаляет счётчики окон раньше before и возвращает число удалённых.
func (s *Storage) DeleteUsageBefore(ctx context.Context, before models.Window) (int64, error) {
	const op = "storage.DeleteUsageBefore"
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM usage_counters WHERE year * 12 + month - 1 < $1`, month.Index(before))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
