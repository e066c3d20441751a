package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/month"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const usageScanBatch = 500

// checkAndIncrScript увеличивает счётчик, только если он ниже лимита.
// ARGV[1] — лимит, пустая строка означает отсутствие ограничения.
// Возвращает {count, allowed}.
var checkAndIncrScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if ARGV[1] ~= '' and count >= tonumber(ARGV[1]) then
	return {count, 0}
end
count = redis.call('INCR', KEYS[1])
return {count, 1}
`)

// UsageStore счётчики использования в Redis. Ключи окон не истекают:
// смена месяца даёт новый ключ, старые удаляет DeleteUsageBefore.
type UsageStore struct {
	db *redis.Client
}

// NewUsageStore создаёт хранилище счётчиков.
func NewUsageStore(c *Cache) *UsageStore {
	return &UsageStore{db: c.Db}
}

func usageKey(key models.UsageKey) string {
	return "usage:" + key.String()
}

// Count возвращает текущее значение счётчика; отсутствующий счётчик равен нулю.
func (s *UsageStore) Count(ctx context.Context, key models.UsageKey) (int64, error) {
	const op = "cache.UsageStore.Count"
	n, err := s.db.Get(ctx, usageKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// IncrementIfBelow атомарно проверяет лимит и увеличивает счётчик.
func (s *UsageStore) IncrementIfBelow(ctx context.Context, key models.UsageKey, limit models.Limit) (int64, bool, error) {
	const op = "cache.UsageStore.IncrementIfBelow"
	arg := ""
	if max, bounded := limit.Max(); bounded {
		arg = fmt.Sprintf("%d", max)
	}
	res, err := checkAndIncrScript.Run(ctx, s.db, []string{usageKey(key)}, arg).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("%s: unexpected script result %v", op, res)
	}
	return res[0], res[1] == 1, nil
}

// windowOfKey разбирает окно из последнего сегмента ключа usage:<user>:<feature>:YYYY-MM.
func windowOfKey(key string) (models.Window, bool) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return models.Window{}, false
	}
	t, err := time.Parse("2006-01", key[i+1:])
	if err != nil {
		return models.Window{}, false
	}
	return month.WindowOf(t), true
}

// DeleteUsageBefore удаляет счётчики окон раньше before и возвращает число удалённых.
// Ключи с неразборчивым окном пропускаются.
func (s *UsageStore) DeleteUsageBefore(ctx context.Context, before models.Window) (int64, error) {
	const op = "cache.UsageStore.DeleteUsageBefore"
	var deleted int64
	iter := s.db.Scan(ctx, 0, "usage:*", usageScanBatch).Iterator()
	batch := make([]string, 0, usageScanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.db.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += n
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		w, ok := windowOfKey(iter.Val())
		if !ok || !month.Before(w, before) {
			continue
		}
		batch = append(batch, iter.Val())
		if len(batch) == usageScanBatch {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("%s: %w", op, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}
