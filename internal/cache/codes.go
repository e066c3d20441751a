package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// codeGCGrace сколько истёкший код ещё живёт в Redis, прежде чем его удалит TTL.
const codeGCGrace = time.Hour

// DefaultMaxCodeAttempts число неверных попыток, после которого код аннулируется.
const DefaultMaxCodeAttempts = 5

// compareAndDeleteScript сверяет код и удаляет запись одной атомарной операцией.
// Неверные попытки считаются в поле attempts; на ARGV[3]-й код удаляется.
// Возвращает значение models.CodeCheck.
var compareAndDeleteScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
	return 3
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_ms'))
if expires == nil or tonumber(ARGV[2]) >= expires then
	redis.call('DEL', KEYS[1])
	return 2
end
if code ~= ARGV[1] then
	local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
	local max = tonumber(ARGV[3])
	if max > 0 and attempts >= max then
		redis.call('DEL', KEYS[1])
		return 4
	end
	return 1
end
redis.call('DEL', KEYS[1])
return 0
`)

// CodeStore хранит одноразовые коды в хэшах Redis с префиксом namespace.
type CodeStore struct {
	db          *redis.Client
	prefix      string
	maxAttempts int
}

// NewCodeStore создаёт хранилище кодов для пространства имён (например, "verify" или "login").
func NewCodeStore(c *Cache, namespace string) *CodeStore {
	return &CodeStore{db: c.Db, prefix: "code:" + namespace + ":", maxAttempts: DefaultMaxCodeAttempts}
}

// WithMaxAttempts возвращает копию хранилища с другим пределом неверных попыток.
// Ноль или отрицательное значение снимает предел.
func (s *CodeStore) WithMaxAttempts(n int) *CodeStore {
	c := *s
	c.maxAttempts = n
	return &c
}

func (s *CodeStore) key(email string) string {
	return s.prefix + email
}

// Save записывает код, заменяя предыдущий для этого email.
func (s *CodeStore) Save(ctx context.Context, code models.VerificationCode) error {
	const op = "cache.CodeStore.Save"
	key := s.key(code.Email)
	ttl := code.ExpiresAt.Sub(code.IssuedAt) + codeGCGrace
	_, err := s.db.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"email", code.Email,
			"code", code.Code,
			"issued_ms", code.IssuedAt.UnixMilli(),
			"expires_ms", code.ExpiresAt.UnixMilli(),
		)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает сохранённый код или models.ErrNotFound.
func (s *CodeStore) Get(ctx context.Context, email string) (*models.VerificationCode, error) {
	const op = "cache.CodeStore.Get"
	fields, err := s.db.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	issued, err1 := strconv.ParseInt(fields["issued_ms"], 10, 64)
	expires, err2 := strconv.ParseInt(fields["expires_ms"], 10, 64)
	if err := errors.Join(err1, err2); err != nil || fields["code"] == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrCorruptRecord)
	}
	return &models.VerificationCode{
		Email:     email,
		Code:      fields["code"],
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}

// CompareAndDelete сверяет код на момент now. Совпавшая или истёкшая запись удаляется
// в той же операции, поэтому один код не может пройти проверку дважды.
// Исчерпавший попытки код удаляется и даёт models.CodeExhausted.
func (s *CodeStore) CompareAndDelete(ctx context.Context, email, code string, now time.Time) (models.CodeCheck, error) {
	const op = "cache.CodeStore.CompareAndDelete"
	res, err := compareAndDeleteScript.Run(ctx, s.db, []string{s.key(email)}, code, now.UnixMilli(), s.maxAttempts).Int()
	if err != nil {
		return models.CodeMissing, fmt.Errorf("%s: %w", op, err)
	}
	switch check := models.CodeCheck(res); check {
	case models.CodeMatched, models.CodeMismatch, models.CodeExpired, models.CodeMissing, models.CodeExhausted:
		return check, nil
	default:
		return models.CodeMissing, fmt.Errorf("%s: unexpected script result %d", op, res)
	}
}
