package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const sessionPrefix = "session:"

// SessionStore хранит активные сессии. Токен без записи в Redis недействителен.
type SessionStore struct {
	db *redis.Client
}

// NewSessionStore создаёт хранилище сессий.
func NewSessionStore(c *Cache) *SessionStore {
	return &SessionStore{db: c.Db}
}

// Save сохраняет сессию на ttl.
func (s *SessionStore) Save(ctx context.Context, session models.Session, ttl time.Duration) error {
	const op = "cache.SessionStore.Save"
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.db.Set(ctx, sessionPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает сессию или models.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	const op = "cache.SessionStore.Get"
	raw, err := s.db.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrCorruptRecord, err)
	}
	return &session, nil
}

// Delete удаляет сессию. Удаление отсутствующей сессии не ошибка.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	const op = "cache.SessionStore.Delete"
	if err := s.db.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
