// Package jwt реализует генерацию и парсинг JWT токенов сессий.
//
// Maker определяет интерфейс для создания и проверки токенов,
// MakerImpl — реализация на HMAC-SHA256 с секретным ключом и сроком жизни.
package jwt

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken подписывает токен для сессии sessionID.
	GenerateToken(subject Subject, sessionID string) (string, *CustomClaims, error)
	// ParseToken проверяет подпись и срок и возвращает claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	clock     clockwork.Clock
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration, clock clockwork.Clock) *MakerImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		clock:     clock,
	}
}

// TTL возвращает время жизни выдаваемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
