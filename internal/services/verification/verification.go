// Package verification выдаёт и проверяет одноразовые шестизначные коды для email.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// DefaultCodeTTL время жизни кода.
const DefaultCodeTTL = 10 * time.Minute

var codeSpace = big.NewInt(1_000_000)

// Reason причина отказа в проверке кода.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonExpired
	ReasonMismatch
	// ReasonExhausted слишком много неверных попыток, нужен новый код.
	ReasonExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExpired:
		return "expired"
	case ReasonMismatch:
		return "mismatch"
	case ReasonExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Err возвращает типизированную ошибку для причины отказа.
func (r Reason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonMismatch:
		return models.ErrInvalidCode
	default:
		return models.ErrExpiredCode
	}
}

// CodeStore хранилище кодов с атомарной сверкой.
type CodeStore interface {
	Save(ctx context.Context, code models.VerificationCode) error
	Get(ctx context.Context, email string) (*models.VerificationCode, error)
	CompareAndDelete(ctx context.Context, email, code string, now time.Time) (models.CodeCheck, error)
}

// Issuer генерирует, хранит и проверяет коды.
type Issuer struct {
	store    CodeStore
	clock    clockwork.Clock
	ttl      time.Duration
	cooldown time.Duration
	random   io.Reader
	log      *slog.Logger
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithTTL задаёт время жизни кода.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithResendCooldown задаёт минимальный интервал между выдачами кода.
func WithResendCooldown(d time.Duration) Option {
	return func(i *Issuer) { i.cooldown = d }
}

// WithRandom подменяет источник случайности.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

// NewIssuer создаёт Issuer. nil clock означает системные часы.
func NewIssuer(store CodeStore, clock clockwork.Clock, log *slog.Logger, opts ...Option) *Issuer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	i := &Issuer{
		store:  store,
		clock:  clock,
		ttl:    DefaultCodeTTL,
		random: rand.Reader,
		log:    log,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueCode генерирует новый код и заменяет им предыдущий для email.
func (i *Issuer) IssueCode(ctx context.Context, email string) (models.VerificationCode, error) {
	const op = "verification.IssueCode"
	n, err := rand.Int(i.random, codeSpace)
	if err != nil {
		return models.VerificationCode{}, fmt.Errorf("%s: %w", op, err)
	}
	now := i.clock.Now().UTC()
	code := models.VerificationCode{
		Email:     email,
		Code:      fmt.Sprintf("%06d", n.Int64()),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.Save(ctx, code); err != nil {
		return models.VerificationCode{}, fmt.Errorf("%s: %w", op, err)
	}
	i.log.Debug("verification code issued", slog.String("email", email), slog.Time("expires_at", code.ExpiresAt))
	return code, nil
}

// Validate сверяет код. Отсутствующая запись считается истёкшей.
// Совпавший, истёкший или исчерпавший попытки код удаляется, поэтому повторная
// проверка даёт ReasonExpired.
func (i *Issuer) Validate(ctx context.Context, email, code string) (bool, Reason, error) {
	const op = "verification.Validate"
	check, err := i.store.CompareAndDelete(ctx, email, code, i.clock.Now())
	if err != nil {
		return false, ReasonNone, fmt.Errorf("%s: %w", op, err)
	}
	switch check {
	case models.CodeMatched:
		return true, ReasonNone, nil
	case models.CodeMismatch:
		return false, ReasonMismatch, nil
	case models.CodeExhausted:
		i.log.Warn("verification code exhausted", slog.String("email", email))
		return false, ReasonExhausted, nil
	case models.CodeExpired, models.CodeMissing:
		return false, ReasonExpired, nil
	default:
		return false, ReasonExpired, nil
	}
}

// CanResend возвращает models.ErrResendTooSoon, если действующий код выдан
// раньше, чем прошёл интервал повторной отправки.
func (i *Issuer) CanResend(ctx context.Context, email string) error {
	const op = "verification.CanResend"
	if i.cooldown <= 0 {
		return nil
	}
	code, err := i.store.Get(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if i.clock.Now().Before(code.IssuedAt.Add(i.cooldown)) {
		return models.ErrResendTooSoon
	}
	return nil
}
