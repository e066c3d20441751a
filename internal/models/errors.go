package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail email уже подтверждён или ожидает подтверждения.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCode код не совпал.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrExpiredCode срок кода истёк или кода нет.
	ErrExpiredCode = errors.New("verification code expired")
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded лимит использования исчерпан.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUnknownProduct productID не сопоставлен ни с одним уровнем.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrDispatchFailure внешний сервис (почта, покупки, генератор) недоступен.
	ErrDispatchFailure = errors.New("dispatch failure")

	ErrResendTooSoon          = errors.New("code was sent recently")
	ErrForbidden              = errors.New("forbidden")
	ErrPurchaseCancelled      = errors.New("purchase cancelled")
	ErrCorruptRecord          = errors.New("corrupt stored record")
	ErrFeatureNotAvailable    = errors.New("feature not available on current plan")
	ErrUnknownFeatureKey      = errors.New("unknown metered feature")
	ErrGymMemberWithoutTenant = errors.New("gym member must belong to a tenant")
	ErrDomainTaken            = errors.New("tenant domain already taken")
	ErrPurchaseFailed         = errors.New("purchase failed")
	ErrUnauthenticated        = errors.New("session is invalid or expired")
)

// DispatchError ошибка обращения к внешнему сервису. Восстановимая:
// вызывающая сторона может повторить операцию.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrDispatchFailure, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать через errors.Is(err, ErrDispatchFailure).
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailure
}

// NewDispatchError оборачивает ошибку внешнего сервиса.
func NewDispatchError(op string, err error) error {
	return &DispatchError{Op: op, Err: err}
}
