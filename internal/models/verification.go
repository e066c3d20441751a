package models

import "time"

// VerificationCode одноразовый шестизначный код для email.
type VerificationCode struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeCheck результат сверки кода в хранилище.
type CodeCheck int

const (
	// CodeMatched код совпал и запись удалена.
	CodeMatched CodeCheck = iota
	// CodeMismatch код не совпал, запись сохранена.
	CodeMismatch
	// CodeExpired срок истёк, запись удалена.
	CodeExpired
	// CodeMissing записи нет.
	CodeMissing
	// CodeExhausted исчерпан предел неверных попыток, запись удалена.
	CodeExhausted
)

func (c CodeCheck) String() string {
	switch c {
	case CodeMatched:
		return "matched"
	case CodeMismatch:
		return "mismatch"
	case CodeExpired:
		return "expired"
	case CodeMissing:
		return "missing"
	case CodeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Workout запись тренировки. Всегда читается в рамках арендатора и пользователя.
type Workout struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TenantID        string    `json:"tenant_id"`
	Title           string    `json:"title"`
	Notes           string    `json:"notes,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	GeneratedByAI   bool      `json:"generated_by_ai"`
	CreatedAt       time.Time `json:"created_at"`
}
