package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FeatureKey ключ метрируемого действия.
type FeatureKey string

const (
	KeyWorkout FeatureKey = "workout"
	KeyAIQuery FeatureKey = "ai_query"
)

// Known проверяет, что ключ метрируется.
func (k FeatureKey) Known() bool {
	switch k {
	case KeyWorkout, KeyAIQuery:
		return true
	default:
		return false
	}
}

// Limit месячный лимит. Нулевое значение Limit означает лимит 0;
// отсутствие ограничения задаётся только через Unlimited().
type Limit struct {
	max       int64
	unlimited bool
}

// Unlimited возвращает лимит без ограничения.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// LimitOf возвращает ограниченный лимит.
func LimitOf(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{max: n}
}

// IsUnlimited сообщает, что ограничения нет.
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Max возвращает значение лимита и признак ограниченности.
func (l Limit) Max() (int64, bool) {
	return l.max, !l.unlimited
}

// Allows сообщает, можно ли выполнить ещё одно действие при текущем счётчике.
func (l Limit) Allows(count int64) bool {
	return l.unlimited || count < l.max
}

// MarshalJSON кодирует Unlimited как null.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return []byte("null"), nil
	}
	return json.Marshal(l.max)
}

// UnmarshalJSON декодирует null как Unlimited.
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = LimitOf(n)
	return nil
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", l.max)
}

// PlanLimits лимиты уровня подписки.
type PlanLimits struct {
	MaxWorkoutsPerMonth  Limit `json:"max_workouts_per_month"`
	MaxAIQueriesPerMonth Limit `json:"max_ai_queries_per_month"`
}

// For возвращает лимит для ключа; для неизвестного ключа ok == false.
func (p PlanLimits) For(key FeatureKey) (Limit, bool) {
	switch key {
	case KeyWorkout:
		return p.MaxWorkoutsPerMonth, true
	case KeyAIQuery:
		return p.MaxAIQueriesPerMonth, true
	default:
		return Limit{}, false
	}
}

// UnlimitedPlanLimits лимиты членов зала.
func UnlimitedPlanLimits() PlanLimits {
	return PlanLimits{
		MaxWorkoutsPerMonth:  Unlimited(),
		MaxAIQueriesPerMonth: Unlimited(),
	}
}

// Window календарный месяц, в котором считаются действия.
type Window struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func (w Window) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}

// UsageKey ключ счётчика (userID, featureKey, year, month).
type UsageKey struct {
	UserID  string
	Feature FeatureKey
	Window  Window
}

func (k UsageKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.UserID, k.Feature, k.Window)
}

// UsageCounter значение счётчика за окно.
type UsageCounter struct {
	Key   UsageKey
	Count int64
}

// Usage текущая статистика использования для ответа клиенту.
type Usage struct {
	Feature FeatureKey `json:"feature"`
	Window  Window     `json:"window"`
	Used    int64      `json:"used"`
	Limit   Limit      `json:"limit"`
}
