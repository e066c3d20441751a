package models

import (
	"strings"
	"time"
)

// TenantPlan тарифный план организации.
type TenantPlan string

const (
	PlanIndividual TenantPlan = "individual"
	PlanTeam       TenantPlan = "team"
	PlanEnterprise TenantPlan = "enterprise"
)

// Valid проверяет, что план известен.
func (p TenantPlan) Valid() bool {
	switch p {
	case PlanIndividual, PlanTeam, PlanEnterprise:
		return true
	default:
		return false
	}
}

// TenantSettings настройки арендатора.
type TenantSettings struct {
	MaxUsers          int       `json:"max_users"`
	FeaturesEnabled   []Feature `json:"features_enabled"`
	DataRetentionDays int       `json:"data_retention_days"`
}

// Tenant организация, в рамках которой живут пользователи.
//
// Domain уникален среди активных арендаторов.
type Tenant struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Domain    *string        `json:"domain,omitempty"`
	Plan      TenantPlan     `json:"plan"`
	IsGym     bool           `json:"is_gym"`
	IsActive  bool           `json:"is_active"`
	Settings  TenantSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsGymEnterprise сообщает, что арендатор является залом на корпоративном плане.
// Такой арендатор не сужает набор функций своих участников.
func (t Tenant) IsGymEnterprise() bool {
	return t.IsGym && t.Plan == PlanEnterprise
}

// DefaultTenantSettings возвращает настройки по умолчанию для плана.
func DefaultTenantSettings(plan TenantPlan) TenantSettings {
	switch plan {
	case PlanTeam:
		return TenantSettings{
			MaxUsers:          25,
			FeaturesEnabled:   TierFeatures(SubscriptionPro).Slice(),
			DataRetentionDays: 730,
		}
	case PlanEnterprise:
		return TenantSettings{
			MaxUsers:          500,
			FeaturesEnabled:   EnterpriseFeatures().Slice(),
			DataRetentionDays: 1825,
		}
	default:
		return TenantSettings{
			MaxUsers:          1,
			FeaturesEnabled:   TierFeatures(SubscriptionPro).Slice(),
			DataRetentionDays: 365,
		}
	}
}

// Invitation приглашение в арендатора. Членство возникает только при принятии.
type Invitation struct {
	Email     string    `json:"email"`
	TenantID  string    `json:"tenant_id"`
	InvitedBy string    `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment изменения арендаторов, которые сохраняются в одной транзакции
// с созданием подтверждённого пользователя.
type Enrollment struct {
	// NewTenant создаётся вместе с пользователем; nil при входе в существующего арендатора.
	NewTenant *Tenant
	// ConsumeInvitations удаляет все приглашения email пользователя.
	ConsumeInvitations bool
}

// DispatchResult результат отправки письма внешнему почтовому сервису.
type DispatchResult struct {
	Delivered bool `json:"delivered"`
}

// EmailDomain возвращает домен адреса в нижнем регистре или пустую строку.
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// NormalizeEmail приводит адрес к каноническому виду для поиска и уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
