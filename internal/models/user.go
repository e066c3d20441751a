// Package models содержит доменные структуры движка идентификации, арендаторов
// и прав доступа: пользователя, ожидающую подтверждения регистрацию, арендатора,
// одноразовые коды, счётчики использования и сессии.
package models

import "time"

// Role роль пользователя внутри арендатора.
type Role string

const (
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
)

// CanInvite сообщает, может ли роль приглашать новых участников в арендатора.
func (r Role) CanInvite() bool {
	switch r {
	case RoleManager, RoleAdmin, RoleOwner:
		return true
	case RoleMember, RoleTrainer:
		return false
	default:
		return false
	}
}

// Valid проверяет, что значение роли известно.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleTrainer, RoleManager, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// User представляет подтверждённого пользователя системы.
//
// Инвариант: если GymMembershipID != nil, то TenantID != nil.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Role     Role    `json:"role"`
	TenantID *string `json:"tenant_id,omitempty"`

	IsEmailVerified bool       `json:"is_email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	SubscriptionType       SubscriptionType   `json:"subscription_type"`
	SubscriptionStatus     SubscriptionStatus `json:"subscription_status"`
	SubscriptionExpiryDate *time.Time         `json:"subscription_expiry_date,omitempty"`
	AppleSubscriptionID    *string            `json:"apple_subscription_id,omitempty"`

	// GymMembershipID задан у членов зала: они получают полный набор функций
	// через арендатора и не расходуют личные квоты.
	GymMembershipID *string `json:"gym_membership_id,omitempty"`
}

// IsGymMember сообщает, что пользователь состоит в зале.
func (u User) IsGymMember() bool {
	return u.GymMembershipID != nil
}

// CheckInvariants проверяет структурные инварианты пользователя.
func (u User) CheckInvariants() error {
	if u.GymMembershipID != nil && u.TenantID == nil {
		return ErrGymMemberWithoutTenant
	}
	return nil
}

// PendingIdentity регистрация, ожидающая подтверждения email.
// На один email может существовать не более одной живой записи.
type PendingIdentity struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Plan      TenantPlan `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// IsLive сообщает, что запись ещё не брошена.
func (p PendingIdentity) IsLive(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// Session выданная пользователю сессия.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	TenantID  *string   `json:"tenant_id,omitempty"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
