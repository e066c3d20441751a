package models

import "time"

// SubscriptionType уровень личной подписки. Уровни упорядочены:
// free < basic < premium < pro.
type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionBasic   SubscriptionType = "basic"
	SubscriptionPremium SubscriptionType = "premium"
	SubscriptionPro     SubscriptionType = "pro"
)

// Rank возвращает порядковый номер уровня; неизвестный уровень считается free.
func (t SubscriptionType) Rank() int {
	switch t {
	case SubscriptionFree:
		return 0
	case SubscriptionBasic:
		return 1
	case SubscriptionPremium:
		return 2
	case SubscriptionPro:
		return 3
	default:
		return 0
	}
}

// Valid проверяет, что уровень известен.
func (t SubscriptionType) Valid() bool {
	switch t {
	case SubscriptionFree, SubscriptionBasic, SubscriptionPremium, SubscriptionPro:
		return true
	default:
		return false
	}
}

// IsPaid сообщает, что уровень выше бесплатного.
func (t SubscriptionType) IsPaid() bool {
	return t.Rank() > 0
}

// SubscriptionStatus состояние личной подписки.
type SubscriptionStatus string

const (
	StatusActive         SubscriptionStatus = "active"
	StatusInactive       SubscriptionStatus = "inactive"
	StatusExpired        SubscriptionStatus = "expired"
	StatusCancelled      SubscriptionStatus = "cancelled"
	StatusPendingRenewal SubscriptionStatus = "pendingRenewal"
	StatusInGracePeriod  SubscriptionStatus = "inGracePeriod"
)

// IsValid сообщает, что подпиской можно пользоваться.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPendingRenewal, StatusInGracePeriod:
		return true
	case StatusInactive, StatusExpired, StatusCancelled:
		return false
	default:
		return false
	}
}

// Product описывает, что даёт покупка конкретного productID.
type Product struct {
	ID       string           `json:"id"`
	Type     SubscriptionType `json:"type"`
	IsYearly bool             `json:"is_yearly"`
}

// ReceiptState результат покупки у провайдера.
type ReceiptState string

const (
	ReceiptPurchased ReceiptState = "purchased"
	ReceiptCancelled ReceiptState = "cancelled"
	ReceiptFailed    ReceiptState = "failed"
	ReceiptRevoked   ReceiptState = "revoked"
)

// Receipt квитанция покупки, полученная клиентом от провайдера.
type Receipt struct {
	TransactionID string       `json:"transaction_id"`
	ProductID     string       `json:"product_id"`
	PurchasedAt   time.Time    `json:"purchased_at"`
	State         ReceiptState `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	Payload       string       `json:"payload,omitempty"`
}

// IsValid сообщает, что по квитанции можно выдать права.
func (r Receipt) IsValid() bool {
	return r.State == ReceiptPurchased && r.TransactionID != "" && r.ProductID != ""
}

// ExpiringSubscription данные для напоминания об окончании подписки.
type ExpiringSubscription struct {
	UserID           string           `json:"user_id"`
	Email            string           `json:"email"`
	Name             string           `json:"name"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	ExpiresAt        time.Time        `json:"expires_at"`
}
