package models

import "time"

// MailKind назначение письма.
type MailKind string

const (
	MailVerificationCode MailKind = "verification_code"
	MailLoginCode        MailKind = "login_code"
	MailInvitation       MailKind = "invitation"
	MailExpiryReminder   MailKind = "expiry_reminder"
	MailGeneric          MailKind = "generic"
)

// MailMessage письмо в очереди на отправку.
type MailMessage struct {
	ID       string    `json:"id"`
	Kind     MailKind  `json:"kind"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTMLBody string    `json:"html_body"`
	QueuedAt time.Time `json:"queued_at"`
}
