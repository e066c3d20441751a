package identity

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type codeMail struct {
	subject string
	body    string
}

var (
	signupMail = codeMail{
		subject: "Подтверждение email в FitCoach",
		body:    "<p>Ваш код подтверждения: <b>%s</b></p><p>Код действует 10 минут.</p>",
	}
	loginMail = codeMail{
		subject: "Код входа в FitCoach",
		body:    "<p>Ваш код для входа: <b>%s</b></p><p>Если вы не запрашивали вход, просто проигнорируйте письмо.</p>",
	}
)

// sendCode выдаёт код и отправляет его письмом с ограничением по времени.
// Ошибка отправки возвращается как DispatchError; выданный код остаётся действительным.
func (r *Registry) sendCode(ctx context.Context, issuer CodeIssuer, email string, mail codeMail) error {
	const op = "identity.sendCode"
	code, err := issuer.IssueCode(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.mailTimeout)
	defer cancel()
	if _, err := r.Mailer.Send(ctx, email, mail.subject, fmt.Sprintf(mail.body, code.Code)); err != nil {
		return models.NewDispatchError(op, err)
	}
	return nil
}
