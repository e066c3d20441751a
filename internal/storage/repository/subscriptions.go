package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

func updateSubscription(ctx context.Context, tx execer, user models.User) error {
	res, err := tx.ExecContext(ctx, `UPDATE users
			  SET subscription_type = $2,
			      subscription_status = $3,
			      subscription_expiry_date = $4,
			      apple_subscription_id = $5
			  WHERE id = $1`,
		user.ID, user.SubscriptionType, user.SubscriptionStatus,
		user.SubscriptionExpiryDate, user.AppleSubscriptionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func insertReceipt(ctx context.Context, tx execer, userID string, r models.Receipt) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO receipts (transaction_id, user_id, product_id, state, purchased_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (transaction_id) DO NOTHING`,
		r.TransactionID, userID, r.ProductID, string(r.State), r.PurchasedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SaveSubscription записывает квитанцию и подписку пользователя в одной транзакции.
// Уже записанная квитанция ничего не меняет и даёт false.
func (s *Storage) SaveSubscription(ctx context.Context, user models.User, receipt models.Receipt) (bool, error) {
	const op = "storage.SaveSubscription"
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	inserted, err := insertReceipt(ctx, tx, user.ID, receipt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		return false, nil
	}
	if err := updateSubscription(ctx, tx, user); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// RestoreSubscription записывает подписку по восстановленной квитанции.
func (s *Storage) RestoreSubscription(ctx context.Context, user models.User, receipt models.Receipt) error {
	const op = "storage.RestoreSubscription"
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	if _, err := insertReceipt(ctx, tx, user.ID, receipt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := updateSubscription(ctx, tx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LapseSubscriptions переводит истёкшие платные подписки в льготный период,
// а по его окончании в expired. Возвращает число изменённых записей каждого вида.
func (s *Storage) LapseSubscriptions(ctx context.Context, now time.Time, grace time.Duration) (int64, int64, error) {
	const op = "storage.LapseSubscriptions"
	cutoff := now.Add(-grace)

	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_status = $1
			  WHERE subscription_type <> $2
			    AND subscription_status IN ($3, $4, $5)
			    AND subscription_expiry_date <= $6`,
		models.StatusExpired, models.SubscriptionFree,
		models.StatusActive, models.StatusPendingRenewal, models.StatusInGracePeriod, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	expired, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	res, err = s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_status = $1
			  WHERE subscription_type <> $2
			    AND subscription_status IN ($3, $4)
			    AND subscription_expiry_date <= $5`,
		models.StatusInGracePeriod, models.SubscriptionFree,
		models.StatusActive, models.StatusPendingRenewal, now)
	if err != nil {
		return 0, expired, fmt.Errorf("%s: %w", op, err)
	}
	graced, err := res.RowsAffected()
	if err != nil {
		return 0, expired, fmt.Errorf("%s: %w", op, err)
	}
	return graced, expired, nil
}

// ListExpiringSubscriptions возвращает действующие платные подписки,
// срок которых наступает в интервале [from, to).
func (s *Storage) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error) {
	const op = "storage.ListExpiringSubscriptions"
	rows, err := s.DB.QueryContext(ctx, `SELECT id, email, name, subscription_type, subscription_expiry_date
			  FROM users
			  WHERE subscription_type <> $1
			    AND subscription_status IN ($2, $3)
			    AND subscription_expiry_date >= $4
			    AND subscription_expiry_date < $5
			  ORDER BY subscription_expiry_date`,
		models.SubscriptionFree, models.StatusActive, models.StatusPendingRenewal, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var res []models.ExpiringSubscription
	for rows.Next() {
		var e models.ExpiringSubscription
		if err := rows.Scan(&e.UserID, &e.Email, &e.Name, &e.SubscriptionType, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.ExpiresAt = e.ExpiresAt.UTC()
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// PurgePendingIdentities удаляет брошенные регистрации, истёкшие к моменту now.
func (s *Storage) PurgePendingIdentities(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgePendingIdentities"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM pending_identities WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
