package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const userColumns = `id, email, name, role, tenant_id, is_email_verified, email_verified_at,
	subscription_type, subscription_status, subscription_expiry_date,
	apple_subscription_id, gym_membership_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var tenantID, appleID, gymID sql.NullString
	var verifiedAt, expiry sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &tenantID, &u.IsEmailVerified, &verifiedAt,
		&u.SubscriptionType, &u.SubscriptionStatus, &expiry,
		&appleID, &gymID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.TenantID = stringPtr(tenantID)
	u.AppleSubscriptionID = stringPtr(appleID)
	u.GymMembershipID = stringPtr(gymID)
	u.EmailVerifiedAt = timePtr(verifiedAt)
	u.SubscriptionExpiryDate = timePtr(expiry)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// CreatePendingIdentity создаёт ожидающую регистрацию одним выражением:
// вставка не происходит, если email уже принадлежит пользователю, а существующая
// регистрация заменяется, только если она истекла к моменту now.
func (s *Storage) CreatePendingIdentity(ctx context.Context, p models.PendingIdentity, now time.Time) error {
	const op = "storage.CreatePendingIdentity"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO pending_identities (id, email, name, plan, created_at, expires_at)
			  SELECT $1, $2::text, $3, $4, $5, $6
			  WHERE NOT EXISTS (SELECT 1 FROM users WHERE email = $2::text)
			  ON CONFLICT (email) DO UPDATE
			  SET id = EXCLUDED.id,
			      name = EXCLUDED.name,
			      plan = EXCLUDED.plan,
			      created_at = EXCLUDED.created_at,
			      expires_at = EXCLUDED.expires_at
			  WHERE pending_identities.expires_at <= $7
			  RETURNING id`
	var id string
	err := s.DB.QueryRowContext(ctx, query,
		p.ID, p.Email, p.Name, p.Plan, p.CreatedAt, p.ExpiresAt, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPendingIdentity возвращает регистрацию по email независимо от срока.
func (s *Storage) GetPendingIdentity(ctx context.Context, email string) (*models.PendingIdentity, error) {
	const op = "storage.GetPendingIdentity"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, name, plan, created_at, expires_at
			  FROM pending_identities
			  WHERE email = $1`
	p := &models.PendingIdentity{}
	if err := s.DB.QueryRowContext(ctx, query, email).Scan(
		&p.ID, &p.Email, &p.Name, &p.Plan, &p.CreatedAt, &p.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.ExpiresAt = p.ExpiresAt.UTC()
	return p, nil
}

// ExtendPendingIdentity продлевает срок регистрации при повторной отправке кода.
func (s *Storage) ExtendPendingIdentity(ctx context.Context, email string, expiresAt time.Time) error {
	const op = "storage.ExtendPendingIdentity"
	res, err := s.DB.ExecContext(ctx,
		`UPDATE pending_identities SET expires_at = $2 WHERE email = $1`, email, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// PromotePendingIdentity в одной транзакции удаляет регистрацию, применяет enrollment
// (новый арендатор, удаление приглашений) и создаёт пользователя.
// Регистрация, уже удалённая параллельным подтверждением, даёт models.ErrNotFound,
// домен, занятый другим арендатором за это время, даёт models.ErrDomainTaken.
func (s *Storage) PromotePendingIdentity(ctx context.Context, pendingID string, user models.User,
	enrollment models.Enrollment) error {
	const op = "storage.PromotePendingIdentity"
	if err := user.CheckInvariants(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `DELETE FROM pending_identities WHERE id = $1`, pendingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	if enrollment.NewTenant != nil {
		if err := insertTenant(ctx, tx, *enrollment.NewTenant); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if enrollment.ConsumeInvitations {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE email = $1`, user.Email); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := tx.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Role, user.TenantID, user.IsEmailVerified, user.EmailVerifiedAt,
		user.SubscriptionType, user.SubscriptionStatus, user.SubscriptionExpiryDate,
		user.AppleSubscriptionID, user.GymMembershipID, user.CreatedAt); err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%s: %w", op, models.ErrDuplicateEmail)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountTenantMembers возвращает число пользователей арендатора.
func (s *Storage) CountTenantMembers(ctx context.Context, tenantID string) (int, error) {
	const op = "storage.CountTenantMembers"
	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
