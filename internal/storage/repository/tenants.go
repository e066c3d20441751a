package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const tenantColumns = `id, name, domain, plan, is_gym, is_active, settings, created_at`

func scanTenant(row rowScanner) (*models.Tenant, error) {
	t := &models.Tenant{}
	var domain sql.NullString
	var settings []byte
	if err := row.Scan(&t.ID, &t.Name, &domain, &t.Plan, &t.IsGym, &t.IsActive, &settings, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("%w: tenant %s settings: %v", models.ErrCorruptRecord, t.ID, err)
	}
	t.Domain = stringPtr(domain)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func insertTenant(ctx context.Context, db execer, t models.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}
	query := `INSERT INTO tenants (` + tenantColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := db.ExecContext(ctx, query,
		t.ID, t.Name, t.Domain, t.Plan, t.IsGym, t.IsActive, string(settings), t.CreatedAt); err != nil {
		if isUniqueViolation(err, "idx_tenants_active_domain") {
			return models.ErrDomainTaken
		}
		return err
	}
	return nil
}

// CreateTenant сохраняет арендатора вне регистрации, например зал, заведённый
// администратором. Домен, занятый другим активным арендатором, даёт models.ErrDomainTaken.
func (s *Storage) CreateTenant(ctx context.Context, t models.Tenant) error {
	const op = "storage.CreateTenant"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := insertTenant(ctx, s.DB, t); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetTenant возвращает арендатора по ID.
func (s *Storage) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	const op = "storage.GetTenant"
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return t, nil
}

// GetTenantByDomain возвращает активного арендатора с доменом.
func (s *Storage) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	const op = "storage.GetTenantByDomain"
	query := `SELECT ` + tenantColumns + ` FROM tenants
			  WHERE lower(domain) = lower($1) AND is_active`
	t, err := scanTenant(s.DB.QueryRowContext(ctx, query, domain))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return t, nil
}

// CreateInvitation сохраняет приглашение; повторное приглашение обновляет пригласившего.
func (s *Storage) CreateInvitation(ctx context.Context, inv models.Invitation) error {
	const op = "storage.CreateInvitation"
	query := `INSERT INTO invitations (email, tenant_id, invited_by, created_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (email, tenant_id) DO UPDATE
			  SET invited_by = EXCLUDED.invited_by, created_at = EXCLUDED.created_at`
	if _, err := s.DB.ExecContext(ctx, query, inv.Email, inv.TenantID, inv.InvitedBy, inv.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListInvitations возвращает приглашения для email, старые первыми.
func (s *Storage) ListInvitations(ctx context.Context, email string) ([]models.Invitation, error) {
	const op = "storage.ListInvitations"
	rows, err := s.DB.QueryContext(ctx, `SELECT email, tenant_id, invited_by, created_at
			  FROM invitations
			  WHERE email = $1
			  ORDER BY created_at, tenant_id`, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var res []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.Email, &inv.TenantID, &inv.InvitedBy, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		inv.CreatedAt = inv.CreatedAt.UTC()
		res = append(res, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
