package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/fitcoach-identity/internal/migrations"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const postgresPort = nat.Port("5432/tcp")

// TestDataFactory создаёт тестовые данные напрямую в базе.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateTenant создаёт арендатора с настройками плана по умолчанию.
func (f *TestDataFactory) CreateTenant(t *testing.T, domain *string, plan models.TenantPlan, isGym bool) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		ID:        uuid.NewString(),
		Name:      "test tenant",
		Domain:    domain,
		Plan:      plan,
		IsGym:     isGym,
		IsActive:  true,
		Settings:  models.DefaultTenantSettings(plan),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, f.storage.CreateTenant(context.Background(), tenant))
	return tenant
}

// CreateUser создаёт подтверждённого пользователя через ожидающую регистрацию.
func (f *TestDataFactory) CreateUser(t *testing.T, email string, tenantID *string) models.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	pending := models.PendingIdentity{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      "Test User",
		Plan:      models.PlanIndividual,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, f.storage.CreatePendingIdentity(ctx, pending, now))
	user := models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Name:               pending.Name,
		CreatedAt:          now,
		Role:               models.RoleMember,
		TenantID:           tenantID,
		IsEmailVerified:    true,
		EmailVerifiedAt:    &now,
		SubscriptionType:   models.SubscriptionFree,
		SubscriptionStatus: models.StatusActive,
	}
	require.NoError(t, f.storage.PromotePendingIdentity(ctx, pending.ID, user, models.Enrollment{}))
	return user
}

// SetSubscription выставляет подписку пользователю в обход журнала покупок.
func (f *TestDataFactory) SetSubscription(t *testing.T, userID string, tier models.SubscriptionType,
	status models.SubscriptionStatus, expiry time.Time) {
	t.Helper()
	_, err := f.storage.DB.Exec(`UPDATE users
		SET subscription_type = $2, subscription_status = $3, subscription_expiry_date = $4
		WHERE id = $1`, userID, tier, status, expiry)
	require.NoError(t, err)
}

// UserStatus возвращает статус подписки пользователя.
func (f *TestDataFactory) UserStatus(t *testing.T, userID string) models.SubscriptionStatus {
	t.Helper()
	var status models.SubscriptionStatus
	require.NoError(t, f.storage.DB.QueryRow(
		`SELECT subscription_status FROM users WHERE id = $1`, userID).Scan(&status))
	return status
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, postgresPort)
	require.NoError(t, err, "failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err, "failed to connect to database")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(storage))

	cleanup := func() {
		_ = storage.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
