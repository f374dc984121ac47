package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/notevault/internal/migrations"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// setupTestDatabase поднимает контейнер PostgreSQL, применяет миграции
// и возвращает готовое хранилище вместе с функцией очистки.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			if err = storage.DB.Ping(); err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	err = migrations.Run(storage.DB, "../../../migrations")
	require.NoError(t, err, "failed to apply migrations")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if postgresContainer != nil {
			_ = postgresContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, username, email string) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (email, username, password_hash, role)
		VALUES ($1, $2, $3, $4) RETURNING uid`,
		email, username, "hashedpassword", models.RoleUser).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// CreateSubscription создает версию подписки с заданным created_at
// и возвращает её ID
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID string,
	planType models.PlanType, status models.SubscriptionStatus,
	providerSubID string, createdAt time.Time, deleted bool) string {
	var deletedAt *time.Time
	if deleted {
		ts := createdAt.Add(time.Minute)
		deletedAt = &ts
	}
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_uid, plan_type, status, provider_subscription_id, created_at, deleted_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6) RETURNING id`,
		userUID, planType, status, providerSubID, createdAt, deletedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateUsageRecord создает запись об использовании с заданным created_at
func (f *TestDataFactory) CreateUsageRecord(t *testing.T, userUID string,
	operation models.Operation, createdAt time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO usage_records
		(user_uid, operation, tokens_used, cost, created_at)
		VALUES ($1, $2, 0, 0, $3)`,
		userUID, operation, createdAt)
	require.NoError(t, err)
}

// CreateNote создает заметку, опционально помеченную удалённой
func (f *TestDataFactory) CreateNote(t *testing.T, userUID string, deleted bool) {
	var deletedAt *time.Time
	if deleted {
		now := time.Now()
		deletedAt = &now
	}
	_, err := f.storage.DB.Exec(`INSERT INTO notes (user_uid, deleted_at)
		VALUES ($1, $2)`,
		userUID, deletedAt)
	require.NoError(t, err)
}

// newProviderSubID возвращает уникальный внешний идентификатор подписки
func newProviderSubID() string {
	return "sub_" + uuid.New().String()
}
