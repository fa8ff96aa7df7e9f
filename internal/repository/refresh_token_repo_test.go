package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bulldog/internal/domain"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) (*RefreshTokenRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_test_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}))
	require.NoError(t, db.Create(&domain.User{ID: 1, Email: "user@example.com", Name: "Test User"}).Error)
	return NewRefreshTokenRepository(db), db
}

func testRecord(hash string, expiresAt time.Time) *domain.RefreshToken {
	return &domain.RefreshToken{
		UserID:         1,
		EncryptedToken: "sealed-" + hash,
		TokenHash:      hash,
		ExpiresAt:      expiresAt,
	}
}

func TestCreateRejectsDuplicateHash(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, repo.Create(ctx, testRecord("same-hash", future)))

	err := repo.Create(ctx, testRecord("same-hash", future))
	assert.ErrorIs(t, err, ErrDuplicateTokenHash)
}

func TestRevokeByIDIsGuarded(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	rec := testRecord("hash-1", time.Now().UTC().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, rec))

	revoked, err := repo.RevokeByID(ctx, rec.ID, "User logout")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Already revoked: the second call must not rewrite anything.
	revoked, err = repo.RevokeByID(ctx, rec.ID, "Other reason")
	require.NoError(t, err)
	assert.False(t, revoked)

	stored, err := repo.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, stored.RevokedReason)
	assert.Equal(t, "User logout", *stored.RevokedReason)
}

func TestGetActiveByUserFiltersRevokedAndExpired(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	live := testRecord("hash-live", now.Add(time.Hour))
	expired := testRecord("hash-expired", now.Add(-time.Hour))
	revoked := testRecord("hash-revoked", now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, revoked))
	_, err := repo.RevokeByID(ctx, revoked.ID, "User logout")
	require.NoError(t, err)

	active, err := repo.GetActiveByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "hash-live", active[0].TokenHash)
}

func TestDeleteStale(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	live := testRecord("hash-live", now.Add(time.Hour))
	expired := testRecord("hash-expired", now.Add(-time.Hour))
	oldRevoked := testRecord("hash-old-revoked", now.Add(time.Hour))
	freshRevoked := testRecord("hash-fresh-revoked", now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, oldRevoked))
	require.NoError(t, repo.Create(ctx, freshRevoked))

	longAgo := now.Add(-40 * 24 * time.Hour)
	require.NoError(t, db.Model(&domain.RefreshToken{}).
		Where("id = ?", oldRevoked.ID).
		Updates(map[string]any{"revoked": true, "revoked_at": longAgo, "revoked_reason": "User logout"}).Error)
	_, err := repo.RevokeByID(ctx, freshRevoked.ID, "User logout")
	require.NoError(t, err)

	deleted, err := repo.DeleteStale(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []domain.RefreshToken
	require.NoError(t, db.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, "hash-live", remaining[0].TokenHash)
	// Recently revoked rows stay for reuse detection.
	assert.Equal(t, "hash-fresh-revoked", remaining[1].TokenHash)
}
