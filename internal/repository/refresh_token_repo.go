package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"bulldog/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateTokenHash means two tokens hashed to the same lookup key.
// With a 256-bit digest this is operationally impossible; treat it as a hard
// failure, not something to retry with the same record.
var ErrDuplicateTokenHash = errors.New("refresh token hash collision")

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTokenHash
		}
		return err
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) GetByHashForUser(ctx context.Context, hash string, userID int64) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ? AND user_id = ?", hash, userID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) GetActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	now := time.Now().UTC()
	var out []domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeByID flips a single active row to revoked. Returns false when the row
// was already revoked; its original reason is left in place.
func (r *RefreshTokenRepository) RevokeByID(ctx context.Context, id int64, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RevokeAllForUser revokes every active row for the user in one statement.
// Calling it again is a no-op: the filter only matches active rows.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64, reason string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}

// DeleteStale removes rows that can no longer participate in reuse detection:
// expired ones, and revoked ones older than the retention window.
func (r *RefreshTokenRepository) DeleteStale(ctx context.Context, revokedRetention time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-revokedRetention)
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = ? AND revoked_at < ?)", now, true, cutoff).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc/sqlite surfaces constraint failures as plain strings
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
