package tokens

import (
	"context"

	"bulldog/internal/domain"
)

// accessTokenIssuer is the short-lived credential boundary, opaque to this module
type accessTokenIssuer interface {
	GenerateToken(userID int64) (string, error)
}

// Alerter receives suspicious-event notifications. Best effort: implementations
// must not block the rotation call and their failures are never propagated.
type Alerter interface {
	Alert(subject, message string)
}

// RefreshTokenRepositoryInterface lists only the methods the token service uses
// outside of its own rotation transaction
type RefreshTokenRepositoryInterface interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHashForUser(ctx context.Context, hash string, userID int64) (*domain.RefreshToken, error)
	GetActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID int64, reason string) error
	RevokeByID(ctx context.Context, id int64, reason string) (bool, error)
}
