package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"bulldog/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the refresh token lifecycle: issue, rotate, revoke.
//
// Rotation runs as a transactional read-modify-write on the matched row so
// that two rotations racing on the same token resolve to exactly one winner
// even across process instances. The loser observes the already-revoked row
// and is treated as reuse.
type Service struct {
	db         *gorm.DB
	tokens     RefreshTokenRepositoryInterface
	envelope   *Envelope
	jwt        accessTokenIssuer
	alerts     Alerter
	refreshTTL time.Duration
}

func NewService(
	db *gorm.DB,
	tokens RefreshTokenRepositoryInterface,
	envelope *Envelope,
	jwt accessTokenIssuer,
	alerts Alerter,
	refreshTTL time.Duration,
) *Service {
	return &Service{
		db:         db,
		tokens:     tokens,
		envelope:   envelope,
		jwt:        jwt,
		alerts:     alerts,
		refreshTTL: refreshTTL,
	}
}

// Issue creates a fresh refresh token for the user. The returned record
// carries the sealed form (EncryptedToken) for transport; the raw value is
// discarded after the hashed and sealed forms are derived.
func (s *Service) Issue(ctx context.Context, userID int64, clientIP, userAgent string) (*domain.RefreshToken, error) {
	rec, err := s.newRecord(userID, clientIP, userAgent, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rotate exchanges a presented sealed refresh token for a new access token
// and a new sealed refresh token, revoking the old row.
//
// Terminal states and their handling:
//   - tamper:   ErrTokenTampered, alerted, no store access at all
//   - unknown:  SecurityError{KindUnknown}, alerted, no mutation
//   - revoked:  SecurityError{KindReuse}, alerted, every active token of the
//     owning user is revoked with ReasonReuseDetected
//   - expired:  SecurityError{KindExpired}, not alerted, exactly one write
//     (the row is revoked with ReasonExpired)
//   - valid:    old row revoked with ReasonRotated, replacement issued
//
// The reuse and expiry writes must survive the failed call, so the
// transaction never returns the security error itself; it commits and the
// error is built from the captured outcome afterwards.
func (s *Service) Rotate(ctx context.Context, encryptedToken, clientIP, userAgent string) (*RotateResult, error) {
	raw, err := s.envelope.Unprotect(encryptedToken)
	if err != nil {
		s.alerts.Alert(
			"Refresh token decryption failed",
			"a presented refresh token could not be decrypted, possible tampering or key mismatch",
		)
		return nil, ErrTokenTampered
	}

	hash := s.envelope.Hash(raw)
	now := time.Now().UTC()

	var (
		result *RotateResult
		secErr *SecurityError
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RefreshToken
		if err := lockForUpdate(tx).Where("token_hash = ?", hash).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				secErr = &SecurityError{Kind: KindUnknown}
				return nil
			}
			return err
		}

		// Reuse check comes before expiry: an expired-and-revoked token is a
		// replay of a rotated-away credential, the stronger signal.
		if current.Revoked {
			if err := revokeAllActiveTx(tx, current.UserID, ReasonReuseDetected, now); err != nil {
				return err
			}
			secErr = &SecurityError{Kind: KindReuse, UserID: current.UserID}
			return nil
		}

		if current.IsExpired(now) {
			revoked, err := revokeTx(tx, current.ID, ReasonExpired, now)
			if err != nil {
				return err
			}
			if !revoked {
				// Someone revoked it between our read and write; reclassify.
				if err := revokeAllActiveTx(tx, current.UserID, ReasonReuseDetected, now); err != nil {
					return err
				}
				secErr = &SecurityError{Kind: KindReuse, UserID: current.UserID}
				return nil
			}
			secErr = &SecurityError{Kind: KindExpired, UserID: current.UserID}
			return nil
		}

		revoked, err := revokeTx(tx, current.ID, ReasonRotated, now)
		if err != nil {
			return err
		}
		if !revoked {
			// Lost the race against a sibling rotation on the same row.
			if err := revokeAllActiveTx(tx, current.UserID, ReasonReuseDetected, now); err != nil {
				return err
			}
			secErr = &SecurityError{Kind: KindReuse, UserID: current.UserID}
			return nil
		}

		next, err := s.newRecord(current.UserID, clientIP, userAgent, now)
		if err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}

		accessToken, err := s.jwt.GenerateToken(current.UserID)
		if err != nil {
			return err
		}

		result = &RotateResult{AccessToken: accessToken, RefreshToken: next.EncryptedToken}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if secErr != nil {
		switch secErr.Kind {
		case KindUnknown:
			s.alerts.Alert(
				"Unknown refresh token used",
				"a well-formed refresh token matched no stored session, possible forgery",
			)
		case KindReuse:
			s.alerts.Alert(
				"Refresh token reuse detected",
				fmt.Sprintf("refresh token reuse detected for user %d, all sessions revoked", secErr.UserID),
			)
		}
		return nil, secErr
	}
	return result, nil
}

// RevokeAll revokes every active refresh token for the user. Idempotent:
// already-revoked rows keep their original reason and timestamp.
func (s *Service) RevokeAll(ctx context.Context, userID int64, reason string) error {
	return s.tokens.RevokeAllForUser(ctx, userID, reason)
}

// RevokeOne revokes the session behind the presented sealed token, scoped to
// the given user. Returns nil metadata when the token does not decrypt or
// matches nothing; logging out of an already-gone session is not an error.
func (s *Service) RevokeOne(ctx context.Context, encryptedToken string, userID int64) (*SessionMetadata, error) {
	raw, err := s.envelope.Unprotect(encryptedToken)
	if err != nil {
		return nil, nil
	}

	hash := s.envelope.Hash(raw)
	rec, err := s.tokens.GetByHashForUser(ctx, hash, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := s.tokens.RevokeByID(ctx, rec.ID, ReasonUserLogout); err != nil {
		return nil, err
	}

	// Re-read so the metadata carries the revocation timestamp just written
	// (or the original one, when the row was already revoked).
	rec, err = s.tokens.GetByHashForUser(ctx, hash, userID)
	if err != nil {
		return nil, err
	}
	return sessionMetadata(rec), nil
}

// ActiveSessions lists the user's not-yet-revoked, not-yet-expired sessions.
func (s *Service) ActiveSessions(ctx context.Context, userID int64) ([]SessionMetadata, error) {
	recs, err := s.tokens.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionMetadata, 0, len(recs))
	for i := range recs {
		out = append(out, *sessionMetadata(&recs[i]))
	}
	return out, nil
}

func (s *Service) newRecord(userID int64, clientIP, userAgent string, now time.Time) (*domain.RefreshToken, error) {
	raw, err := generateRawToken()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.envelope.Protect(raw)
	if err != nil {
		return nil, err
	}
	return &domain.RefreshToken{
		UserID:         userID,
		EncryptedToken: encrypted,
		TokenHash:      s.envelope.Hash(raw),
		ExpiresAt:      now.Add(s.refreshTTL),
		CreatedByIP:    nullableString(clientIP),
		UserAgent:      nullableString(userAgent),
	}, nil
}

// revokeTx flips one active row to revoked. Guarded on revoked = false so a
// concurrent revoke shows up as zero rows affected instead of a double write.
func revokeTx(tx *gorm.DB, id int64, reason string, now time.Time) (bool, error) {
	res := tx.Model(&domain.RefreshToken{}).
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

func revokeAllActiveTx(tx *gorm.DB, userID int64, reason string, now time.Time) error {
	return tx.Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}

// lockForUpdate takes a row lock where the dialect supports it. SQLite has no
// FOR UPDATE; there the guarded updates plus its single-writer model carry
// the ordering guarantee.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func generateRawToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func sessionMetadata(t *domain.RefreshToken) *SessionMetadata {
	return &SessionMetadata{
		ID:        t.ID,
		IP:        t.CreatedByIP,
		UserAgent: t.UserAgent,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		RevokedAt: t.RevokedAt,
	}
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
