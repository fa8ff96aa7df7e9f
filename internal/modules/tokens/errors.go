package tokens

import "errors"

// Revocation reasons stamped on refresh token rows. These are stored values,
// not display strings; do not reword without a migration.
const (
	ReasonRotated       = "Token rotated"
	ReasonReuseDetected = "Refresh token reuse detected"
	ReasonExpired       = "Expired"
	ReasonUserLogout    = "User logout"
)

// ErrTokenTampered means the presented value was not produced by Protect
// under the current key: corrupted, forged, or sealed under a foreign key.
var ErrTokenTampered = errors.New("refresh token tampered or malformed")

type SecurityKind string

const (
	KindReuse   SecurityKind = "reuse"
	KindUnknown SecurityKind = "unknown"
	KindExpired SecurityKind = "expired"
)

// SecurityError is the terminal outcome of a rotation that did not succeed.
// UserID is zero when the presented token never matched a record.
type SecurityError struct {
	Kind   SecurityKind
	UserID int64
}

func (e *SecurityError) Error() string {
	switch e.Kind {
	case KindReuse:
		return "refresh token reuse detected, all sessions revoked"
	case KindExpired:
		return "refresh token has expired"
	default:
		return "unknown refresh token"
	}
}

// IsSecurityFailure reports whether err is any of the rotation security
// outcomes (tamper included), as opposed to a store failure.
func IsSecurityFailure(err error) bool {
	var secErr *SecurityError
	return errors.Is(err, ErrTokenTampered) || errors.As(err, &secErr)
}
