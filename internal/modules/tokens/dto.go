package tokens

import "time"

// RotateResult carries the replacement credentials after a successful
// rotation. RefreshToken is the sealed form, safe to hand to the client.
type RotateResult struct {
	AccessToken  string
	RefreshToken string
}

// SessionMetadata is what we expose about a session for audit/display.
// Never includes any token material.
type SessionMetadata struct {
	ID        int64      `json:"id"`
	IP        *string    `json:"ip,omitempty"`
	UserAgent *string    `json:"user_agent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
