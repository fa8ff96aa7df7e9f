package auth

import "bulldog/internal/modules/tokens"

// RefreshRequest is the body fallback for clients that cannot use the
// refresh cookie (mobile apps keep the sealed token themselves).
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type LogoutResponse struct {
	Session *tokens.SessionMetadata `json:"session,omitempty"`
}

type SessionsResponse struct {
	Sessions []tokens.SessionMetadata `json:"sessions"`
}
