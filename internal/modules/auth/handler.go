package auth

import (
	"net/http"
	"strings"

	"bulldog/internal/config"
	"bulldog/internal/modules/tokens"
	"bulldog/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

// Handler is the transport adapter over the token service: cookie handling
// and error mapping live here, the lifecycle semantics live in tokens.
type Handler struct {
	service *tokens.Service
	cfg     *config.AuthRuntimeConfig
}

func NewHandler(service *tokens.Service, cfg *config.AuthRuntimeConfig) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
	}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/refresh", h.Refresh)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/logout-all", h.LogoutAll)
		authGroup.GET("/sessions", h.Sessions)
	}
}

// Refresh rotates the presented refresh token and sets the replacement as an
// HttpOnly cookie. All security failures map to one generic 401 so a caller
// cannot probe which branch it hit; details go to the alerting hook instead.
func (h *Handler) Refresh(c *gin.Context) {
	encrypted := h.presentedToken(c)
	if encrypted == "" {
		response.Error(c, http.StatusUnauthorized, "MISSING_REFRESH_TOKEN", "No refresh token provided")
		return
	}

	result, err := h.service.Rotate(c.Request.Context(), encrypted, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if tokens.IsSecurityFailure(err) {
			h.clearRefreshCookie(c)
			response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid, please log in again")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh session")
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Success(c, http.StatusOK, RefreshResponse{AccessToken: result.AccessToken})
}

// Logout revokes the session behind the presented refresh token. Revoking an
// already-gone session still succeeds: the cookie is cleared either way.
func (h *Handler) Logout(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var session *tokens.SessionMetadata
	if encrypted := h.presentedToken(c); encrypted != "" {
		var err error
		session, err = h.service.RevokeOne(c.Request.Context(), encrypted, userID)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out")
			return
		}
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, LogoutResponse{Session: session})
}

// LogoutAll revokes every active session of the current user.
func (h *Handler) LogoutAll(c *gin.Context) {
	userID := c.GetInt64("user_id")

	if err := h.service.RevokeAll(c.Request.Context(), userID, tokens.ReasonUserLogout); err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out everywhere")
		return
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Sessions lists the current user's active sessions for display.
func (h *Handler) Sessions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	sessions, err := h.service.ActiveSessions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "SESSIONS_FAILED", "Failed to list sessions")
		return
	}

	response.Success(c, http.StatusOK, SessionsResponse{Sessions: sessions})
}

func (h *Handler) presentedToken(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(sameSiteMode(h.cfg.CookieSameSite))
	c.SetCookie(
		refreshCookieName,
		value,
		int(h.cfg.RefreshTTL.Seconds()),
		h.cfg.CookiePath,
		"",
		h.cfg.CookieSecure,
		true,
	)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(sameSiteMode(h.cfg.CookieSameSite))
	c.SetCookie(refreshCookieName, "", -1, h.cfg.CookiePath, "", h.cfg.CookieSecure, true)
}

func sameSiteMode(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
