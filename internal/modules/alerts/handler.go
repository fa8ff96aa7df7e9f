package alerts

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"bulldog/internal/config"
	"bulldog/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler exposes the websocket feed of security alerts.
type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, jwtService *jwt.Service, cfg *config.AuthRuntimeConfig) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg),
		},
	}
}

// checkOrigin is permissive in dev the way the cookie defaults are; in
// prod-like environments cross-origin upgrades are refused.
func checkOrigin(cfg *config.AuthRuntimeConfig) func(r *http.Request) bool {
	if cfg == nil || !cfg.IsProdLike() {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.GET("/alerts/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and registers a watcher.
//
// Endpoint: GET /alerts/ws?token=JWT. Auth is passed as a query parameter since
// websocket clients cannot set headers on the upgrade request.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required, use ?token=YOUR_JWT"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("alert watcher upgrade failed: %v", err)
		return
	}

	h.hub.Register(claims.UserID, conn)
	log.Printf("alert watcher %d connected", claims.UserID)

	defer func() {
		h.hub.Unregister(claims.UserID)
		log.Printf("alert watcher %d disconnected", claims.UserID)
	}()

	// Watchers only listen; the read loop exists to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
