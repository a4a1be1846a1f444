package handler

import (
	"net/http"
	"strings"

	"mentorbridge/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// checkOrigin accepts requests without an Origin header (native clients) and browser origins
// listed in AllowedOrigins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades the request to a WebSocket and hands it to the hub. Browsers cannot
// set headers on the upgrade, so the token may also come as ?token=.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := requestToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing", "code": "UNAUTHORIZED"})
		return
	}

	userID, err := h.Auth.Authenticate(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired", "code": "UNAUTHORIZED"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	chathub.NewWebSocketClient(h.Hub, conn, userID).Run()
}
