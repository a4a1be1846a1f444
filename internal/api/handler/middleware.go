package handler

import (
	"net/http"
	"strings"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/auth"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// AuthRequired validates the bearer token from the Authorization header, or from the "token"
// query parameter for clients that cannot set headers.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing", "code": "UNAUTHORIZED"})
			return
		}

		claims, err := h.Auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func requestToken(c *gin.Context) string {
	if token := auth.ExtractBearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func currentRole(c *gin.Context) models.Role {
	role, _ := c.Get(ctxRole)
	r, _ := role.(models.Role)
	return r
}

// requireSelf fails unless id is zero (meaning "the caller") or the caller's own id. It returns
// the effective id.
func requireSelf(c *gin.Context, id uint) (uint, bool) {
	caller := currentUserID(c)
	if id != 0 && id != caller {
		HandleAPIError(c, apperrors.New(apperrors.ErrUnauthorized, "cannot act on behalf of another user"))
		return 0, false
	}
	return caller, true
}

func requireRole(c *gin.Context, role models.Role) bool {
	if currentRole(c) != role {
		HandleAPIError(c, apperrors.New(apperrors.ErrUnauthorized, "only a "+string(role)+" can do this"))
		return false
	}
	return true
}

// RequestLogger logs each request with zerolog after it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else if status >= http.StatusBadRequest {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// RecordMetrics reports every request to the metrics collector, labelled by route pattern.
func (h *Handler) RecordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.Metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
