// Package handler exposes the HTTP and realtime API over gin.
package handler

import (
	"net/http"

	"mentorbridge/backend/internal/auth"
	"mentorbridge/backend/internal/chathub"
	"mentorbridge/backend/internal/connection"
	"mentorbridge/backend/internal/media"
	"mentorbridge/backend/internal/message"
	"mentorbridge/backend/internal/metrics"
	"mentorbridge/backend/internal/rating"
	"mentorbridge/backend/internal/storage"
	"mentorbridge/backend/internal/swipe"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler holds the services the routes call. Media and SocketIO may be nil, in which case the
// matching routes answer 503 or are not mounted.
type Handler struct {
	Hub         *chathub.Manager
	Storage     storage.Storage
	Auth        *auth.Service
	Swipes      *swipe.Service
	Connections *connection.Service
	Messages    *message.Service
	Rating      *rating.Service
	Media       *media.Service
	SocketIO    http.Handler

	Metrics     metrics.MetricsCollector
	Gatherer    prometheus.Gatherer
	Limiter     *RateLimiter
	AuthLimiter *RateLimiter

	// AllowedOrigins are the browser origins accepted on /ws; "*" accepts any.
	AllowedOrigins []string
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	if h.Metrics == nil {
		h.Metrics = metrics.Nop{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), h.RecordMetrics())

	r.GET("/healthz", h.Health)
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(h.Gatherer)))
	}

	r.GET("/ws", h.ServeWebSocket)
	if h.SocketIO != nil {
		r.GET("/socket.io/*any", gin.WrapH(h.SocketIO))
		r.POST("/socket.io/*any", gin.WrapH(h.SocketIO))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if h.AuthLimiter != nil {
		authGroup.Use(h.AuthLimiter.ByClientIP())
	}
	authGroup.POST("/signup", h.Signup)
	authGroup.POST("/verify-otp", h.VerifyOTP)
	authGroup.POST("/resend-otp", h.ResendOTP)
	authGroup.POST("/login", h.Login)

	secured := api.Group("", h.AuthRequired())
	if h.Limiter != nil {
		secured.Use(h.Limiter.Middleware())
	}

	secured.GET("/mentors", h.ListMentors)
	secured.POST("/mentors/verify", h.VerifyMentor)
	secured.POST("/users/skills", h.UpdateSkills)
	secured.POST("/users/update-skills", h.UpdateSkills)
	secured.GET("/users/me", h.Me)

	secured.POST("/swipes", h.RecordSwipe)

	secured.POST("/connections/request", h.RequestConnection)
	secured.GET("/connections/pending/:mentorId", h.ListPending)
	secured.POST("/connections/respond", h.RespondConnection)
	secured.GET("/connections/active/:userId", h.ListActive)

	secured.GET("/messages/:roomId", h.ListMessages)
	secured.POST("/messages", h.SendMessage)

	secured.POST("/uploads", h.CreateUpload)
	secured.GET("/uploads/url", h.ReadUpload)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
