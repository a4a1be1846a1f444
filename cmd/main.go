package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorbridge/backend/internal/api/handler"
	"mentorbridge/backend/internal/auth"
	"mentorbridge/backend/internal/chathub"
	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/connection"
	"mentorbridge/backend/internal/localization"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/mailer"
	"mentorbridge/backend/internal/media"
	"mentorbridge/backend/internal/message"
	"mentorbridge/backend/internal/metrics"
	"mentorbridge/backend/internal/rating"
	"mentorbridge/backend/internal/storage"
	"mentorbridge/backend/internal/swipe"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupStorage opens the configured store. Redis is optional: without it realtime events are
// delivered by this process only.
func setupStorage(ctx context.Context, cfg *config.Config) (storage.Storage, chathub.Relay) {
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect Redis")
		}
	}

	if cfg.Storage.Driver == "memory" {
		logger.Warn().Msg("Using in-memory storage, data is lost on restart")
		if rdb == nil {
			return storage.NewMemoryStorage(), nil
		}
		return storage.NewMemoryStorage(), storage.NewStorageService(nil, rdb)
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect PostgreSQL")
	}

	svc := storage.NewStorageService(db, rdb)
	if err := svc.AutoMigrate(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Info().Bool("redis", rdb != nil).Msg("Database connection established, migrations complete")

	if rdb == nil {
		return svc, nil
	}
	return svc, svc
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Configure(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger.Info().Str("mode", cfg.Server.Mode).Msg("Starting MentorBridge backend")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, relay := setupStorage(ctx, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// The hub and the connection service need each other; rooms are set once both exist.
	hub := chathub.NewManager(relay, nil)
	hub.Metrics = collector
	connSvc := connection.NewService(store, hub)
	hub.SetRooms(connSvc)
	msgSvc := message.NewService(store, connSvc, hub)
	hub.Messages = msgSvc

	var loc *localization.Localizer
	if cfg.Server.LocalesDir != "" {
		loc, err = localization.NewLocalizerFromDir(cfg.Server.LocalesDir)
	} else {
		loc, err = localization.NewLocalizer()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load translations")
	}
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		SecretKey:   cfg.JWT.Secret,
		Expiration:  cfg.JWT.Expiration,
		TokenIssuer: cfg.JWT.Issuer,
	})
	authSvc := auth.NewService(store, jwtSvc, mailer.New(cfg, loc), !cfg.IsProduction())

	var mediaSvc *media.Service
	if cfg.S3.Bucket != "" {
		mediaSvc, err = media.NewS3Service(ctx, cfg.S3.Bucket, cfg.S3.Region)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to configure S3")
		}
	} else {
		logger.Warn().Msg("S3_BUCKET_NAME not set, uploads are disabled")
	}

	socketServer := chathub.NewSocketIOServer(hub, authSvc.Authenticate)
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("Socket.IO server stopped")
		}
	}()
	defer socketServer.Close()

	var limiter *handler.RateLimiter
	if cfg.RateLimit.PerMinute > 0 {
		limiter = handler.NewRateLimiter(handler.PerMinute(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst))
		defer limiter.Stop()
	}
	var authLimiter *handler.RateLimiter
	if cfg.RateLimit.AuthPerMinute > 0 {
		authLimiter = handler.NewRateLimiter(handler.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst))
		defer authLimiter.Stop()
	}

	h := &handler.Handler{
		Hub:         hub,
		Storage:     store,
		Auth:        authSvc,
		Swipes:      swipe.NewService(store, connSvc),
		Connections: connSvc,
		Messages:    msgSvc,
		Rating:      rating.NewService(store),
		Media:       mediaSvc,
		SocketIO:    socketServer,
		Metrics:     collector,
		Gatherer:    reg,
		Limiter:     limiter,
		AuthLimiter: authLimiter,

		AllowedOrigins: cfg.Server.CORSOrigins,
	}

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Realtime relay stopped")
		}
	}()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(h.Router())

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        corsHandler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
