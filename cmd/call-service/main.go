package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"telecare-backend/internal/consult"
	"telecare-backend/internal/database"
	callHandler "telecare-backend/internal/handler/http/call"
	consultHandler "telecare-backend/internal/handler/http/consult"
	presenceHandler "telecare-backend/internal/handler/http/presence"
	pushHandler "telecare-backend/internal/handler/http/pushtoken"
	webrtcHandler "telecare-backend/internal/handler/http/webrtc"
	wsHandler "telecare-backend/internal/handler/ws"
	"telecare-backend/internal/middleware"
	"telecare-backend/internal/notify"
	"telecare-backend/internal/presence"
	"telecare-backend/internal/relay"
	postgresRepo "telecare-backend/internal/repository/postgres"
	redisRepo "telecare-backend/internal/repository/redis"
	callService "telecare-backend/internal/service/call"
	pkgDatabase "telecare-backend/pkg/database"
	"telecare-backend/pkg/env"
	"telecare-backend/pkg/jwt"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/metrics"
	"telecare-backend/pkg/push"
)

func main() {
	ctx := context.Background()

	// 1. Logger
	if err := logger.Init(&logger.Config{
		Level:  env.GetString("LOG_LEVEL", "info"),
		Format: env.GetString("LOG_FORMAT", "json"),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 2. JWT Manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	productionMode := os.Getenv("ENV") == "production"

	// 3. PostgreSQL for call records, with exponential backoff retry
	dbConfig := &pkgDatabase.PostgresConfig{
		Host:     env.GetString("DB_HOST", "localhost"),
		Port:     env.GetInt("DB_PORT", 5432),
		User:     env.GetString("DB_USER", "postgres"),
		Password: env.GetStringFromFile("DB_PASSWORD", ""),
		Database: env.GetString("DB_NAME", "telecare"),
		SSLMode:  env.GetString("DB_SSLMODE", "disable"),
	}

	db, err := connectPostgresWithRetry(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// 4. Redis with degraded mode support
	redisConfig := &database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}

	redisDB, err := database.NewRedisDB(redisConfig)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()
	redisDB.StartHealthCheck(ctx, 10*time.Second)

	// 5. Metrics
	appMetrics := metrics.NewMetrics("call-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 6. Push notifications
	pushProvider, err := push.NewProvider()
	if err != nil {
		if productionMode {
			log.Fatalf("Failed to initialize push provider: %v", err)
		}
		log.Printf("Warning: push provider unavailable, using mock: %v", err)
		pushProvider = &push.MockProvider{}
	}
	if _, isMock := pushProvider.(*push.MockProvider); isMock && productionMode {
		log.Fatal("Mock push provider not allowed in production")
	}
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisDB)
	pushSvc := push.NewService(pushProvider, pushTokenRepo)
	notifier := notify.NewPushNotifier(pushSvc)

	// 7. Presence registry: in-process by default, Redis when shared across
	// instances
	var registry presence.Registry
	if env.GetString("PRESENCE_BACKEND", "memory") == "redis" {
		registry = redisRepo.NewPresenceRepository(redisDB)
		log.Println("Using Redis-backed presence registry")
	} else {
		registry = presence.NewMemoryRegistry()
	}

	// 8. Core services
	callRepo := postgresRepo.NewCallRepository(db.Pool)
	callSvc := callService.NewService(callRepo,
		callService.WithNotifier(notifier),
		callService.WithMetrics(appMetrics),
	)

	matcher := consult.NewMatcher(notifier)
	matcher.StartJanitor(ctx)

	mailbox := relay.NewMailbox(appMetrics)
	mailbox.StartJanitor(ctx)

	instanceID := env.GetString("INSTANCE_ID", fmt.Sprintf("call-service-%d", os.Getpid()))
	signalingHub := wsHandler.NewSignalingHub(redisDB, instanceID, appMetrics)

	// 9. Handlers
	callHdlr := callHandler.NewHandler(callSvc)
	consultHdlr := consultHandler.NewHandler(matcher)
	presenceHdlr := presenceHandler.NewHandler(registry)
	webrtcHdlr := webrtcHandler.NewHandler(mailbox)
	pushHdlr := pushHandler.NewHandler(pushSvc)

	// 10. Router
	router := gin.New()

	var trustedProxies []string
	if productionMode {
		trustedProxies = []string{}
	} else {
		trustedProxies = []string{"127.0.0.1"}
	}
	router.SetTrustedProxies(trustedProxies)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "call-service",
			"time":    time.Now().UTC(),
		})
	})

	router.GET("/metrics", middleware.MetricsHandler())

	revocationChecker := middleware.NewRedisRevocationChecker(redisDB)
	auth := middleware.AuthMiddleware(jwtManager, revocationChecker)

	calls := router.Group("/v1/calls", auth)
	{
		calls.POST("/initiate", callHdlr.InitiateCall)
		calls.POST("/:id/accept", callHdlr.AcceptCall)
		calls.POST("/:id/reject", callHdlr.RejectCall)
		calls.POST("/:id/end", callHdlr.EndCall)
		calls.GET("/incoming", callHdlr.GetIncomingCalls)
		calls.GET("/:id", callHdlr.GetCall)
		calls.GET("", callHdlr.GetUserCalls)
	}

	presenceGroup := router.Group("/v1/presence", auth)
	{
		presenceGroup.POST("/announce", presenceHdlr.Announce)
		presenceGroup.GET("/:id", presenceHdlr.GetStatus)
		presenceGroup.GET("", presenceHdlr.ListAvailable)
	}

	consultations := router.Group("/v1/consultations", auth)
	{
		consultations.POST("/request", consultHdlr.Request)
		consultations.POST("/:id/accept", consultHdlr.Accept)
		consultations.POST("/:id/reject", consultHdlr.Reject)
		consultations.GET("/:id", consultHdlr.Get)
	}

	webrtc := router.Group("/v1/webrtc", auth)
	{
		webrtc.POST("/signal", webrtcHdlr.PutSignal)
		webrtc.GET("/signal", webrtcHdlr.TakeSignal)
		webrtc.POST("/rooms/:roomID/join", webrtcHdlr.JoinRoom)
		webrtc.POST("/rooms/:roomID/offer", webrtcHdlr.PutOffer)
		webrtc.POST("/rooms/:roomID/answer", webrtcHdlr.PutAnswer)
		webrtc.POST("/rooms/:roomID/ice-candidate", webrtcHdlr.PutCandidate)
		webrtc.GET("/rooms/:roomID/signals", webrtcHdlr.DrainRoom)
	}

	pushTokens := router.Group("/v1/push", auth)
	{
		pushTokens.POST("/tokens", pushHdlr.RegisterToken)
		pushTokens.DELETE("/tokens", pushHdlr.UnregisterToken)
	}

	router.GET("/ws/signaling", auth, signalingHub.ServeWS)

	// 11. Start server
	port := env.GetString("PORT", "8083")
	addr := fmt.Sprintf(":%s", port)

	log.Printf("Call service starting on port %s", port)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// connectPostgresWithRetry retries the initial connection with exponential
// backoff; container orchestration often starts the database alongside us
func connectPostgresWithRetry(ctx context.Context, config *pkgDatabase.PostgresConfig) (*pkgDatabase.Postgres, error) {
	maxRetries := 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	db, err := pkgDatabase.NewPostgres(ctx, config)
	if err == nil {
		return db, nil
	}

	for attempt := 2; attempt <= maxRetries; attempt++ {
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Printf("PostgreSQL connection attempt %d failed: %v. Retrying in %v...", attempt-1, err, delay)
		time.Sleep(delay)

		db, err = pkgDatabase.NewPostgres(ctx, config)
		if err == nil {
			log.Printf("Connected to PostgreSQL (attempt %d/%d)", attempt, maxRetries)
			return db, nil
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, err)
}
