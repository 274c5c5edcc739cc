package internal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-service/pkg/cache"
	"account-service/pkg/config"
	"account-service/pkg/database"
	"account-service/pkg/jwt"
	"account-service/pkg/logger"
	"account-service/pkg/metrics"
	"account-service/pkg/middleware"
	"account-service/pkg/password"
	"account-service/pkg/queue"
	"account-service/pkg/s3"
	accountHTTP "account-service/services/account/internal/controller/http"
	"account-service/services/account/internal/repo/persistent"
	"account-service/services/account/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "account-service/services/account/docs" // Swagger docs
)

type App struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *gorm.DB
	redisClient *redis.Client
	s3Client    *s3.Client
	jwtService  *jwt.Service
	queueClient *queue.Client
	metrics     *metrics.Metrics
	httpServer  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logger.New()

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn("Failed to connect to redis: %v (rate limiting disabled)", err)
		redisClient = nil
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		return nil, err
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Warn("Failed to connect to RabbitMQ: %v (continuing without account events)", err)
		queueClient = nil
	}

	jwtService := jwt.NewService(jwt.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenExpiry,
	})

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		jwtService:  jwtService,
		queueClient: queueClient,
		metrics:     metrics.New(),
	}, nil
}

func (a *App) Run() error {
	// Initialize repositories
	userRepo := persistent.NewUserRepository(a.db)
	sessionRepo := persistent.NewSessionRepository(a.db)

	var events usecase.EventPublisher
	if a.queueClient != nil {
		events = a.queueClient
	}

	// Initialize use cases
	accountUseCase := usecase.NewAccountUseCase(
		userRepo,
		sessionRepo,
		a.jwtService,
		password.NewBcryptHasher(a.cfg.BcryptCost),
		a.s3Client,
		events,
		a.metrics,
		a.log,
	)

	// Initialize HTTP handlers
	accountHandler := accountHTTP.NewAccountHandler(accountUseCase, accountHTTP.Config{
		UploadDir:    a.cfg.UploadTempDir,
		CookieSecure: a.cfg.CookieSecure,
		AccessTTL:    a.cfg.AccessTokenExpiry,
		RefreshTTL:   a.cfg.RefreshTokenExpiry,
	}, a.log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	limited := middleware.RateLimitMiddleware(a.redisClient, a.cfg.RateLimitPerMinute, time.Minute)

	users := r.Group("/api/v1/users")
	users.Use(middleware.TimeoutMiddleware(a.cfg.RequestTimeout))
	{
		users.POST("/register", accountHandler.Register)
		users.POST("/login", limited, accountHandler.Login)
		users.POST("/refresh-token", limited, accountHandler.RefreshToken)

		// Protected routes
		protected := users.Group("")
		protected.Use(middleware.AuthMiddleware(a.jwtService))
		{
			protected.POST("/logout", accountHandler.Logout)
			protected.POST("/change-password", accountHandler.ChangePassword)
			protected.GET("/current-user", accountHandler.CurrentUser)
			protected.PATCH("/update-account", accountHandler.UpdateAccount)
			protected.PATCH("/avatar", accountHandler.UpdateAvatar)
			protected.PATCH("/cover-image", accountHandler.UpdateCoverImage)
		}
	}

	// Create HTTP server
	a.httpServer = &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		a.log.Info("Account service starting on port %s", a.cfg.ServerPort)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	return nil
}

func (a *App) Wait() {
	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info("Shutting down account service...")
}

func (a *App) Shutdown() error {
	// The context is used to inform the server it has 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("Server forced to shutdown: %v", err)
		return err
	}

	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			a.log.Error("Error closing RabbitMQ: %v", err)
		}
	}

	// Close Redis connection
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis: %v", err)
		}
	}

	// Close database connection
	sqlDB, err := a.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Error("Error closing database: %v", err)
		}
	}

	a.log.Info("Account service exited")
	return nil
}
