package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/api/handlers"
	"github.com/dhima/webhook-scheduler/internal/api/middleware"
	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/storage"
	"github.com/dhima/webhook-scheduler/pkg/config"
)

// Server orchestrates HTTP routing and dependencies for the API service.
type Server struct {
	config config.App
	logger logging.Logger
	router *gin.Engine
	pool   *pgxpool.Pool
	store  *storage.Client
}

// NewServer wires the API dependencies together.
func NewServer() *Server {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	pool := connectDatabase(cfg, logger)

	server := &Server{
		config: cfg,
		logger: logger,
		pool:   pool,
		store:  storage.NewClient(pool),
	}

	server.setupRouter()
	return server
}

// setupRouter configures the Gin router with middleware and routes.
func (s *Server) setupRouter() {
	router := gin.New()

	zapLogger := s.getZapLogger()

	// Recovery first so panics in later middleware are caught too.
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))
	router.Use(middleware.RequestID())
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.NewHealthHandler(s.logger, s.store).Health)

	v1 := router.Group("/api/v1")
	{
		eventHandler := handlers.NewEventHandler(s.logger, s.store)
		events := v1.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("", eventHandler.ListEvents)
			events.GET("/:id", eventHandler.GetEvent)
			events.GET("/:id/invocations", eventHandler.ListEventInvocations)
		}
	}

	s.router = router
}

// getZapLogger builds the *zap.Logger the gin-contrib/zap middleware needs.
func (s *Server) getZapLogger() *zap.Logger {
	var zapLogger *zap.Logger
	if s.config.Environment == "production" {
		zapLogger, _ = zap.NewProduction()
	} else {
		zapLogger, _ = zap.NewDevelopment()
	}
	return zapLogger
}

// Serve starts the HTTP server with graceful shutdown support.
func (s *Server) Serve() error {
	addr := ":" + s.config.APIPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.logger.Info("starting API server",
			zap.String("address", addr),
			zap.String("environment", s.config.Environment),
			zap.String("log_level", s.config.LogLevel),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-quit
	s.logger.Info("shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	if s.pool != nil {
		s.pool.Close()
	}

	// Flush logger before exit
	if err := s.logger.Sync(); err != nil {
		// Ignore sync errors on stdout/stderr
		if err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: invalid argument" {
			return err
		}
	}

	s.logger.Info("server stopped")
	return nil
}

func connectDatabase(cfg config.App, logger logging.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	return pool
}
