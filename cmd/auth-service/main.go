package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medtrust/ehr/internal/access"
	"github.com/medtrust/ehr/internal/auth"
	"github.com/medtrust/ehr/internal/notify"
	"github.com/medtrust/ehr/pkg/config"
	"github.com/medtrust/ehr/pkg/database"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.WithService("auth-service").Info("Starting auth service")

	db, err := database.NewConnection(&cfg.Database, logg)
	if err != nil {
		logg.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := access.NewRepository(db.DB, logg)
	notifier := notify.NewEmailNotifier(cfg.SMTP, logg)
	sessions := auth.NewSessionManager(cfg.OTPSessionTTL(), cfg.OTP.MaxAttempts, logg)
	defer sessions.Stop()

	tokens := auth.NewTokenManager(
		cfg.JWT.SecretKey,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTokenTTL)*time.Second,
	)
	service := auth.NewService(repo, sessions, tokens, auth.NewBcryptVerifier(), notifier, logg, cfg.OTP.CodeLength)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := auth.NewHandlers(service, tokens, logg)
	handlers.RegisterRoutes(router)

	router.GET(cfg.Monitoring.HealthPath, func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	if cfg.Monitoring.Enabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(monitoring.Handler()))
	}

	port := cfg.Server.Port + 1
	if env := os.Getenv("AUTH_PORT"); env != "" {
		fmt.Sscanf(env, "%d", &port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logg.WithService("auth-service").Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Errorf("Error during shutdown: %v", err)
	}

	logg.Info("Auth service stopped")
}
