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

	"github.com/gorilla/mux"

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
	logg.WithService("access-service").Info("Starting access service")

	db, err := database.NewConnection(&cfg.Database, logg)
	if err != nil {
		logg.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(schemaCtx); err != nil {
		schemaCancel()
		logg.Fatalf("Failed to ensure schema: %v", err)
	}
	schemaCancel()

	repo := access.NewRepository(db.DB, logg)
	notifier := notify.NewEmailNotifier(cfg.SMTP, logg)
	trust := access.NewTrustEngine(repo, logg, cfg.Trust.HistoryWindow, cfg.EmergencyLookback())
	service := access.NewService(
		repo, notifier, trust, logg,
		cfg.AdminEmail,
		time.Duration(cfg.Trust.RecalcTimeout)*time.Second,
	)

	tokens := auth.NewTokenManager(
		cfg.JWT.SecretKey,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTokenTTL)*time.Second,
	)

	router := mux.NewRouter()
	router.Use(monitoring.HTTPMiddleware("access-service", logg))

	stopCleanup := make(chan struct{})
	if cfg.RateLimit.Enabled {
		limiter := access.NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute, logg)
		limiter.StartCleanup(5*time.Minute, stopCleanup)
		router.Use(limiter.Middleware)
	}

	handlers := access.NewHandlers(service, tokens, logg)
	handlers.RegisterRoutes(router)

	router.HandleFunc(cfg.Monitoring.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","error":%q}`, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy"}`)
	}).Methods("GET")

	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logg.WithService("access-service").Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down access service...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Errorf("Error during shutdown: %v", err)
	}

	// Let in-flight trust recalculations and notifications finish.
	service.Drain()

	logg.Info("Access service stopped")
}
