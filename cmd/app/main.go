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

	"licensing-service/config"
	"licensing-service/internal/domain"
	"licensing-service/internal/middleware"
	"licensing-service/internal/repository"
	handlers "licensing-service/internal/transport/http"
	"licensing-service/internal/usecase"

	"github.com/redis/go-redis/v9"
)

func main() {

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	store, err := repository.OpenPostgres(dsn)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	licenseRepo := repository.NewLicenseRepository(store)
	deviceRepo := repository.NewDeviceRepository(store)
	trialRepo := repository.NewTrialRepository(store)

	activationUC := usecase.NewActivationUseCase(licenseRepo, deviceRepo)
	trialUC := usecase.NewTrialUseCase(trialRepo, deviceRepo)
	lifecycleUC := usecase.NewLifecycleUseCase(licenseRepo, deviceRepo)

	licenseHandler := handlers.NewLicenseHandler(activationUC)
	trialHandler := handlers.NewTrialHandler(trialUC)
	accountHandler := handlers.NewAccountHandler(lifecycleUC)
	webhookHandler := handlers.NewWebhookHandler(lifecycleUC, rdb, cfg.TestStripeWebhookSecret, cfg.ProdStripeWebhookSecret)

	rateLimiter := middleware.NewRateLimiter(rdb)

	defaultEnv := domain.Environment(cfg.ActiveEnvironment)
	if !defaultEnv.Valid() {
		defaultEnv = domain.EnvTest
	}

	router := handlers.NewRouter(licenseHandler, trialHandler, accountHandler, webhookHandler, rateLimiter, defaultEnv, cfg.ServiceTokenSecret)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Licensing service is running on %s (default env: %s)...", cfg.HTTPPort, defaultEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
