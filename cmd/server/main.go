package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"learnhub/internal/config"
	"learnhub/internal/handler"
	"learnhub/internal/httpserver"
	"learnhub/internal/mqhandler"
	"learnhub/internal/repository"
	"learnhub/internal/service"
	"learnhub/pkg/db"
	"learnhub/pkg/logger"
	"learnhub/pkg/mq"
	"learnhub/pkg/redis"
	"learnhub/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notification service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("port", cfg.Server.Port),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis (event dedup + retry caps)
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	// Services
	notificationService := service.NewNotificationService(notificationRepo, publisher, log)

	// MQ Handlers
	dedupTTL := time.Duration(cfg.Notifications.DedupTTLSeconds) * time.Second
	deduper := util.NewDeduper(rdb, dedupTTL, log)
	retries := util.NewRetryCounter(rdb, dedupTTL)

	curriculumHandler := mqhandler.NewCurriculumAddedHandler(
		notificationService, deduper, retries, cfg.Notifications.RetryMax, log)
	enrollmentHandler := mqhandler.NewEnrollmentCreatedHandler(
		notificationService, deduper, retries, cfg.Notifications.RetryMax, log)

	// MQ Consumers for producer events
	curriculumConsumer, err := mq.NewConsumer(cfg.MQ.URL, "notifications.curriculum.q", "curriculum.added", log)
	if err != nil {
		log.Fatal("Failed to init curriculum consumer", zap.Error(err))
	}
	defer curriculumConsumer.Close()
	curriculumConsumer.SetHandler(curriculumHandler.Handle)

	enrollmentConsumer, err := mq.NewConsumer(cfg.MQ.URL, "notifications.enrollment.q", "enrollment.created", log)
	if err != nil {
		log.Fatal("Failed to init enrollment consumer", zap.Error(err))
	}
	defer enrollmentConsumer.Close()
	enrollmentConsumer.SetHandler(enrollmentHandler.Handle)

	consumers := []*mq.Consumer{curriculumConsumer, enrollmentConsumer}
	for _, consumer := range consumers {
		go func(c *mq.Consumer) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.Error(err))
			}
		}(consumer)
	}

	// HTTP Server
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	router := httpserver.NewRouter(notificationHandler, cfg.JWT.Secret, log, dbConn, consumers)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Notification service is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification service gracefully...")

	for _, consumer := range consumers {
		consumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	publisher.Close()
	dbConn.Close()

	log.Info("Notification service shutdown complete")
}
