package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/classifier"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/handler"
	appmiddleware "github.com/AryaDuhan/Whatsapp-BOT/internal/middleware"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/notifier"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/repository"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/scheduler"
	"github.com/AryaDuhan/Whatsapp-BOT/internal/service"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/cache"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/config"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/database"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/jobs"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/logger"
	reqidmiddleware "github.com/AryaDuhan/Whatsapp-BOT/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: the report cache degrades to miss-only behaviour.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, report cache disabled", zap.Error(err))
	} else {
		redisClient = client
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	var dispatcher service.Dispatcher
	if cfg.Gateway.BaseURL == "" {
		logr.Warn("no gateway configured, outbound messages will be dropped")
		dispatcher = notifier.Noop{}
	} else {
		dispatcher = notifier.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout, logr)
	}

	var extractor service.TimetableExtractor
	if cfg.Classifier.BaseURL != "" {
		extractor = classifier.New(cfg.Classifier.BaseURL, cfg.Classifier.Timeout)
	}

	sessions := service.NewSessionStore(cfg.Bot.SessionTTL)
	metrics := service.NewMetricsService(sessions.Open)
	validate := validator.New()

	userSvc := service.NewUserService(userRepo, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	recordSvc := service.NewRecordService(recordRepo, dispatcher, metrics, logr)
	reportSvc := service.NewReportService(subjectSvc, userSvc, cacheRepo, cfg.Bot.LowAttendanceBar, cfg.Bot.SummaryCacheTTL, logr)
	conversationSvc := service.NewConversationService(sessions, userSvc, subjectSvc, recordSvc, extractor, dispatcher, reportSvc, cfg.Bot.LowAttendanceBar, logr)
	alertSvc := service.NewAlertService(userSvc, subjectSvc, dispatcher, cfg.Bot.LowAttendanceBar, jobs.QueueConfig{
		Workers:    cfg.Alerts.Workers,
		MaxRetries: cfg.Alerts.MaxRetries,
		RetryDelay: cfg.Alerts.RetryDelay,
		Logger:     logr,
	}, logr)
	schedulerSvc := service.NewSchedulerService(userSvc, subjectSvc, recordSvc, dispatcher, reportSvc, metrics,
		cfg.Bot.ReminderLead, cfg.Bot.ConfirmationDelay, cfg.Bot.OverdueAfter, cfg.Bot.EvaluationWindow, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alertSvc.Start(ctx)
	defer alertSvc.Stop()

	runner := scheduler.New(logr)
	err = runner.RegisterAll(scheduler.Config{AlertHour: cfg.Bot.AlertHour},
		schedulerSvc.RunReminderPass,
		schedulerSvc.RunConfirmationPass,
		schedulerSvc.RunOverduePass,
		conversationSvc.SweepSessions,
		func(ctx context.Context) error {
			_, err := alertSvc.RunDaily(ctx)
			return err
		},
	)
	if err != nil {
		logr.Fatal("failed to register scheduler passes", zap.Error(err))
	}
	runner.Start(ctx)
	defer runner.Stop(30 * time.Second)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(appmiddleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	webhookHandler := handler.NewWebhookHandler(conversationSvc, validate, cfg.Gateway.WebhookToken, logr)
	r.POST("/webhook/messages", webhookHandler.Receive)

	reportHandler := handler.NewReportHandler(reportSvc)
	ops := r.Group(cfg.APIPrefix)
	ops.Use(appmiddleware.JWT(cfg.JWT.Secret))
	{
		ops.GET("/users/:id/report", reportHandler.Summary)
		ops.GET("/users/:id/report/export", reportHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
