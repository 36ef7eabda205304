package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/handlers"
	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/internal/utils"
	"github.com/taskhive/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg        *config.Config
	db         *gorm.DB
	dispatcher *authz.Dispatcher
	limiter    middleware.Limiter
	redis      *redis.Client

	mailQueue services.MailQueue
	worker    *services.Worker
	scheduler *services.Scheduler
	hub       *services.SSEHub

	authService         *services.AuthService
	workspaceService    *services.WorkspaceService
	taskService         *services.TaskService
	subscriptionService *services.SubscriptionService
	notificationService *services.NotificationService
	activityService     *services.ActivityService
	adminService        *services.AdminService

	authHandler         *handlers.AuthHandler
	workspaceHandler    *handlers.WorkspaceHandler
	memberHandler       *handlers.MemberHandler
	taskHandler         *handlers.TaskHandler
	subscriptionHandler *handlers.SubscriptionHandler
	notificationHandler *handlers.NotificationHandler
	adminHandler        *handlers.AdminHandler
	sseHandler          *handlers.SSEHandler
	healthHandler       *handlers.HealthHandler
	metricsHandler      *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	svc := newAppServices(cfg, db)

	if err := svc.authService.EnsureSuperAdmin(context.Background(), cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create super admin")
	}

	if svc.worker != nil {
		svc.worker.Start()
	}

	if err := svc.scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return svc
}

// newAppServices wires services and handlers without starting anything.
func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	svc := &appServices{cfg: cfg, db: db}

	mailer := services.NewMailer(cfg.SMTP)
	svc.mailQueue = services.NewMailQueue(&cfg.Redis, mailer)
	svc.worker = services.NewWorker(&cfg.Redis, mailer)
	svc.hub = services.NewSSEHub()

	svc.activityService = services.NewActivityService(db)
	svc.notificationService = services.NewNotificationService(db, svc.mailQueue, svc.hub, cfg.Server.FrontendURL)
	svc.workspaceService = services.NewWorkspaceService(db, cfg.Subscription, svc.notificationService, svc.activityService)
	svc.taskService = services.NewTaskService(db, svc.notificationService, svc.activityService)

	gateway := services.NewPaymentGateway(cfg.Payment)
	svc.subscriptionService = services.NewSubscriptionService(db, gateway, cfg.Payment, cfg.Subscription)
	svc.adminService = services.NewAdminService(db)
	svc.scheduler = services.NewScheduler(db, svc.subscriptionService, svc.activityService, cfg.Subscription)

	tokens := utils.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpireHour)*time.Hour,
		time.Duration(cfg.JWT.ResetExpireHour)*time.Hour,
	)
	svc.authService = services.NewAuthService(db, tokens, cfg.JWT, svc.workspaceService, svc.notificationService)
	svc.dispatcher = authz.NewDispatcher(authz.NewTokenVerifier(tokens, svc.authService), time.Now)

	svc.limiter = svc.newLimiter()

	svc.authHandler = handlers.NewAuthHandler(svc.authService)
	svc.workspaceHandler = handlers.NewWorkspaceHandler(svc.workspaceService)
	svc.memberHandler = handlers.NewMemberHandler(svc.workspaceService)
	svc.taskHandler = handlers.NewTaskHandler(svc.taskService)
	svc.subscriptionHandler = handlers.NewSubscriptionHandler(svc.subscriptionService)
	svc.notificationHandler = handlers.NewNotificationHandler(svc.notificationService)
	svc.adminHandler = handlers.NewAdminHandler(svc.adminService)
	svc.sseHandler = handlers.NewSSEHandler(svc.hub, svc.dispatcher)
	svc.healthHandler = handlers.NewHealthHandler(db, svc.mailQueue, svc.hub)
	svc.metricsHandler = handlers.NewMetricsHandler(db, svc.mailQueue, svc.hub)

	return svc
}

// newLimiter shares auth rate limits across instances through Redis when it
// is enabled, and keeps them per process otherwise.
func (s *appServices) newLimiter() middleware.Limiter {
	rl := s.cfg.RateLimit
	if !s.cfg.Redis.Enabled {
		return middleware.NewRateLimiter(rl.AuthRPS, rl.AuthBurst)
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})

	// A full burst refills in burst/rps seconds.
	window := time.Second
	if rl.AuthRPS > 0 {
		window = time.Duration(float64(rl.AuthBurst) / rl.AuthRPS * float64(time.Second))
	}
	logger.Info().Str("addr", s.cfg.Redis.Addr).Int("limit", rl.AuthBurst).Dur("window", window).Msg("Redis rate limiter enabled")
	return middleware.NewRedisLimiter(s.redis, rl.AuthBurst, window)
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.mailQueue != nil {
		if err := s.mailQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close mail queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
