package main

import (
	"context"
	"io"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/handlers"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/internal/storage"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg            *config.Config
	deps           *services.WorkflowDeps
	topics         *services.TopicService
	applications   *services.ApplicationService
	theses         *services.ThesisService
	researchGroups *services.ResearchGroupService
	scheduler      *services.Scheduler
	events         services.EventPublisher
	calendar       services.CalendarClient
	taskQueue      services.TaskQueue
	worker         *services.Worker
	authHandler    *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	// Initialize system logger
	services.InitSystemLogger(db)

	store, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize document storage: %v", err)
	}

	// Mail goes through Redis when enabled, otherwise it is sent inline
	email := services.NewEmailService(&cfg.Mail, cfg.Server.ClientURL)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(email.Send)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(email.Send)
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start mail worker")
			}
		}
	}

	configService := services.NewSystemConfigService(db)
	events := services.NewEventPublisher(&cfg.Kafka)
	calendar := services.NewCalendarClient(&cfg.Kafka)
	notifier := services.NewNotificationService(services.NotificationOptions{
		Hub:    services.GetSSEHub(),
		Events: events,
		Queue:  taskQueue,
		Email:  email,
		Chat:   cfg.Chat,
		EmailEnabled: func() bool {
			return configService.GetBool(services.ConfigEmailEnabled, true)
		},
	})

	identity := services.NewIdentitySynchronizer(&cfg.LDAP, func() bool {
		return configService.GetBool(services.ConfigLDAPSyncStudentGroup, true)
	})

	deps := &services.WorkflowDeps{
		Notifier:       notifier,
		Identity:       identity,
		Calendar:       calendar,
		Store:          store,
		MaxUploadBytes: int64(cfg.Storage.MaxUploadMB) << 20,
	}

	autoReject := services.NewAutoRejectService(db, deps)
	reminder := services.NewReminderService(db, deps, services.NewHolidayService(), cfg.Scheduler.HolidayCountry)
	scheduler := services.NewScheduler(db, cfg.Scheduler, autoReject, reminder, services.NewSystemLogService(db))
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create default admin user
	authHandler := handlers.NewAuthHandler(db, cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:            cfg,
		deps:           deps,
		topics:         services.NewTopicService(db, deps),
		applications:   services.NewApplicationService(db, deps),
		theses:         services.NewThesisService(db, deps),
		researchGroups: services.NewResearchGroupService(db, deps),
		scheduler:      scheduler,
		events:         events,
		calendar:       calendar,
		taskQueue:      taskQueue,
		worker:         worker,
		authHandler:    authHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if err := s.events.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if closer, ok := s.calendar.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close calendar client")
		}
	}
}
