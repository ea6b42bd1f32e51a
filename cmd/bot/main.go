package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lecture_coordinator_bot/internal/app"
	"lecture_coordinator_bot/internal/infra/config"
	idb "lecture_coordinator_bot/internal/infra/database"
	"lecture_coordinator_bot/internal/infra/httpapi"
	"lecture_coordinator_bot/internal/infra/logger"
	"lecture_coordinator_bot/internal/infra/scheduler"
	"lecture_coordinator_bot/internal/infra/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("Could not load application configuration: ", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s", cfg.LogLevel, cfg.Environment, cfg.Timezone)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Could not connect to database: ", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Repositories
	lectureRepo := idb.NewPostgresLectureRepository(db)
	rosterRepo := idb.NewPostgresRosterRepository(db)
	promptRepo := idb.NewPostgresPromptRepository(db)
	pendingTracker := idb.NewPostgresPendingTracker(db)
	eventLedger := idb.NewPostgresEventLedger(db)
	log.Info("Repositories initialized.")

	// Outbound transport
	waClient := whatsapp.NewCloudClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID)

	// Application services
	notifier := app.NewNotifierImpl(rosterRepo, waClient, log, cfg.Location)
	decisionService := app.NewDecisionServiceImpl(lectureRepo, promptRepo, eventLedger, pendingTracker, notifier, waClient, log, cfg.Location)
	contributionService := app.NewContributionServiceImpl(lectureRepo, promptRepo, eventLedger, pendingTracker, notifier, waClient, log, cfg.Location)
	adminService := app.NewAdminServiceImpl(lectureRepo, notifier, log, cfg.Location)
	reminderService := app.NewReminderServiceImpl(lectureRepo, rosterRepo, promptRepo, notifier, waClient, log, cfg.Location)
	broadcastService := app.NewBroadcastServiceImpl(rosterRepo, eventLedger, notifier, waClient, log)
	scheduleService := app.NewScheduleServiceImpl(lectureRepo, rosterRepo, eventLedger, notifier, waClient, log, cfg.Location)
	enrollmentService := app.NewEnrollmentServiceImpl(rosterRepo, eventLedger, waClient, log)

	dispatcher := app.NewDispatcher(
		rosterRepo,
		enrollmentService,
		scheduleService,
		contributionService,
		broadcastService,
		decisionService,
		log,
	)
	log.Info("Application services initialized.")

	// Cron jobs
	jobScheduler := scheduler.NewJobScheduler(
		reminderService,
		scheduleService,
		log,
		cfg.Location,
		cfg.CronSpecLecturerNotify,
		cfg.CronSpecDailySummary,
		cfg.CronSpecEveningReminder,
	)
	jobScheduler.Start()

	// Webhook server
	if cfg.Environment == "production" || cfg.Environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	whatsapp.NewWebhookHandler(cfg.VerifyToken, dispatcher).Register(router)
	httpapi.NewAdminHandler(adminService, reminderService, log, cfg.Location).Register(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		log.Infof("Webhook server listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Webhook server failed: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	jobScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Webhook server shutdown error: ", err)
	}
	log.Info("Application shut down gracefully.")
}
