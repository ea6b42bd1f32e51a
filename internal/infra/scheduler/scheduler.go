package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// LecturerNotifier sends next-day confirmation prompts to lecturers.
type LecturerNotifier interface {
	NotifyTomorrowsLectures(ctx context.Context) error
}

// ScheduleBroadcaster sends the cron-driven student schedule messages.
type ScheduleBroadcaster interface {
	SendDailySummaries(ctx context.Context) error
	SendEveningReminders(ctx context.Context) error
}

// JobScheduler drives the three recurring jobs: the 7 PM lecturer
// notification run, the 6 AM student summary and the 6 PM evening alert.
type JobScheduler struct {
	cronEngine *cron.Cron
	notifier   LecturerNotifier
	broadcast  ScheduleBroadcaster
	logger     *logrus.Logger

	specLecturerNotify  string
	specDailySummary    string
	specEveningReminder string
}

func NewJobScheduler(
	notifier LecturerNotifier,
	broadcast ScheduleBroadcaster,
	logger *logrus.Logger,
	location *time.Location,
	specLecturerNotify string, // e.g., "0 19 * * *" (7 PM daily)
	specDailySummary string, // e.g., "0 6 * * *" (6 AM daily)
	specEveningReminder string, // e.g., "0 18 * * *" (6 PM daily)
) *JobScheduler {
	return &JobScheduler{
		cronEngine:          cron.New(cron.WithLocation(location)),
		notifier:            notifier,
		broadcast:           broadcast,
		logger:              logger,
		specLecturerNotify:  specLecturerNotify,
		specDailySummary:    specDailySummary,
		specEveningReminder: specEveningReminder,
	}
}

func (s *JobScheduler) Start() {
	s.logger.Info("Starting job scheduler...")

	_, err := s.cronEngine.AddFunc(s.specLecturerNotify, func() {
		s.logger.Info("Cron job triggered: next-day lecturer notifications.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.notifier.NotifyTomorrowsLectures(ctx); err != nil {
			s.logger.Error("Error during next-day lecturer notification run: ", err)
		}
	})
	if err != nil {
		s.logger.Fatal("Could not add lecturer notification cron job: ", err)
	}

	_, err = s.cronEngine.AddFunc(s.specDailySummary, func() {
		s.logger.Info("Cron job triggered: morning schedule summaries.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.broadcast.SendDailySummaries(ctx); err != nil {
			s.logger.Error("Error during morning summary run: ", err)
		}
	})
	if err != nil {
		s.logger.Fatal("Could not add morning summary cron job: ", err)
	}

	_, err = s.cronEngine.AddFunc(s.specEveningReminder, func() {
		s.logger.Info("Cron job triggered: evening schedule reminders.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.broadcast.SendEveningReminders(ctx); err != nil {
			s.logger.Error("Error during evening reminder run: ", err)
		}
	})
	if err != nil {
		s.logger.Fatal("Could not add evening reminder cron job: ", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Job scheduler started with jobs.")
}

func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs to complete.
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}
