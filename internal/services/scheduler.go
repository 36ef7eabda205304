package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/logger"
)

const (
	jobExpireSubscriptions = "expire_subscriptions"
	jobActivityRetention   = "activity_retention"
)

// Scheduler runs the periodic maintenance jobs. Each run claims a
// JobRun row for its window, so with several instances only one
// executes a given window.
type Scheduler struct {
	db            *gorm.DB
	subscriptions *SubscriptionService
	activity      *ActivityService
	cfg           config.SubscriptionConfig
	instanceID    string
	cron          *cron.Cron
	now           func() time.Time
}

func NewScheduler(db *gorm.DB, subscriptions *SubscriptionService, activity *ActivityService, cfg config.SubscriptionConfig) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		db:            db,
		subscriptions: subscriptions,
		activity:      activity,
		cfg:           cfg,
		instanceID:    host + "-" + uuid.NewString()[:8],
		now:           time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("@hourly", func() { s.RunExpiry(context.Background()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", func() { s.RunRetention(context.Background()) }); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Str("instance", s.instanceID).Msg("Scheduler started")

	// Catch up on anything that lapsed while no instance was running.
	go s.RunExpiry(context.Background())
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// acquire claims name for the window containing now. It returns false when
// another instance already holds it.
func (s *Scheduler) acquire(ctx context.Context, name string, window time.Duration) (bool, error) {
	now := s.now().UTC()
	start := now.Truncate(window)
	run := &models.JobRun{
		Job:         name,
		WindowStart: start,
		WindowEnd:   start.Add(window),
		Instance:    s.instanceID,
		ClaimedAt:   now,
	}

	db := s.db.WithContext(ctx)
	if err := db.Create(run).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}

	// Old windows are never consulted again.
	if err := db.Where("job = ? AND window_end < ?", name, now.Add(-7*24*time.Hour)).
		Delete(&models.JobRun{}).Error; err != nil {
		logger.Warn().Err(err).Str("job", name).Msg("Failed to prune job runs")
	}
	return true, nil
}

// RunExpiry moves lapsed trials and paid periods to inactive.
func (s *Scheduler) RunExpiry(ctx context.Context) {
	ok, err := s.acquire(ctx, jobExpireSubscriptions, time.Hour)
	if err != nil {
		logger.Error().Err(err).Str("job", jobExpireSubscriptions).Msg("Failed to acquire scheduler lock")
		return
	}
	if !ok {
		return
	}

	n, err := s.subscriptions.ExpireTrials(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Subscription expiry sweep failed")
		return
	}
	if n > 0 {
		logger.Info().Int64("workspaces", n).Msg("Expired subscriptions marked inactive")
	}
}

// RunRetention deletes activity older than the retention period.
func (s *Scheduler) RunRetention(ctx context.Context) {
	ok, err := s.acquire(ctx, jobActivityRetention, 24*time.Hour)
	if err != nil {
		logger.Error().Err(err).Str("job", jobActivityRetention).Msg("Failed to acquire scheduler lock")
		return
	}
	if !ok {
		return
	}

	n, err := s.activity.CleanupOld(ctx, s.cfg.ActivityRetention)
	if err != nil {
		logger.Error().Err(err).Msg("Activity retention cleanup failed")
		return
	}
	logger.Info().Int64("deleted", n).Int("retention_days", s.cfg.ActivityRetention).Msg("Activity retention cleanup done")
}
