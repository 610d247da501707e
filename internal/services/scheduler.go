package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	JobAutoReject = "auto_reject"
	JobReminder   = "application_reminder"
	JobLogCleanup = "log_cleanup"

	jobLockTTL = 30 * time.Minute
)

// Scheduler runs the periodic workflow jobs. Each run takes a row in scheduler_locks
// keyed by job and day, so instances sharing a database do not run the same job concurrently.
type Scheduler struct {
	db         *gorm.DB
	cfg        config.SchedulerConfig
	configs    *SystemConfigService
	autoReject *AutoRejectService
	reminder   *ReminderService
	logs       *SystemLogService
	instanceID string
	now        func() time.Time
	cron       *cron.Cron
}

func NewScheduler(db *gorm.DB, cfg config.SchedulerConfig, autoReject *AutoRejectService, reminder *ReminderService, logs *SystemLogService) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		db:         db,
		cfg:        cfg,
		configs:    NewSystemConfigService(db),
		autoReject: autoReject,
		reminder:   reminder,
		logs:       logs,
		instanceID: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		now:        time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.cron = cron.New()

	jobs := []struct {
		name string
		expr string
		run  func(ctx context.Context) error
	}{
		{JobAutoReject, s.cfg.AutoRejectCron, s.RunAutoReject},
		{JobReminder, s.cfg.ReminderCron, s.RunReminder},
		{JobLogCleanup, "30 3 * * *", s.RunLogCleanup},
	}
	for _, job := range jobs {
		if job.expr == "" {
			logger.Info().Str("job", job.name).Msg("[Scheduler] job disabled, no cron expression")
			continue
		}
		run := job.run
		name := job.name
		if _, err := s.cron.AddFunc(job.expr, func() {
			if err := run(context.Background()); err != nil {
				logger.Error().Err(err).Str("job", name).Msg("[Scheduler] job failed")
			}
		}); err != nil {
			return fmt.Errorf("invalid cron expression %q for %s: %w", job.expr, job.name, err)
		}
		logger.Info().Str("job", job.name).Str("cron", job.expr).Msg("[Scheduler] job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) RunAutoReject(ctx context.Context) error {
	if !s.configs.GetBool(ConfigAutoRejectEnabled, true) {
		return nil
	}
	return s.locked(ctx, JobAutoReject, func(ctx context.Context) error {
		_, err := s.autoReject.Sweep(ctx)
		return err
	})
}

func (s *Scheduler) RunReminder(ctx context.Context) error {
	if !s.configs.GetBool(ConfigReminderEnabled, true) {
		return nil
	}
	return s.locked(ctx, JobReminder, func(ctx context.Context) error {
		_, err := s.reminder.SendReminders(ctx)
		return err
	})
}

func (s *Scheduler) RunLogCleanup(ctx context.Context) error {
	return s.locked(ctx, JobLogCleanup, func(ctx context.Context) error {
		s.logs.RunCleanup(s.now())
		return nil
	})
}

func (s *Scheduler) locked(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	now := s.now()
	key := now.UTC().Format("2006-01-02")
	acquired, err := AcquireLock(s.db.WithContext(ctx), job, key, s.instanceID, now, jobLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Debug().Str("job", job).Str("key", key).Msg("[Scheduler] already handled by another instance")
		return nil
	}
	return fn(ctx)
}

// AcquireLock claims the lock row for name and key. An expired row is taken over;
// a row still held by someone else, or a lost insert race, means not acquired.
func AcquireLock(db *gorm.DB, name, key, owner string, now time.Time, ttl time.Duration) (bool, error) {
	var lock models.SchedulerLock
	err := db.Where("lock_name = ? AND lock_key = ?", name, key).First(&lock).Error
	switch {
	case err == nil:
		if !lock.Expired(now) {
			return false, nil
		}
		result := db.Model(&models.SchedulerLock{}).
			Where("id = ? AND locked_by = ?", lock.ID, lock.LockedBy).
			Updates(map[string]interface{}{
				"locked_by":  owner,
				"locked_at":  now,
				"expires_at": now.Add(ttl),
			})
		if result.Error != nil {
			return false, fmt.Errorf("failed to take over lock %s: %w", name, result.Error)
		}
		return result.RowsAffected == 1, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		lock = models.SchedulerLock{
			LockName:  name,
			LockKey:   key,
			LockedBy:  owner,
			LockedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		if err := db.Create(&lock).Error; err != nil {
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("failed to read lock %s: %w", name, err)
	}
}
