package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
	"gorm.io/gorm"
)

const minRejectWeeks = 2

// AutoRejectService rejects pending applications of stale open topics for groups that enabled it
type AutoRejectService struct {
	db   *gorm.DB
	deps *WorkflowDeps
}

func NewAutoRejectService(db *gorm.DB, deps *WorkflowDeps) *AutoRejectService {
	return &AutoRejectService{db: db, deps: deps.withDefaults()}
}

// rejectReference is the date a topic's staleness is judged by; nil means reject right away
func rejectReference(topic *models.Topic) *time.Time {
	if topic.ApplicationDeadline != nil {
		return topic.ApplicationDeadline
	}
	return topic.IntendedStart
}

// shouldAutoReject reports whether applications against a topic with reference date are rejected.
// The reference must not be before now plus max(weeks, 2) weeks.
func shouldAutoReject(reference *time.Time, now time.Time, weeks int) bool {
	if reference == nil {
		return true
	}
	if weeks < minRejectWeeks {
		weeks = minRejectWeeks
	}
	threshold := now.Add(time.Duration(weeks) * 7 * 24 * time.Hour)
	return !reference.Before(threshold)
}

// Sweep runs one pass over all enabled groups and returns how many applications were rejected.
// A failing topic is logged and skipped; the remaining topics are still processed.
func (s *AutoRejectService) Sweep(ctx context.Context) (int, error) {
	db := s.db.WithContext(ctx)
	now := s.deps.Now()

	var settings []models.ResearchGroupSetting
	err := db.Where("automatic_reject_enabled = ?", true).
		Where("research_group_id IN (?)", db.Model(&models.ResearchGroup{}).Select("id").Where("archived = ?", false)).
		Find(&settings).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load group settings: %w", err)
	}

	total := 0
	var errs []error
	for _, setting := range settings {
		var topics []models.Topic
		err := db.Preload("Roles", byPosition).Preload("Roles.User").
			Where("research_group_id = ? AND published_at IS NOT NULL AND closed_at IS NULL", setting.ResearchGroupID).
			Find(&topics).Error
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load topics of group %s: %w", setting.ResearchGroupID, err))
			continue
		}

		for i := range topics {
			topic := &topics[i]
			if !shouldAutoReject(rejectReference(topic), now, setting.RejectDuration) {
				continue
			}
			n, err := s.rejectTopic(ctx, topic, now)
			if err != nil {
				logger.Error().Err(err).Str("topic", topic.ID.String()).Msg("automatic rejection failed")
				errs = append(errs, err)
				continue
			}
			total += n
		}
	}

	if total > 0 {
		logger.Info().Int("rejected", total).Msg("automatic rejection sweep finished")
	}
	return total, errors.Join(errs...)
}

// rejectTopic rejects all pending applications of one topic in a single transaction
func (s *AutoRejectService) rejectTopic(ctx context.Context, topic *models.Topic, now time.Time) (int, error) {
	var reviewer *models.User
	for _, r := range topic.Roles {
		if r.Role == models.RoleSupervisor && r.User != nil {
			reviewer = r.User
			break
		}
	}

	fx := &sideEffects{}
	count := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.Application
		err := tx.Preload("User").Preload("Topic").
			Where("topic_id = ? AND state = ?", topic.ID, models.ApplicationStateNotAssessed).
			Find(&pending).Error
		if err != nil {
			return fmt.Errorf("failed to load pending applications: %w", err)
		}

		for i := range pending {
			app := &pending[i]
			if err := markRejectedTx(tx, reviewer, app, models.RejectReasonTopicOutdated, now); err != nil {
				return err
			}
			if app.User != nil {
				fx.notify(s.deps.Notifier, applicationNotification(NotifyApplicationRejected, app, reviewer, []Recipient{recipientOf(app.User)}, now))
			}
		}
		count = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	fx.run(ctx)
	return count, nil
}
