package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
	"gorm.io/gorm"
)

// ReminderService tells group staff how many applications still wait for a review
type ReminderService struct {
	db       *gorm.DB
	deps     *WorkflowDeps
	holidays *HolidayService
	country  string
}

func NewReminderService(db *gorm.DB, deps *WorkflowDeps, holidays *HolidayService, country string) *ReminderService {
	if holidays == nil {
		holidays = NewHolidayService()
	}
	return &ReminderService{db: db, deps: deps.withDefaults(), holidays: holidays, country: country}
}

type pendingCount struct {
	ResearchGroupID uuid.UUID
	Count           int
}

// SendReminders notifies the staff of every active group with pending applications.
// Nothing is sent on weekends or public holidays. It returns the number of groups reminded.
func (s *ReminderService) SendReminders(ctx context.Context) (int, error) {
	now := s.deps.Now()
	if !s.holidays.IsWorkday(now, s.country) {
		logger.Debug().Str("country", s.country).Msg("[Reminder] skipped on a non-working day")
		return 0, nil
	}

	db := s.db.WithContext(ctx)
	var counts []pendingCount
	err := db.Model(&models.Application{}).
		Select("research_group_id, COUNT(*) AS count").
		Where("state = ?", models.ApplicationStateNotAssessed).
		Where("research_group_id IN (?)", db.Model(&models.ResearchGroup{}).Select("id").Where("archived = ?", false)).
		Group("research_group_id").
		Scan(&counts).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending applications: %w", err)
	}

	reminded := 0
	var errs []error
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		staff, err := staffOfGroup(db, c.ResearchGroupID)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load staff of group %s: %w", c.ResearchGroupID, err))
			continue
		}
		if len(staff) == 0 {
			continue
		}

		n := &Notification{
			Kind:            NotifyApplicationReminder,
			ResearchGroupID: c.ResearchGroupID,
			EntityType:      "research_group",
			EntityID:        c.ResearchGroupID,
			Title:           fmt.Sprintf("%d application(s) waiting for review", c.Count),
			Message:         "Please review the open applications of your research group.",
			Recipients:      recipientsOf(staff, nil),
			OccurredAt:      now,
		}
		if err := s.deps.Notifier.Notify(ctx, n); err != nil {
			logger.Warn().Err(err).Str("group", c.ResearchGroupID.String()).Msg("[Reminder] notification failed")
		}
		reminded++
	}

	if reminded > 0 {
		logger.Info().Int("groups", reminded).Msg("[Reminder] application reminders sent")
	}
	return reminded, errors.Join(errs...)
}
