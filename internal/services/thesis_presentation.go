package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/access"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
	"gorm.io/gorm"
)

type PresentationRequest struct {
	Type        string    `json:"type" binding:"required"`
	Visibility  string    `json:"visibility" binding:"required"`
	Location    string    `json:"location"`
	StreamURL   string    `json:"stream_url"`
	Language    string    `json:"language"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

func validatePresentation(req *PresentationRequest) error {
	if req.Type != models.PresentationTypeIntermediate && req.Type != models.PresentationTypeFinal {
		return invalid("invalid presentation type")
	}
	if req.Visibility != models.VisibilityPrivate && req.Visibility != models.VisibilityPublic {
		return invalid("invalid presentation visibility")
	}
	if req.ScheduledAt.IsZero() {
		return invalid("presentation date is required")
	}
	if strings.TrimSpace(req.Location) == "" && strings.TrimSpace(req.StreamURL) == "" {
		return invalid("either a location or a stream url is required")
	}
	return nil
}

func findPresentation(thesis *models.Thesis, id uuid.UUID) *models.ThesisPresentation {
	for i := range thesis.Presentations {
		if thesis.Presentations[i].ID == id {
			return &thesis.Presentations[i]
		}
	}
	return nil
}

// CreatePresentation drafts a presentation while the thesis is being written or was submitted
func (s *ThesisService) CreatePresentation(ctx context.Context, actor *models.User, thesisID uuid.UUID, req *PresentationRequest) (*models.Thesis, error) {
	if err := validatePresentation(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateWriting && thesis.State != models.ThesisStateSubmitted {
			return invalid("presentations can only be created while writing or after submission")
		}
		presentation := models.ThesisPresentation{
			ThesisID:    thesis.ID,
			State:       models.PresentationStateDrafted,
			Type:        req.Type,
			Visibility:  req.Visibility,
			Location:    strings.TrimSpace(req.Location),
			StreamURL:   strings.TrimSpace(req.StreamURL),
			Language:    req.Language,
			ScheduledAt: req.ScheduledAt,
			CreatedByID: actor.ID,
			CreatedAt:   now,
		}
		if err := tx.Create(&presentation).Error; err != nil {
			return fmt.Errorf("failed to save presentation: %w", err)
		}
		thesis.Presentations = append(thesis.Presentations, presentation)
		return nil
	})
}

// UpdatePresentation edits a presentation; drafted ones by the student, scheduled ones by an advisor.
// A scheduled presentation's calendar entry is updated after commit.
func (s *ThesisService) UpdatePresentation(ctx context.Context, actor *models.User, thesisID, presentationID uuid.UUID, req *PresentationRequest) (*models.Thesis, error) {
	if err := validatePresentation(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		p := findPresentation(thesis, presentationID)
		if p == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "presentation")
		}
		if p.State == models.PresentationStateScheduled {
			if err := access.Require(access.ThesisLevel(actor, thesis), access.Advisor, "thesis"); err != nil {
				return err
			}
		}

		err := tx.Model(&models.ThesisPresentation{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"type":         req.Type,
			"visibility":   req.Visibility,
			"location":     strings.TrimSpace(req.Location),
			"stream_url":   strings.TrimSpace(req.StreamURL),
			"language":     req.Language,
			"scheduled_at": req.ScheduledAt,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update presentation: %w", err)
		}
		p.Type = req.Type
		p.Visibility = req.Visibility
		p.Location = strings.TrimSpace(req.Location)
		p.StreamURL = strings.TrimSpace(req.StreamURL)
		p.Language = req.Language
		p.ScheduledAt = req.ScheduledAt

		if p.State == models.PresentationStateScheduled {
			s.syncCalendar(fx, thesis, *p)
			fx.notify(s.deps.Notifier, thesisNotification(NotifyPresentationUpdated, thesis, actor, "A presentation was updated", now))
		}
		return nil
	})
}

// SchedulePresentation confirms a presentation and creates or updates its calendar entry
func (s *ThesisService) SchedulePresentation(ctx context.Context, actor *models.User, thesisID, presentationID uuid.UUID, notifyUsers bool) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		p := findPresentation(thesis, presentationID)
		if p == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "presentation")
		}
		if thesis.IsTerminal() {
			return invalid("presentations of a completed thesis cannot be scheduled")
		}

		err := tx.Model(&models.ThesisPresentation{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"state": models.PresentationStateScheduled}).Error
		if err != nil {
			return fmt.Errorf("failed to schedule presentation: %w", err)
		}
		p.State = models.PresentationStateScheduled

		s.syncCalendar(fx, thesis, *p)
		if notifyUsers {
			fx.notify(s.deps.Notifier, thesisNotification(NotifyPresentationScheduled, thesis, actor, "A presentation was scheduled", now))
		}
		return nil
	})
}

// syncCalendar creates the calendar entry on first scheduling and updates it afterwards.
// A newly created entry id is written back outside the workflow transaction.
func (s *ThesisService) syncCalendar(fx *sideEffects, thesis *models.Thesis, p models.ThesisPresentation) {
	event := presentationCalendarEvent(thesis, &p)
	if p.CalendarEvent != nil && *p.CalendarEvent != "" {
		eventID := *p.CalendarEvent
		fx.add("update calendar event", func(ctx context.Context) error {
			return s.deps.Calendar.UpdateEvent(ctx, eventID, event)
		})
		return
	}

	fx.add("create calendar event", func(ctx context.Context) error {
		eventID, err := s.deps.Calendar.CreateEvent(ctx, event)
		if err != nil || eventID == "" {
			return err
		}
		err = s.db.WithContext(ctx).Model(&models.ThesisPresentation{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"calendar_event": eventID}).Error
		if err != nil {
			return fmt.Errorf("failed to store calendar event id: %w", err)
		}
		logger.Debug().Str("presentation", p.ID.String()).Str("event", eventID).Msg("calendar event created")
		return nil
	})
}

// DeletePresentation removes a presentation; scheduled ones need advisor access
func (s *ThesisService) DeletePresentation(ctx context.Context, actor *models.User, thesisID, presentationID uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		p := findPresentation(thesis, presentationID)
		if p == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "presentation")
		}
		scheduled := p.State == models.PresentationStateScheduled
		if scheduled {
			if err := access.Require(access.ThesisLevel(actor, thesis), access.Advisor, "thesis"); err != nil {
				return err
			}
		}

		if err := tx.Where("id = ?", p.ID).Delete(&models.ThesisPresentation{}).Error; err != nil {
			return fmt.Errorf("failed to delete presentation: %w", err)
		}
		if p.CalendarEvent != nil && *p.CalendarEvent != "" {
			eventID := *p.CalendarEvent
			fx.add("delete calendar event", func(ctx context.Context) error {
				return s.deps.Calendar.DeleteEvent(ctx, eventID)
			})
		}
		if scheduled {
			fx.notify(s.deps.Notifier, thesisNotification(NotifyPresentationDeleted, thesis, actor, "A presentation was cancelled", now))
		}

		kept := thesis.Presentations[:0]
		for _, existing := range thesis.Presentations {
			if existing.ID != presentationID {
				kept = append(kept, existing)
			}
		}
		thesis.Presentations = kept
		return nil
	})
}
