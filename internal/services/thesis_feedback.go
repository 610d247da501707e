package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/access"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/storage"
	"gorm.io/gorm"
)

const maxCommentMessageLength = 2000

// RequestChanges records one feedback item per entry for the student to work through
func (s *ThesisService) RequestChanges(ctx context.Context, actor *models.User, id uuid.UUID, feedbackType string, items []string) (*models.Thesis, error) {
	if feedbackType != models.FeedbackTypeProposal && feedbackType != models.FeedbackTypeThesis {
		return nil, invalid("invalid feedback type")
	}
	var cleaned []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return nil, invalid("at least one change must be requested")
	}

	return s.mutate(ctx, actor, id, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.IsTerminal() {
			return invalid("changes cannot be requested on a completed thesis")
		}
		feedback := make([]models.ThesisFeedback, 0, len(cleaned))
		for _, item := range cleaned {
			feedback = append(feedback, models.ThesisFeedback{
				ThesisID:      thesis.ID,
				Type:          feedbackType,
				Feedback:      item,
				RequestedByID: actor.ID,
				RequestedAt:   now,
			})
		}
		if err := tx.Create(&feedback).Error; err != nil {
			return fmt.Errorf("failed to save feedback: %w", err)
		}
		thesis.Feedback = append(thesis.Feedback, feedback...)

		fx.notify(s.deps.Notifier, thesisNotification(NotifyChangesRequested, thesis, actor,
			fmt.Sprintf("%d change(s) were requested", len(feedback)), now, models.RoleStudent))
		return nil
	})
}

// CompleteFeedback marks a feedback item done or reopens it
func (s *ThesisService) CompleteFeedback(ctx context.Context, actor *models.User, thesisID, feedbackID uuid.UUID, completed bool) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		item := findFeedback(thesis, feedbackID)
		if item == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "feedback")
		}

		var completedAt *time.Time
		if completed {
			completedAt = &now
		}
		err := tx.Model(&models.ThesisFeedback{}).Where("id = ?", item.ID).
			Updates(map[string]interface{}{"completed_at": completedAt}).Error
		if err != nil {
			return fmt.Errorf("failed to update feedback: %w", err)
		}
		item.CompletedAt = completedAt
		return nil
	})
}

func (s *ThesisService) DeleteFeedback(ctx context.Context, actor *models.User, thesisID, feedbackID uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if findFeedback(thesis, feedbackID) == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "feedback")
		}
		if err := tx.Where("id = ?", feedbackID).Delete(&models.ThesisFeedback{}).Error; err != nil {
			return fmt.Errorf("failed to delete feedback: %w", err)
		}
		kept := thesis.Feedback[:0]
		for _, f := range thesis.Feedback {
			if f.ID != feedbackID {
				kept = append(kept, f)
			}
		}
		thesis.Feedback = kept
		return nil
	})
}

func findFeedback(thesis *models.Thesis, id uuid.UUID) *models.ThesisFeedback {
	for i := range thesis.Feedback {
		if thesis.Feedback[i].ID == id {
			return &thesis.Feedback[i]
		}
	}
	return nil
}

// commentLevel is the capability needed to read or write a comment stream
func commentLevel(commentType string) (access.Level, error) {
	switch commentType {
	case models.CommentTypeThesis:
		return access.Student, nil
	case models.CommentTypeAdvisor:
		return access.Advisor, nil
	}
	return access.None, invalid("invalid comment type")
}

type CommentListResponse struct {
	Items []models.ThesisComment `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
}

// PostComment adds a comment, optionally with an attachment, to a thesis comment stream
func (s *ThesisService) PostComment(ctx context.Context, actor *models.User, thesisID uuid.UUID, commentType, message string, attachment *Upload) (*models.ThesisComment, error) {
	level, err := commentLevel(commentType)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("comment message is required")
	}
	if err := checkLength("message", message, maxCommentMessageLength); err != nil {
		return nil, err
	}

	var comment *models.ThesisComment
	_, err = s.mutate(ctx, actor, thesisID, level, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		comment = &models.ThesisComment{
			ThesisID:    thesis.ID,
			Type:        commentType,
			Message:     message,
			CreatedByID: actor.ID,
			CreatedAt:   now,
		}
		if attachment != nil && len(attachment.Data) > 0 {
			handle, err := s.storeUpload(ctx, fx, attachment, storage.KindAny)
			if err != nil {
				return err
			}
			name := attachment.Name
			comment.Filename = &handle
			comment.UploadName = &name
		}
		if err := tx.Omit("CreatedBy").Create(comment).Error; err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}
		comment.CreatedBy = actor

		roles := []string{models.RoleStudent, models.RoleAdvisor, models.RoleSupervisor}
		if commentType == models.CommentTypeAdvisor {
			roles = []string{models.RoleAdvisor, models.RoleSupervisor}
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyCommentPosted, thesis, actor, message, now, roles...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *ThesisService) ListComments(ctx context.Context, actor *models.User, thesisID uuid.UUID, commentType string, page, pageSize int) (*CommentListResponse, error) {
	level, err := commentLevel(commentType)
	if err != nil {
		return nil, err
	}
	if _, err := s.readable(ctx, actor, thesisID, level); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	query := s.db.WithContext(ctx).Model(&models.ThesisComment{}).
		Where("thesis_id = ? AND type = ?", thesisID, commentType)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	var items []models.ThesisComment
	err = query.Preload("CreatedBy").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return &CommentListResponse{Items: items, Total: total, Page: page}, nil
}

// DeleteComment removes a comment; allowed for its author and for advisors of the thesis
func (s *ThesisService) DeleteComment(ctx context.Context, actor *models.User, thesisID, commentID uuid.UUID) error {
	_, err := s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		var comment models.ThesisComment
		if err := tx.Where("id = ? AND thesis_id = ?", commentID, thesis.ID).First(&comment).Error; err != nil {
			return notFoundOr(err, "comment")
		}
		if comment.CreatedByID != actor.ID && access.ThesisLevel(actor, thesis) < access.Advisor {
			return forbidden("only the author or an advisor can delete this comment")
		}
		if err := tx.Where("id = ?", comment.ID).Delete(&models.ThesisComment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}
		if comment.Filename != nil {
			s.deleteStored(fx, *comment.Filename)
		}
		return nil
	})
	return err
}

func (s *ThesisService) DownloadCommentAttachment(ctx context.Context, actor *models.User, thesisID, commentID uuid.UUID) (*Document, error) {
	var comment models.ThesisComment
	err := s.db.WithContext(ctx).Where("id = ? AND thesis_id = ?", commentID, thesisID).First(&comment).Error
	if err != nil {
		return nil, notFoundOr(err, "comment")
	}
	level, err := commentLevel(comment.Type)
	if err != nil {
		return nil, err
	}
	if _, err := s.readable(ctx, actor, thesisID, level); err != nil {
		return nil, err
	}
	if comment.Filename == nil {
		return nil, notFoundOr(gorm.ErrRecordNotFound, "attachment")
	}
	name := ""
	if comment.UploadName != nil {
		name = *comment.UploadName
	}
	return s.loadDocument(ctx, *comment.Filename, name)
}
