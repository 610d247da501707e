package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/access"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxMotivationLength = 10000
	maxCommentLength    = 5000
)

type ApplicationService struct {
	db   *gorm.DB
	deps *WorkflowDeps
}

func NewApplicationService(db *gorm.DB, deps *WorkflowDeps) *ApplicationService {
	return &ApplicationService{db: db, deps: deps.withDefaults()}
}

type CreateApplicationRequest struct {
	TopicID          *uuid.UUID `json:"topic_id"`
	ThesisTitle      string     `json:"thesis_title"`
	ThesisType       string     `json:"thesis_type" binding:"required"`
	DesiredStartDate time.Time  `json:"desired_start_date" binding:"required"`
	Motivation       string     `json:"motivation" binding:"required"`
	// ResearchGroupID is required when no topic is given
	ResearchGroupID *uuid.UUID `json:"research_group_id"`
}

type UpdateApplicationRequest struct {
	ThesisTitle      string    `json:"thesis_title"`
	ThesisType       string    `json:"thesis_type" binding:"required"`
	DesiredStartDate time.Time `json:"desired_start_date" binding:"required"`
	Motivation       string    `json:"motivation" binding:"required"`
}

type AcceptApplicationRequest struct {
	ThesisTitle   string      `json:"thesis_title"`
	ThesisType    string      `json:"thesis_type"`
	Language      string      `json:"language"`
	SupervisorIDs []uuid.UUID `json:"supervisor_ids"`
	AdvisorIDs    []uuid.UUID `json:"advisor_ids"`
	// CloseTopic rejects the remaining applications of the topic with TOPIC_FILLED
	CloseTopic bool `json:"close_topic"`
	NotifyUser bool `json:"notify_user"`
}

type ApplicationListParams struct {
	States          []string
	TopicID         *uuid.UUID
	ResearchGroupID *uuid.UUID
	Search          string
	Page            int
	PageSize        int
}

type ApplicationListResponse struct {
	Items []models.Application `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
}

func validateApplicationText(title, motivation string) error {
	if err := checkLength("thesis title", title, maxTitleLength); err != nil {
		return err
	}
	if strings.TrimSpace(motivation) == "" {
		return invalid("motivation is required")
	}
	return checkLength("motivation", motivation, maxMotivationLength)
}

// CreateApplication files an application of actor against a topic or a freeform title
func (s *ApplicationService) CreateApplication(ctx context.Context, actor *models.User, req *CreateApplicationRequest) (*models.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateApplicationText(req.ThesisTitle, req.Motivation); err != nil {
		return nil, err
	}
	if req.TopicID == nil && strings.TrimSpace(req.ThesisTitle) == "" {
		return nil, invalid("thesis title is required when no topic is selected")
	}

	now := s.deps.Now()
	fx := &sideEffects{}
	var application *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var topic *models.Topic
		var group *models.ResearchGroup
		var err error

		if req.TopicID != nil {
			topic, err = loadTopic(tx, *req.TopicID)
			if err != nil {
				return err
			}
			if topic.IsClosed() {
				return invalid("topic is already closed")
			}
			group = topic.ResearchGroup
		} else {
			if req.ResearchGroupID == nil {
				return invalid("research group is required when no topic is selected")
			}
			group, err = loadResearchGroup(tx, *req.ResearchGroupID)
			if err != nil {
				return err
			}
		}
		if group == nil {
			return notFoundOr(gorm.ErrRecordNotFound, "research group")
		}
		if err := access.AssertCanAccessResearchGroup(actor, group); err != nil {
			return err
		}

		if topic != nil {
			var pending int64
			err := tx.Model(&models.Application{}).
				Where("user_id = ? AND topic_id = ? AND state = ?", actor.ID, topic.ID, models.ApplicationStateNotAssessed).
				Count(&pending).Error
			if err != nil {
				return fmt.Errorf("failed to check existing applications: %w", err)
			}
			if pending > 0 {
				return conflict("you already have a pending application for this topic")
			}
		}

		application = &models.Application{
			UserID:           actor.ID,
			TopicID:          req.TopicID,
			ThesisTitle:      strings.TrimSpace(req.ThesisTitle),
			ThesisType:       req.ThesisType,
			Motivation:       req.Motivation,
			DesiredStartDate: req.DesiredStartDate,
			State:            models.ApplicationStateNotAssessed,
			ResearchGroupID:  group.ID,
		}
		if err := tx.Omit(clause.Associations).Create(application).Error; err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		application.User = actor
		application.Topic = topic
		application.ResearchGroup = group

		recipients, err := applicationReviewers(tx, application)
		if err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, applicationNotification(NotifyApplicationCreated, application, actor, recipients, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	fx.run(ctx)
	return application, nil
}

// applicationReviewers returns the topic's supervisors and advisors, or the group staff for freeform applications
func applicationReviewers(tx *gorm.DB, app *models.Application) ([]Recipient, error) {
	if app.Topic != nil && len(app.Topic.Roles) > 0 {
		var users []models.User
		for _, r := range app.Topic.Roles {
			if r.User != nil {
				users = append(users, *r.User)
			}
		}
		return recipientsOf(users, nil), nil
	}
	staff, err := staffOfGroup(tx, app.ResearchGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group staff: %w", err)
	}
	return recipientsOf(staff, nil), nil
}

// UpdateApplication lets the applicant edit an application nobody has reviewed yet
func (s *ApplicationService) UpdateApplication(ctx context.Context, actor *models.User, id uuid.UUID, req *UpdateApplicationRequest) (*models.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateApplicationText(req.ThesisTitle, req.Motivation); err != nil {
		return nil, err
	}

	var application *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = loadApplication(tx, id)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, application.ResearchGroup); err != nil {
			return err
		}
		if application.UserID != actor.ID && !actor.IsAdmin() {
			return forbidden("only the applicant can edit this application")
		}
		if !application.IsPending() || len(application.Reviewers) > 0 {
			return invalid("application can no longer be edited")
		}
		if application.TopicID == nil && strings.TrimSpace(req.ThesisTitle) == "" {
			return invalid("thesis title is required when no topic is selected")
		}

		updates := map[string]interface{}{
			"thesis_title":       strings.TrimSpace(req.ThesisTitle),
			"thesis_type":        req.ThesisType,
			"desired_start_date": req.DesiredStartDate,
			"motivation":         req.Motivation,
		}
		if err := tx.Model(application).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		application.ThesisTitle = strings.TrimSpace(req.ThesisTitle)
		application.ThesisType = req.ThesisType
		application.DesiredStartDate = req.DesiredStartDate
		application.Motivation = req.Motivation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// loadForManagement loads an application and checks the group guard and management access
func loadForManagement(tx *gorm.DB, actor *models.User, id uuid.UUID) (*models.Application, error) {
	application, err := loadApplication(tx, id)
	if err != nil {
		return nil, err
	}
	if err := access.AssertCanAccessResearchGroup(actor, application.ResearchGroup); err != nil {
		return nil, err
	}
	if !access.HasManagementAccess(actor) {
		return nil, forbidden("you are not allowed to manage applications")
	}
	return application, nil
}

// UpdateComment sets the internal staff comment of a pending application
func (s *ApplicationService) UpdateComment(ctx context.Context, actor *models.User, id uuid.UUID, comment string) (*models.Application, error) {
	if err := checkLength("comment", comment, maxCommentLength); err != nil {
		return nil, err
	}

	var application *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = loadForManagement(tx, actor, id)
		if err != nil {
			return err
		}
		if !application.IsPending() {
			return invalid("application was already assessed")
		}
		if err := tx.Model(application).Omit(clause.Associations).Updates(map[string]interface{}{"comment": comment}).Error; err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}
		application.Comment = comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// ReviewApplication records actor's review; NOT_REVIEWED removes an existing review
func (s *ApplicationService) ReviewApplication(ctx context.Context, actor *models.User, id uuid.UUID, reason string) (*models.Application, error) {
	switch reason {
	case models.ReviewReasonInterested, models.ReviewReasonNotInterested, models.ReviewReasonNotReviewed:
	default:
		return nil, invalid("invalid review reason")
	}

	now := s.deps.Now()
	var application *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = loadForManagement(tx, actor, id)
		if err != nil {
			return err
		}
		if !application.IsPending() {
			return invalid("application was already assessed")
		}

		if reason == models.ReviewReasonNotReviewed {
			err = tx.Where("application_id = ? AND user_id = ?", application.ID, actor.ID).
				Delete(&models.ApplicationReviewer{}).Error
			if err != nil {
				return fmt.Errorf("failed to remove review: %w", err)
			}
		} else if err := upsertReviewerTx(tx, application.ID, actor.ID, reason, now); err != nil {
			return err
		}

		return tx.Where("application_id = ?", application.ID).Find(&application.Reviewers).Error
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// upsertReviewerTx keeps at most one review per (application, user)
func upsertReviewerTx(tx *gorm.DB, applicationID, userID uuid.UUID, reason string, now time.Time) error {
	reviewer := models.ApplicationReviewer{
		ApplicationID: applicationID,
		UserID:        userID,
		Reason:        reason,
		ReviewedAt:    now,
	}
	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "reviewed_at"}),
	}).Create(&reviewer).Error
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// AcceptApplication accepts a pending application and opens a thesis for the applicant.
// It returns every application changed by the call, the accepted one first.
func (s *ApplicationService) AcceptApplication(ctx context.Context, actor *models.User, id uuid.UUID, req *AcceptApplicationRequest) ([]models.Application, error) {
	now := s.deps.Now()
	fx := &sideEffects{}
	var changed []models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		application, err := loadForManagement(tx, actor, id)
		if err != nil {
			return err
		}
		if !application.IsPending() {
			return invalid("application was already assessed")
		}

		err = tx.Model(application).Omit(clause.Associations).Updates(map[string]interface{}{
			"state":       models.ApplicationStateAccepted,
			"reviewed_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to accept application: %w", err)
		}
		application.State = models.ApplicationStateAccepted
		application.ReviewedAt = &now
		if err := upsertReviewerTx(tx, application.ID, actor.ID, models.ReviewReasonInterested, now); err != nil {
			return err
		}

		params := thesisParams{
			Title:           firstNonEmpty(req.ThesisTitle, application.ThesisTitle, topicTitle(application.Topic)),
			Type:            firstNonEmpty(req.ThesisType, application.ThesisType),
			Language:        req.Language,
			ResearchGroupID: application.ResearchGroupID,
			ApplicationID:   &application.ID,
			Roles: RoleAssignment{
				Supervisors: req.SupervisorIDs,
				Advisors:    req.AdvisorIDs,
				Students:    []uuid.UUID{application.UserID},
			},
		}
		if application.Topic != nil {
			if len(params.Roles.Supervisors) == 0 {
				params.Roles.Supervisors = application.Topic.UsersWithRole(models.RoleSupervisor)
			}
			if len(params.Roles.Advisors) == 0 {
				params.Roles.Advisors = application.Topic.UsersWithRole(models.RoleAdvisor)
			}
		}
		if _, err := createThesisTx(tx, actor, params, s.deps, fx, now); err != nil {
			return err
		}

		if req.NotifyUser {
			fx.notify(s.deps.Notifier, applicationNotification(NotifyApplicationAccepted, application, actor, []Recipient{recipientOf(application.User)}, now))
		}
		changed = append(changed, *application)

		if req.CloseTopic && application.TopicID != nil {
			topic, err := loadTopic(tx, *application.TopicID)
			if err != nil {
				return err
			}
			rejected, err := closeTopicTx(tx, actor, topic, models.RejectReasonTopicFilled, req.NotifyUser, s.deps.Notifier, fx, now)
			if err != nil {
				return err
			}
			changed = append(changed, rejected...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fx.run(ctx)
	return changed, nil
}

// RejectApplication rejects a pending application. FAILED_STUDENT_REQUIREMENTS also rejects
// the applicant's other pending applications. It returns every rejected application.
func (s *ApplicationService) RejectApplication(ctx context.Context, actor *models.User, id uuid.UUID, reason string, notifyUser bool) ([]models.Application, error) {
	if !models.IsValidRejectReason(reason) {
		return nil, invalid("invalid reject reason")
	}

	now := s.deps.Now()
	fx := &sideEffects{}
	var rejected []models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		application, err := loadForManagement(tx, actor, id)
		if err != nil {
			return err
		}
		rejected, err = rejectApplicationTx(tx, actor, application, reason, notifyUser, s.deps.Notifier, fx, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	fx.run(ctx)
	return rejected, nil
}

func rejectApplicationTx(tx *gorm.DB, actor *models.User, application *models.Application, reason string, notifyUser bool, notifier Notifier, fx *sideEffects, now time.Time) ([]models.Application, error) {
	if !application.IsPending() {
		return nil, invalid("application was already assessed")
	}

	targets := []*models.Application{application}
	if reason == models.RejectReasonFailedStudentRequirements {
		var others []models.Application
		err := tx.Preload("User").Preload("Topic").
			Where("user_id = ? AND state = ? AND id <> ?", application.UserID, models.ApplicationStateNotAssessed, application.ID).
			Order("created_at ASC").
			Find(&others).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load other applications: %w", err)
		}
		for i := range others {
			targets = append(targets, &others[i])
		}
	}

	rejected := make([]models.Application, 0, len(targets))
	for _, app := range targets {
		if err := markRejectedTx(tx, actor, app, reason, now); err != nil {
			return nil, err
		}
		if notifyUser && app.User != nil {
			fx.notify(notifier, applicationNotification(NotifyApplicationRejected, app, actor, []Recipient{recipientOf(app.User)}, now))
		}
		rejected = append(rejected, *app)
	}
	return rejected, nil
}

// markRejectedTx moves one application to REJECTED and records the reviewer as not interested
func markRejectedTx(tx *gorm.DB, reviewer *models.User, app *models.Application, reason string, now time.Time) error {
	err := tx.Model(app).Omit(clause.Associations).Updates(map[string]interface{}{
		"state":         models.ApplicationStateRejected,
		"reject_reason": reason,
		"reviewed_at":   now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to reject application: %w", err)
	}
	app.State = models.ApplicationStateRejected
	app.RejectReason = &reason
	app.ReviewedAt = &now

	if reviewer != nil {
		return upsertReviewerTx(tx, app.ID, reviewer.ID, models.ReviewReasonNotInterested, now)
	}
	return nil
}

func (s *ApplicationService) GetApplication(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Application, error) {
	application, err := loadApplication(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !access.HasApplicationReadAccess(application, actor) {
		return nil, forbidden("you do not have access to this application")
	}
	return application, nil
}

// ListApplications returns the actor's own applications, or those of their group for staff
func (s *ApplicationService) ListApplications(ctx context.Context, actor *models.User, params *ApplicationListParams) (*ApplicationListResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	page, pageSize := normalizePage(params.Page, params.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Application{})
	switch {
	case actor.IsAdmin():
	case actor.IsStaff() && actor.ResearchGroupID != nil:
		query = query.Where("research_group_id = ?", *actor.ResearchGroupID)
	default:
		query = query.Where("user_id = ?", actor.ID)
	}

	if len(params.States) > 0 {
		query = query.Where("state IN ?", params.States)
	}
	if params.TopicID != nil {
		query = query.Where("topic_id = ?", *params.TopicID)
	}
	if params.ResearchGroupID != nil {
		query = query.Where("research_group_id = ?", *params.ResearchGroupID)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(thesis_title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}

	var items []models.Application
	err := query.
		Preload("User").
		Preload("Topic").
		Preload("Reviewers").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return &ApplicationListResponse{Items: items, Total: total, Page: page}, nil
}

func topicTitle(topic *models.Topic) string {
	if topic == nil {
		return ""
	}
	return topic.Title
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
