package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/access"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TopicService struct {
	db   *gorm.DB
	deps *WorkflowDeps
}

func NewTopicService(db *gorm.DB, deps *WorkflowDeps) *TopicService {
	return &TopicService{db: db, deps: deps.withDefaults()}
}

type TopicRequest struct {
	Title               string      `json:"title" binding:"required"`
	Problem             string      `json:"problem_statement"`
	Requirements        string      `json:"requirements"`
	Goals               string      `json:"goals"`
	References          string      `json:"references"`
	ThesisTypes         []string    `json:"thesis_types"`
	IntendedStart       *time.Time  `json:"intended_start"`
	ApplicationDeadline *time.Time  `json:"application_deadline"`
	SupervisorIDs       []uuid.UUID `json:"supervisor_ids"`
	AdvisorIDs          []uuid.UUID `json:"advisor_ids"`
	ResearchGroupID     *uuid.UUID  `json:"research_group_id"`
	// Draft keeps the topic unpublished
	Draft bool `json:"draft"`
}

type TopicListParams struct {
	ResearchGroupID *uuid.UUID
	States          []string // DRAFT, OPEN, CLOSED
	Search          string
	Page            int
	PageSize        int
}

type TopicListResponse struct {
	Items []models.Topic `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
}

const maxTitleLength = 500

func validateTopicRequest(req *TopicRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return invalid("title is required")
	}
	if err := checkLength("title", req.Title, maxTitleLength); err != nil {
		return err
	}
	if req.IntendedStart != nil && req.ApplicationDeadline != nil && req.ApplicationDeadline.After(*req.IntendedStart) {
		return invalid("application deadline must not be after the intended start")
	}
	return nil
}

func (s *TopicService) CreateTopic(ctx context.Context, actor *models.User, req *TopicRequest) (*models.Topic, error) {
	if !access.HasManagementAccess(actor) {
		return nil, forbidden("you are not allowed to create topics")
	}
	if err := validateTopicRequest(req); err != nil {
		return nil, err
	}

	groupID := req.ResearchGroupID
	if groupID == nil {
		groupID = actor.ResearchGroupID
	}
	if groupID == nil {
		return nil, invalid("research group is required")
	}

	now := s.deps.Now()
	var topic *models.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := loadResearchGroup(tx, *groupID)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, group); err != nil {
			return err
		}

		topic = &models.Topic{
			ResearchGroupID: group.ID,
			CreatedByID:     actor.ID,
		}
		applyTopicRequest(topic, req)
		if !req.Draft {
			topic.PublishedAt = &now
		}
		if err := tx.Omit(clause.Associations).Create(topic).Error; err != nil {
			return fmt.Errorf("failed to create topic: %w", err)
		}
		topic.ResearchGroup = group

		return assignTopicRoles(tx, actor, topic, RoleAssignment{Supervisors: req.SupervisorIDs, Advisors: req.AdvisorIDs}, now)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func applyTopicRequest(topic *models.Topic, req *TopicRequest) {
	topic.Title = strings.TrimSpace(req.Title)
	topic.Problem = req.Problem
	topic.Requirements = req.Requirements
	topic.Goals = req.Goals
	topic.References = req.References
	topic.ThesisTypes = datatypes.JSONSlice[string](req.ThesisTypes)
	topic.IntendedStart = req.IntendedStart
	topic.ApplicationDeadline = req.ApplicationDeadline
}

func (s *TopicService) UpdateTopic(ctx context.Context, actor *models.User, id uuid.UUID, req *TopicRequest) (*models.Topic, error) {
	if err := validateTopicRequest(req); err != nil {
		return nil, err
	}

	now := s.deps.Now()
	var topic *models.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		topic, err = loadTopic(tx, id)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, topic.ResearchGroup); err != nil {
			return err
		}
		if !access.HasManagementAccess(actor) {
			return forbidden("you are not allowed to update topics")
		}

		applyTopicRequest(topic, req)
		err = tx.Model(topic).Omit(clause.Associations).Select(
			"title", "problem", "requirements", "goals", "topic_references",
			"thesis_types", "intended_start", "application_deadline",
		).Updates(topic).Error
		if err != nil {
			return fmt.Errorf("failed to update topic: %w", err)
		}

		return assignTopicRoles(tx, actor, topic, RoleAssignment{Supervisors: req.SupervisorIDs, Advisors: req.AdvisorIDs}, now)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// PublishTopic makes a draft topic visible to applicants
func (s *TopicService) PublishTopic(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Topic, error) {
	now := s.deps.Now()
	var topic *models.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		topic, err = loadTopic(tx, id)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, topic.ResearchGroup); err != nil {
			return err
		}
		if !access.HasManagementAccess(actor) {
			return forbidden("you are not allowed to publish topics")
		}
		if topic.IsClosed() {
			return invalid("topic is already closed")
		}
		if topic.PublishedAt != nil {
			return nil
		}

		topic.PublishedAt = &now
		return tx.Model(topic).Omit(clause.Associations).Updates(map[string]interface{}{"published_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// CloseTopic closes the topic and rejects every pending application on it with reason.
// It returns the rejected applications.
func (s *TopicService) CloseTopic(ctx context.Context, actor *models.User, id uuid.UUID, reason string, notifyUsers bool) ([]models.Application, error) {
	if reason == "" {
		reason = models.RejectReasonTopicFilled
	}
	if !models.IsValidRejectReason(reason) {
		return nil, invalid("invalid reject reason")
	}

	now := s.deps.Now()
	fx := &sideEffects{}
	var rejected []models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		topic, err := loadTopic(tx, id)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, topic.ResearchGroup); err != nil {
			return err
		}
		if !access.HasManagementAccess(actor) {
			return forbidden("you are not allowed to close topics")
		}
		if topic.IsClosed() {
			return invalid("topic is already closed")
		}

		rejected, err = closeTopicTx(tx, actor, topic, reason, notifyUsers, s.deps.Notifier, fx, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	fx.run(ctx)
	return rejected, nil
}

// closeTopicTx stamps closedAt once and rejects all NOT_ASSESSED applications of the topic
func closeTopicTx(tx *gorm.DB, actor *models.User, topic *models.Topic, reason string, notifyUsers bool, notifier Notifier, fx *sideEffects, now time.Time) ([]models.Application, error) {
	if topic.ClosedAt == nil {
		if err := tx.Model(topic).Omit(clause.Associations).Updates(map[string]interface{}{"closed_at": now}).Error; err != nil {
			return nil, fmt.Errorf("failed to close topic: %w", err)
		}
		topic.ClosedAt = &now
	}

	var pending []models.Application
	err := tx.Preload("User").Preload("Topic").
		Where("topic_id = ? AND state = ?", topic.ID, models.ApplicationStateNotAssessed).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending applications: %w", err)
	}

	rejected := make([]models.Application, 0, len(pending))
	for i := range pending {
		if err := markRejectedTx(tx, actor, &pending[i], reason, now); err != nil {
			return nil, err
		}
		if notifyUsers {
			fx.notify(notifier, applicationNotification(NotifyApplicationRejected, &pending[i], actor, []Recipient{recipientOf(pending[i].User)}, now))
		}
		rejected = append(rejected, pending[i])
	}
	return rejected, nil
}

func (s *TopicService) GetTopic(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Topic, error) {
	topic, err := loadTopic(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !access.HasTopicReadAccess(topic, actor) {
		return nil, forbidden("you do not have access to this topic")
	}
	return topic, nil
}

// ListTopics returns published topics to everyone and unpublished ones to staff of the owning group
func (s *TopicService) ListTopics(ctx context.Context, actor *models.User, params *TopicListParams) (*TopicListResponse, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	db := s.db.WithContext(ctx)
	activeGroups := db.Model(&models.ResearchGroup{}).Select("id").Where("archived = ?", false)
	query := db.Model(&models.Topic{})

	switch {
	case actor != nil && actor.IsAdmin():
	case actor != nil && actor.IsStaff() && actor.ResearchGroupID != nil:
		query = query.Where("research_group_id IN (?)", activeGroups).
			Where("published_at IS NOT NULL OR research_group_id = ?", *actor.ResearchGroupID)
	default:
		query = query.Where("research_group_id IN (?)", activeGroups).Where("published_at IS NOT NULL")
	}

	if params.ResearchGroupID != nil {
		query = query.Where("research_group_id = ?", *params.ResearchGroupID)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if len(params.States) > 0 {
		var conds []string
		for _, state := range params.States {
			switch state {
			case models.TopicStateDraft:
				conds = append(conds, "(published_at IS NULL AND closed_at IS NULL)")
			case models.TopicStateOpen:
				conds = append(conds, "(published_at IS NOT NULL AND closed_at IS NULL)")
			case models.TopicStateClosed:
				conds = append(conds, "closed_at IS NOT NULL")
			}
		}
		if len(conds) > 0 {
			query = query.Where(strings.Join(conds, " OR "))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count topics: %w", err)
	}

	var topics []models.Topic
	err := query.
		Preload("Roles", byPosition).
		Preload("Roles.User").
		Preload("ResearchGroup").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	return &TopicListResponse{Items: topics, Total: total, Page: page}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
