package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResearchGroupService manages research groups, their workflow settings and memberships
type ResearchGroupService struct {
	db   *gorm.DB
	deps *WorkflowDeps
}

func NewResearchGroupService(db *gorm.DB, deps *WorkflowDeps) *ResearchGroupService {
	return &ResearchGroupService{db: db, deps: deps.withDefaults()}
}

type ResearchGroupRequest struct {
	Name         string     `json:"name" binding:"required"`
	Abbreviation string     `json:"abbreviation" binding:"required"`
	Description  string     `json:"description"`
	WebsiteURL   string     `json:"website_url"`
	Campus       string     `json:"campus"`
	HeadID       *uuid.UUID `json:"head_id"`
}

type ResearchGroupSettingsRequest struct {
	AutomaticRejectEnabled *bool `json:"automatic_reject_enabled"`
	RejectDuration         *int  `json:"reject_duration"`
	ProposalPhaseActive    *bool `json:"proposal_phase_active"`
}

type ResearchGroupListParams struct {
	IncludeArchived bool
	Search          string
	Page            int
	PageSize        int
}

type ResearchGroupListResponse struct {
	Items []models.ResearchGroup `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
}

// canManageGroup is true for admins and for group admins or the head of group
func canManageGroup(actor *models.User, group *models.ResearchGroup) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if group.Archived {
		return false
	}
	if group.HeadID != nil && *group.HeadID == actor.ID {
		return true
	}
	return actor.HasGroup(models.GroupGroupAdmin) && actor.InResearchGroup(group.ID)
}

func validateGroupRequest(req *ResearchGroupRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Abbreviation) == "" {
		return invalid("name and abbreviation are required")
	}
	if err := checkLength("name", req.Name, 200); err != nil {
		return err
	}
	return checkLength("abbreviation", req.Abbreviation, 20)
}

// checkHead ensures the head of a group is an existing supervisor
func checkHead(tx *gorm.DB, headID *uuid.UUID) error {
	if headID == nil {
		return nil
	}
	head, err := loadUser(tx, *headID)
	if err != nil {
		return err
	}
	if !head.HasGroup(models.GroupSupervisor) {
		return invalid("the head of a research group must be a supervisor")
	}
	return nil
}

func (s *ResearchGroupService) CreateResearchGroup(ctx context.Context, actor *models.User, req *ResearchGroupRequest) (*models.ResearchGroup, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, forbidden("only admins can create research groups")
	}
	if err := validateGroupRequest(req); err != nil {
		return nil, err
	}

	var group *models.ResearchGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkHead(tx, req.HeadID); err != nil {
			return err
		}
		group = &models.ResearchGroup{
			Name:         strings.TrimSpace(req.Name),
			Abbreviation: strings.ToUpper(strings.TrimSpace(req.Abbreviation)),
			Description:  req.Description,
			WebsiteURL:   req.WebsiteURL,
			Campus:       req.Campus,
			HeadID:       req.HeadID,
			CreatedByID:  actorIDPtr(actor),
		}
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("a research group with this abbreviation already exists")
			}
			return fmt.Errorf("failed to create research group: %w", err)
		}
		settings := models.DefaultResearchGroupSetting(group.ID)
		if err := tx.Create(&settings).Error; err != nil {
			return fmt.Errorf("failed to create research group settings: %w", err)
		}
		group.Settings = &settings

		if req.HeadID != nil {
			return tx.Model(&models.User{}).Where("id = ?", *req.HeadID).
				Update("research_group_id", group.ID).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *ResearchGroupService) UpdateResearchGroup(ctx context.Context, actor *models.User, id uuid.UUID, req *ResearchGroupRequest) (*models.ResearchGroup, error) {
	if err := validateGroupRequest(req); err != nil {
		return nil, err
	}

	var group *models.ResearchGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		group, err = loadResearchGroup(tx, id)
		if err != nil {
			return err
		}
		if !canManageGroup(actor, group) {
			return forbidden("you cannot manage this research group")
		}
		if err := checkHead(tx, req.HeadID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":         strings.TrimSpace(req.Name),
			"abbreviation": strings.ToUpper(strings.TrimSpace(req.Abbreviation)),
			"description":  req.Description,
			"website_url":  req.WebsiteURL,
			"campus":       req.Campus,
			"head_id":      req.HeadID,
		}
		if err := tx.Model(group).Omit(clause.Associations).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("a research group with this abbreviation already exists")
			}
			return fmt.Errorf("failed to update research group: %w", err)
		}
		group.Name = updates["name"].(string)
		group.Abbreviation = updates["abbreviation"].(string)
		group.Description = req.Description
		group.WebsiteURL = req.WebsiteURL
		group.Campus = req.Campus
		group.HeadID = req.HeadID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *ResearchGroupService) GetResearchGroup(ctx context.Context, actor *models.User, id uuid.UUID) (*models.ResearchGroup, error) {
	group, err := loadResearchGroup(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if group.Archived && (actor == nil || !actor.IsAdmin()) {
		return nil, notFoundOr(gorm.ErrRecordNotFound, "research group")
	}
	return group, nil
}

// ListResearchGroups hides archived groups from everyone but admins
func (s *ResearchGroupService) ListResearchGroups(ctx context.Context, actor *models.User, params *ResearchGroupListParams) (*ResearchGroupListResponse, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)
	query := s.db.WithContext(ctx).Model(&models.ResearchGroup{})

	if !params.IncludeArchived || actor == nil || !actor.IsAdmin() {
		query = query.Where("archived = ?", false)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(abbreviation) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count research groups: %w", err)
	}
	var groups []models.ResearchGroup
	err := query.Preload("Head").Order("name ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list research groups: %w", err)
	}
	return &ResearchGroupListResponse{Items: groups, Total: total, Page: page}, nil
}

// ArchiveResearchGroup archives or restores a group. Archived groups drop out of every workflow.
func (s *ResearchGroupService) ArchiveResearchGroup(ctx context.Context, actor *models.User, id uuid.UUID, archived bool) (*models.ResearchGroup, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, forbidden("only admins can archive research groups")
	}
	var group *models.ResearchGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		group, err = loadResearchGroup(tx, id)
		if err != nil {
			return err
		}
		if group.Archived == archived {
			return nil
		}
		if err := tx.Model(group).Omit(clause.Associations).Updates(map[string]interface{}{"archived": archived}).Error; err != nil {
			return fmt.Errorf("failed to archive research group: %w", err)
		}
		group.Archived = archived
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *ResearchGroupService) GetSettings(ctx context.Context, actor *models.User, id uuid.UUID) (*models.ResearchGroupSetting, error) {
	db := s.db.WithContext(ctx)
	group, err := loadResearchGroup(db, id)
	if err != nil {
		return nil, err
	}
	if !canManageGroup(actor, group) && !(actor != nil && actor.IsStaff() && actor.InResearchGroup(group.ID)) {
		return nil, forbidden("you cannot view the settings of this research group")
	}
	settings, err := groupSettings(db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &settings, nil
}

// UpdateSettings changes the given switches; the rejection duration is at least two weeks
func (s *ResearchGroupService) UpdateSettings(ctx context.Context, actor *models.User, id uuid.UUID, req *ResearchGroupSettingsRequest) (*models.ResearchGroupSetting, error) {
	if req.RejectDuration != nil && *req.RejectDuration < minRejectWeeks {
		return nil, invalid(fmt.Sprintf("reject duration must be at least %d weeks", minRejectWeeks))
	}

	var settings models.ResearchGroupSetting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := loadResearchGroup(tx, id)
		if err != nil {
			return err
		}
		if !canManageGroup(actor, group) {
			return forbidden("you cannot manage this research group")
		}

		settings, err = groupSettings(tx, id)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if req.AutomaticRejectEnabled != nil {
			settings.AutomaticRejectEnabled = *req.AutomaticRejectEnabled
		}
		if req.RejectDuration != nil {
			settings.RejectDuration = *req.RejectDuration
		}
		if req.ProposalPhaseActive != nil {
			settings.ProposalPhaseActive = *req.ProposalPhaseActive
		}
		settings.UpdatedAt = s.deps.Now()

		// create the row if missing, then write every column through a map so false is stored as false
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "research_group_id"}},
			DoNothing: true,
		}).Create(&settings).Error
		if err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}
		err = tx.Model(&models.ResearchGroupSetting{}).Where("research_group_id = ?", id).
			Updates(map[string]interface{}{
				"automatic_reject_enabled": settings.AutomaticRejectEnabled,
				"reject_duration":          settings.RejectDuration,
				"proposal_phase_active":    settings.ProposalPhaseActive,
				"updated_at":               settings.UpdatedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// AssignMember moves a user into the group; group admins may only assign to their own group
func (s *ResearchGroupService) AssignMember(ctx context.Context, actor *models.User, groupID, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := loadResearchGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !canManageGroup(actor, group) {
			return forbidden("you cannot manage this research group")
		}
		if group.Archived {
			return invalid("members cannot be added to an archived research group")
		}
		user, err = loadUser(tx, userID)
		if err != nil {
			return err
		}
		if user.ResearchGroupID != nil && *user.ResearchGroupID != groupID && !actor.IsAdmin() {
			return conflict("user already belongs to another research group")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("research_group_id", groupID).Error; err != nil {
			return fmt.Errorf("failed to assign member: %w", err)
		}
		user.ResearchGroupID = &groupID
		user.ResearchGroup = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ResearchGroupService) RemoveMember(ctx context.Context, actor *models.User, groupID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := loadResearchGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !canManageGroup(actor, group) {
			return forbidden("you cannot manage this research group")
		}
		if group.HeadID != nil && *group.HeadID == userID {
			return invalid("the head of a research group cannot be removed")
		}
		result := tx.Model(&models.User{}).Where("id = ? AND research_group_id = ?", userID, groupID).
			Update("research_group_id", nil)
		if result.Error != nil {
			return fmt.Errorf("failed to remove member: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFoundOr(gorm.ErrRecordNotFound, "member")
		}
		return nil
	})
}

func (s *ResearchGroupService) ListMembers(ctx context.Context, actor *models.User, groupID uuid.UUID) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	group, err := loadResearchGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if !canManageGroup(actor, group) && !(actor != nil && actor.InResearchGroup(group.ID)) {
		return nil, forbidden("you cannot view the members of this research group")
	}
	var users []models.User
	err = db.Preload("Groups").Where("research_group_id = ?", groupID).Order("last_name ASC, first_name ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return users, nil
}
