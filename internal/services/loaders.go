package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func loadThesis(db *gorm.DB, id uuid.UUID) (*models.Thesis, error) {
	var thesis models.Thesis
	err := db.
		Preload("ResearchGroup").
		Preload("Roles", byPosition).
		Preload("Roles.User").
		Preload("StateChanges").
		Preload("Proposals", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") }).
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("requested_at ASC") }).
		Preload("Assessments").
		Preload("Presentations", func(db *gorm.DB) *gorm.DB { return db.Order("scheduled_at ASC") }).
		Where("id = ?", id).
		First(&thesis).Error
	if err != nil {
		return nil, notFoundOr(err, "thesis")
	}
	return &thesis, nil
}

func loadTopic(db *gorm.DB, id uuid.UUID) (*models.Topic, error) {
	var topic models.Topic
	err := db.
		Preload("ResearchGroup").
		Preload("Roles", byPosition).
		Preload("Roles.User").
		Where("id = ?", id).
		First(&topic).Error
	if err != nil {
		return nil, notFoundOr(err, "topic")
	}
	return &topic, nil
}

func loadApplication(db *gorm.DB, id uuid.UUID) (*models.Application, error) {
	var application models.Application
	err := db.
		Preload("User").
		Preload("ResearchGroup").
		Preload("Topic").
		Preload("Topic.Roles", byPosition).
		Preload("Reviewers").
		Where("id = ?", id).
		First(&application).Error
	if err != nil {
		return nil, notFoundOr(err, "application")
	}
	return &application, nil
}

func loadResearchGroup(db *gorm.DB, id uuid.UUID) (*models.ResearchGroup, error) {
	var group models.ResearchGroup
	if err := db.Preload("Settings").Where("id = ?", id).First(&group).Error; err != nil {
		return nil, notFoundOr(err, "research group")
	}
	return &group, nil
}

func loadUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Preload("Groups").Preload("ResearchGroup").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}

// groupSettings returns the stored settings or the defaults
func groupSettings(db *gorm.DB, groupID uuid.UUID) (models.ResearchGroupSetting, error) {
	var settings models.ResearchGroupSetting
	err := db.Where("research_group_id = ?", groupID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultResearchGroupSetting(groupID), nil
	}
	return settings, err
}

// staffOfGroup returns the advisors and supervisors belonging to a research group
func staffOfGroup(db *gorm.DB, groupID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := db.
		Where("research_group_id = ? AND is_active = ?", groupID, true).
		Where("id IN (?)", db.Model(&models.UserGroup{}).Select("user_id").
			Where(clause.IN{Column: clause.Column{Name: "group"}, Values: []interface{}{models.GroupAdvisor, models.GroupSupervisor}})).
		Order("last_name ASC").
		Find(&users).Error
	return users, err
}
