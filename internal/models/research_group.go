package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResearchGroup is the organizational unit owning topics, applications and theses
type ResearchGroup struct {
	ID           uuid.UUID             `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string                `gorm:"size:200;not null" json:"name"`
	Abbreviation string                `gorm:"size:20;uniqueIndex;not null" json:"abbreviation"`
	Description  string                `gorm:"type:text" json:"description"`
	WebsiteURL   string                `gorm:"size:500" json:"website_url"`
	Campus       string                `gorm:"size:100" json:"campus"`
	HeadID       *uuid.UUID            `gorm:"type:varchar(36)" json:"head_id"`
	Head         *User                 `gorm:"foreignKey:HeadID" json:"head,omitempty"`
	Archived     bool                  `gorm:"default:false;index" json:"archived"`
	Settings     *ResearchGroupSetting `gorm:"foreignKey:ResearchGroupID" json:"settings,omitempty"`
	CreatedByID  *uuid.UUID            `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// ResearchGroupSetting holds the per-group workflow switches.
// Columns have no database default; new rows start from DefaultResearchGroupSetting.
type ResearchGroupSetting struct {
	ResearchGroupID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"research_group_id"`
	AutomaticRejectEnabled bool      `json:"automatic_reject_enabled"`
	RejectDuration         int       `json:"reject_duration"` // weeks
	ProposalPhaseActive    bool      `json:"proposal_phase_active"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (ResearchGroup) TableName() string        { return "research_groups" }
func (ResearchGroupSetting) TableName() string { return "research_group_settings" }

func (g *ResearchGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// DefaultResearchGroupSetting returns the settings used when a group has none stored
func DefaultResearchGroupSetting(groupID uuid.UUID) ResearchGroupSetting {
	return ResearchGroupSetting{
		ResearchGroupID:        groupID,
		AutomaticRejectEnabled: false,
		RejectDuration:         8,
		ProposalPhaseActive:    true,
	}
}
