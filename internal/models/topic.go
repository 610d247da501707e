package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopicStateDraft  = "DRAFT"
	TopicStateOpen   = "OPEN"
	TopicStateClosed = "CLOSED"
)

// Topic is a thesis proposal template published by a research group
type Topic struct {
	ID                  uuid.UUID                   `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title               string                      `gorm:"size:500;not null" json:"title"`
	Problem             string                      `gorm:"type:text" json:"problem_statement"`
	Requirements        string                      `gorm:"type:text" json:"requirements"`
	Goals               string                      `gorm:"type:text" json:"goals"`
	References          string                      `gorm:"column:topic_references;type:text" json:"references"`
	ThesisTypes         datatypes.JSONSlice[string] `json:"thesis_types"`
	IntendedStart       *time.Time                  `json:"intended_start"`
	ApplicationDeadline *time.Time                  `json:"application_deadline"`
	PublishedAt         *time.Time                  `json:"published_at"`
	ClosedAt            *time.Time                  `json:"closed_at"`
	ResearchGroupID     uuid.UUID                   `gorm:"type:varchar(36);index;not null" json:"research_group_id"`
	ResearchGroup       *ResearchGroup              `gorm:"foreignKey:ResearchGroupID" json:"research_group,omitempty"`
	Roles               []TopicRole                 `gorm:"foreignKey:TopicID" json:"roles"`
	CreatedByID         uuid.UUID                   `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// TopicRole binds a staff member to a topic with display ordering
type TopicRole struct {
	TopicID      uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"-"`
	UserID       uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	Role         string    `gorm:"size:20;primaryKey" json:"role"`
	Position     int       `json:"position"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssignedByID uuid.UUID `gorm:"type:varchar(36)" json:"assigned_by_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

func (Topic) TableName() string     { return "topics" }
func (TopicRole) TableName() string { return "topic_roles" }

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// State derives DRAFT/OPEN/CLOSED from the publish and close timestamps
func (t *Topic) State() string {
	if t.ClosedAt != nil {
		return TopicStateClosed
	}
	if t.PublishedAt == nil {
		return TopicStateDraft
	}
	return TopicStateOpen
}

func (t *Topic) IsClosed() bool {
	return t.ClosedAt != nil
}

// UsersWithRole returns the bound users for role in position order
func (t *Topic) UsersWithRole(role string) []uuid.UUID {
	return roleUsers(len(t.Roles), func(i int) (string, int, uuid.UUID) {
		r := t.Roles[i]
		return r.Role, r.Position, r.UserID
	}, role)
}

func (t *Topic) HasRole(userID uuid.UUID, role string) bool {
	for _, r := range t.Roles {
		if r.UserID == userID && r.Role == role {
			return true
		}
	}
	return false
}
