package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group names a user can hold. Groups are authoritative for role eligibility.
const (
	GroupStudent    = "student"
	GroupAdvisor    = "advisor"
	GroupSupervisor = "supervisor"
	GroupAdmin      = "admin"
	GroupGroupAdmin = "group-admin"
)

var AllGroups = []string{GroupStudent, GroupAdvisor, GroupSupervisor, GroupAdmin, GroupGroupAdmin}

// User represents a person known to the system
type User struct {
	ID              uuid.UUID      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username        string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	UniversityID    string         `gorm:"size:50;index" json:"university_id"`
	MatriculationNo string         `gorm:"size:50" json:"matriculation_number,omitempty"`
	Password        string         `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	Email           string         `gorm:"size:255" json:"email"`
	FirstName       string         `gorm:"size:100" json:"first_name"`
	LastName        string         `gorm:"size:100" json:"last_name"`
	AuthType        string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	ResearchGroupID *uuid.UUID     `gorm:"type:varchar(36);index" json:"research_group_id"`
	ResearchGroup   *ResearchGroup `gorm:"foreignKey:ResearchGroupID" json:"research_group,omitempty"`
	Groups          []UserGroup    `gorm:"foreignKey:UserID" json:"groups"`
	LastLogin       *time.Time     `json:"last_login"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// UserGroup is one group membership of a user
type UserGroup struct {
	UserID uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"-"`
	Group  string    `gorm:"column:group;size:50;primaryKey" json:"group"`
}

func (User) TableName() string      { return "users" }
func (UserGroup) TableName() string { return "user_groups" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) HasGroup(group string) bool {
	for _, g := range u.Groups {
		if g.Group == group {
			return true
		}
	}
	return false
}

func (u *User) HasAnyGroup(groups ...string) bool {
	for _, g := range groups {
		if u.HasGroup(g) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasGroup(GroupAdmin)
}

// IsStaff reports whether the user manages applications and theses
func (u *User) IsStaff() bool {
	return u.HasAnyGroup(GroupAdvisor, GroupSupervisor, GroupGroupAdmin)
}

func (u *User) GroupNames() []string {
	names := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		names = append(names, g.Group)
	}
	return names
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// InResearchGroup reports whether the user belongs to the given research group
func (u *User) InResearchGroup(groupID uuid.UUID) bool {
	return u.ResearchGroupID != nil && *u.ResearchGroupID == groupID
}
