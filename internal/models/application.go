package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ApplicationStateNotAssessed = "NOT_ASSESSED"
	ApplicationStateAccepted    = "ACCEPTED"
	ApplicationStateRejected    = "REJECTED"
)

// Reasons an application can be rejected with
const (
	RejectReasonFailedTopicRequirements   = "FAILED_TOPIC_REQUIREMENTS"
	RejectReasonFailedStudentRequirements = "FAILED_STUDENT_REQUIREMENTS"
	RejectReasonTitleNotInteresting       = "TITLE_NOT_INTERESTING"
	RejectReasonTopicFilled               = "TOPIC_FILLED"
	RejectReasonTopicOutdated             = "TOPIC_OUTDATED"
	RejectReasonGeneral                   = "GENERAL"
)

var RejectReasons = []string{
	RejectReasonFailedTopicRequirements,
	RejectReasonFailedStudentRequirements,
	RejectReasonTitleNotInteresting,
	RejectReasonTopicFilled,
	RejectReasonTopicOutdated,
	RejectReasonGeneral,
}

// Review reasons recorded per reviewer
const (
	ReviewReasonInterested    = "INTERESTED"
	ReviewReasonNotInterested = "NOT_INTERESTED"
	ReviewReasonNotReviewed   = "NOT_REVIEWED"
)

// Application is a candidate's request against a topic or a freeform title
type Application struct {
	ID               uuid.UUID             `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           uuid.UUID             `gorm:"type:varchar(36);index;not null" json:"user_id"`
	User             *User                 `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TopicID          *uuid.UUID            `gorm:"type:varchar(36);index" json:"topic_id"`
	Topic            *Topic                `gorm:"foreignKey:TopicID" json:"topic,omitempty"`
	ThesisTitle      string                `gorm:"size:500" json:"thesis_title"`
	ThesisType       string                `gorm:"size:50" json:"thesis_type"`
	Motivation       string                `gorm:"type:text" json:"motivation"`
	Comment          string                `gorm:"type:text" json:"comment"`
	DesiredStartDate time.Time             `json:"desired_start_date"`
	State            string                `gorm:"size:20;index;not null" json:"state"`
	RejectReason     *string               `gorm:"size:50" json:"reject_reason"`
	ReviewedAt       *time.Time            `json:"reviewed_at"`
	ResearchGroupID  uuid.UUID             `gorm:"type:varchar(36);index;not null" json:"research_group_id"`
	ResearchGroup    *ResearchGroup        `gorm:"foreignKey:ResearchGroupID" json:"research_group,omitempty"`
	Reviewers        []ApplicationReviewer `gorm:"foreignKey:ApplicationID" json:"reviewers"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ApplicationReviewer is the review annotation of one staff member; at most one per pair
type ApplicationReviewer struct {
	ApplicationID uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"-"`
	UserID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason        string    `gorm:"size:20;not null" json:"reason"`
	ReviewedAt    time.Time `json:"reviewed_at"`
}

func (Application) TableName() string         { return "applications" }
func (ApplicationReviewer) TableName() string { return "application_reviewers" }

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Application) IsPending() bool {
	return a.State == ApplicationStateNotAssessed
}

func IsValidRejectReason(reason string) bool {
	for _, r := range RejectReasons {
		if r == reason {
			return true
		}
	}
	return false
}
