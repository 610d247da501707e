package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ThesisStateProposal   = "PROPOSAL"
	ThesisStateWriting    = "WRITING"
	ThesisStateSubmitted  = "SUBMITTED"
	ThesisStateAssessed   = "ASSESSED"
	ThesisStateGraded     = "GRADED"
	ThesisStateFinished   = "FINISHED"
	ThesisStateDroppedOut = "DROPPED_OUT"
)

const (
	VisibilityPrivate  = "PRIVATE"
	VisibilityInternal = "INTERNAL"
	VisibilityStudent  = "STUDENT"
	VisibilityPublic   = "PUBLIC"
)

var ThesisVisibilities = []string{VisibilityPrivate, VisibilityInternal, VisibilityStudent, VisibilityPublic}

// Thesis is an accepted, ongoing work item
type Thesis struct {
	ID              uuid.UUID                   `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title           string                      `gorm:"size:500;not null" json:"title"`
	Type            string                      `gorm:"size:50;not null" json:"type"`
	Language        string                      `gorm:"size:20" json:"language"`
	Abstract        string                      `gorm:"type:text" json:"abstract"`
	Info            string                      `gorm:"type:text" json:"info"`
	Visibility      string                      `gorm:"size:20;not null" json:"visibility"`
	Keywords        datatypes.JSONSlice[string] `json:"keywords"`
	State           string                      `gorm:"size:20;index;not null" json:"state"`
	ApplicationID   *uuid.UUID                  `gorm:"type:varchar(36);index" json:"application_id"`
	StartDate       *time.Time                  `json:"start_date"`
	EndDate         *time.Time                  `json:"end_date"`
	FinalGrade      *string                     `gorm:"size:50" json:"final_grade"`
	FinalFeedback   *string                     `gorm:"type:text" json:"final_feedback"`
	ResearchGroupID uuid.UUID                   `gorm:"type:varchar(36);index;not null" json:"research_group_id"`
	ResearchGroup   *ResearchGroup              `gorm:"foreignKey:ResearchGroupID" json:"research_group,omitempty"`
	Roles           []ThesisRole                `gorm:"foreignKey:ThesisID" json:"roles"`
	StateChanges    []ThesisStateChange         `gorm:"foreignKey:ThesisID" json:"states"`
	Proposals       []ThesisProposal            `gorm:"foreignKey:ThesisID" json:"proposals"`
	Files           []ThesisFile                `gorm:"foreignKey:ThesisID" json:"files"`
	Feedback        []ThesisFeedback            `gorm:"foreignKey:ThesisID" json:"feedback"`
	Assessments     []ThesisAssessment          `gorm:"foreignKey:ThesisID" json:"assessments"`
	Presentations   []ThesisPresentation        `gorm:"foreignKey:ThesisID" json:"presentations"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// ThesisRole binds a user to a thesis with display ordering
type ThesisRole struct {
	ThesisID     uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"-"`
	UserID       uuid.UUID `gorm:"type:varchar(36);primaryKey;index" json:"user_id"`
	Role         string    `gorm:"size:20;primaryKey" json:"role"`
	Position     int       `json:"position"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssignedByID uuid.UUID `gorm:"type:varchar(36)" json:"assigned_by_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// ThesisStateChange records when a state was first entered; keyed by (thesis, state)
type ThesisStateChange struct {
	ThesisID  uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"-"`
	State     string    `gorm:"size:20;primaryKey" json:"state"`
	ChangedAt time.Time `json:"changed_at"`
}

type ThesisProposal struct {
	ID           uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID     uuid.UUID  `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	Filename     string     `gorm:"size:255;not null" json:"-"`
	UploadName   string     `gorm:"size:255" json:"upload_name"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ApprovedByID *uuid.UUID `gorm:"type:varchar(36)" json:"approved_by_id"`
	CreatedByID  uuid.UUID  `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// File kinds attached to a thesis
const (
	ThesisFileTypeThesis       = "THESIS"
	ThesisFileTypePresentation = "PRESENTATION"
	ThesisFileTypeProposal     = "PROPOSAL"
	ThesisFileTypeAttachment   = "ATTACHMENT"
)

type ThesisFile struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID     uuid.UUID `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	Type         string    `gorm:"size:30;not null" json:"type"`
	Filename     string    `gorm:"size:255;not null" json:"-"`
	UploadName   string    `gorm:"size:255" json:"upload_name"`
	UploadedByID uuid.UUID `gorm:"type:varchar(36)" json:"uploaded_by_id"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

const (
	CommentTypeThesis  = "THESIS_COMMENTS"
	CommentTypeAdvisor = "ADVISOR_COMMENTS"
)

type ThesisComment struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID    uuid.UUID `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	Type        string    `gorm:"size:30;not null" json:"type"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Filename    *string   `gorm:"size:255" json:"-"`
	UploadName  *string   `gorm:"size:255" json:"upload_name"`
	CreatedByID uuid.UUID `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	FeedbackTypeProposal = "PROPOSAL"
	FeedbackTypeThesis   = "THESIS"
)

type ThesisFeedback struct {
	ID            uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID      uuid.UUID  `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	Type          string     `gorm:"size:20;not null" json:"type"`
	Feedback      string     `gorm:"type:text;not null" json:"feedback"`
	CompletedAt   *time.Time `json:"completed_at"`
	RequestedByID uuid.UUID  `gorm:"type:varchar(36)" json:"requested_by_id"`
	RequestedAt   time.Time  `json:"requested_at"`
}

type ThesisAssessment struct {
	ID              uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID        uuid.UUID `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	SummaryText     string    `gorm:"type:text" json:"summary_text"`
	PositivesText   string    `gorm:"type:text" json:"positives_text"`
	NegativesText   string    `gorm:"type:text" json:"negatives_text"`
	GradeSuggestion string    `gorm:"size:50" json:"grade_suggestion"`
	CreatedByID     uuid.UUID `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	PresentationStateDrafted   = "DRAFTED"
	PresentationStateScheduled = "SCHEDULED"

	PresentationTypeIntermediate = "INTERMEDIATE"
	PresentationTypeFinal        = "FINAL"
)

type ThesisPresentation struct {
	ID            uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThesisID      uuid.UUID `gorm:"type:varchar(36);index;not null" json:"thesis_id"`
	State         string    `gorm:"size:20;not null" json:"state"`
	Type          string    `gorm:"size:20;not null" json:"type"`
	Visibility    string    `gorm:"size:20;not null" json:"visibility"`
	Location      string    `gorm:"size:255" json:"location"`
	StreamURL     string    `gorm:"size:500" json:"stream_url"`
	Language      string    `gorm:"size:20" json:"language"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CalendarEvent *string   `gorm:"size:255" json:"-"`
	CreatedByID   uuid.UUID `gorm:"type:varchar(36)" json:"created_by_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Thesis) TableName() string             { return "theses" }
func (ThesisRole) TableName() string         { return "thesis_roles" }
func (ThesisStateChange) TableName() string  { return "thesis_state_changes" }
func (ThesisProposal) TableName() string     { return "thesis_proposals" }
func (ThesisFile) TableName() string         { return "thesis_files" }
func (ThesisComment) TableName() string      { return "thesis_comments" }
func (ThesisFeedback) TableName() string     { return "thesis_feedback" }
func (ThesisAssessment) TableName() string   { return "thesis_assessments" }
func (ThesisPresentation) TableName() string { return "thesis_presentations" }

func (t *Thesis) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (p *ThesisProposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (f *ThesisFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (c *ThesisComment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (f *ThesisFeedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (a *ThesisAssessment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (p *ThesisPresentation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsTerminalThesisState reports whether no further transition leaves state
func IsTerminalThesisState(state string) bool {
	return state == ThesisStateFinished || state == ThesisStateDroppedOut
}

func (t *Thesis) IsTerminal() bool {
	return IsTerminalThesisState(t.State)
}

func (t *Thesis) UsersWithRole(role string) []uuid.UUID {
	return roleUsers(len(t.Roles), func(i int) (string, int, uuid.UUID) {
		r := t.Roles[i]
		return r.Role, r.Position, r.UserID
	}, role)
}

func (t *Thesis) HasRole(userID uuid.UUID, role string) bool {
	for _, r := range t.Roles {
		if r.UserID == userID && r.Role == role {
			return true
		}
	}
	return false
}

// LatestProposal returns the most recently uploaded proposal, or nil
func (t *Thesis) LatestProposal() *ThesisProposal {
	var latest *ThesisProposal
	for i := range t.Proposals {
		p := &t.Proposals[i]
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest
}

// LatestFile returns the most recently uploaded file of the given type, or nil
func (t *Thesis) LatestFile(fileType string) *ThesisFile {
	var latest *ThesisFile
	for i := range t.Files {
		f := &t.Files[i]
		if f.Type != fileType {
			continue
		}
		if latest == nil || f.UploadedAt.After(latest.UploadedAt) {
			latest = f
		}
	}
	return latest
}

// StateEnteredAt returns when state was recorded in the state-change log
func (t *Thesis) StateEnteredAt(state string) *time.Time {
	for _, sc := range t.StateChanges {
		if sc.State == state {
			at := sc.ChangedAt
			return &at
		}
	}
	return nil
}
