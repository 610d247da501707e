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

type ThesisService struct {
	db   *gorm.DB
	deps *WorkflowDeps
}

func NewThesisService(db *gorm.DB, deps *WorkflowDeps) *ThesisService {
	return &ThesisService{db: db, deps: deps.withDefaults()}
}

type CreateThesisRequest struct {
	Title           string      `json:"title" binding:"required"`
	Type            string      `json:"type" binding:"required"`
	Language        string      `json:"language"`
	SupervisorIDs   []uuid.UUID `json:"supervisor_ids"`
	AdvisorIDs      []uuid.UUID `json:"advisor_ids"`
	StudentIDs      []uuid.UUID `json:"student_ids"`
	ResearchGroupID *uuid.UUID  `json:"research_group_id"`
}

type UpdateThesisInfoRequest struct {
	Abstract string `json:"abstract"`
	Info     string `json:"info"`
}

type UpdateThesisRequest struct {
	Title         string      `json:"title" binding:"required"`
	Type          string      `json:"type" binding:"required"`
	Language      string      `json:"language"`
	Visibility    string      `json:"visibility" binding:"required"`
	Keywords      []string    `json:"keywords"`
	StartDate     *time.Time  `json:"start_date"`
	EndDate       *time.Time  `json:"end_date"`
	SupervisorIDs []uuid.UUID `json:"supervisor_ids"`
	AdvisorIDs    []uuid.UUID `json:"advisor_ids"`
	StudentIDs    []uuid.UUID `json:"student_ids"`
}

type ThesisListParams struct {
	States          []string
	ResearchGroupID *uuid.UUID
	Search          string
	// OnlyOwn limits the list to theses the actor holds a role on
	OnlyOwn  bool
	Page     int
	PageSize int
}

type ThesisListResponse struct {
	Items []models.Thesis `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
}

type thesisParams struct {
	Title           string
	Type            string
	Language        string
	Roles           RoleAssignment
	ResearchGroupID uuid.UUID
	ApplicationID   *uuid.UUID
}

// mutation is the body of a thesis operation, run inside the transaction after access checks
type mutation func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error

// mutate loads the thesis, applies the group guard and the level check, then runs fn.
// Side effects run after commit; rollback hooks run if the transaction fails.
func (s *ThesisService) mutate(ctx context.Context, actor *models.User, id uuid.UUID, need access.Level, fn mutation) (*models.Thesis, error) {
	now := s.deps.Now()
	fx := &sideEffects{}
	var thesis *models.Thesis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		thesis, err = loadThesis(tx, id)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, thesis.ResearchGroup); err != nil {
			return err
		}
		if err := access.Require(access.ThesisLevel(actor, thesis), need, "thesis"); err != nil {
			return err
		}
		return fn(tx, thesis, fx, now)
	})
	if err != nil {
		fx.rollback(ctx)
		return nil, err
	}
	fx.run(ctx)
	return thesis, nil
}

func validateThesisBasics(title, thesisType string) error {
	if strings.TrimSpace(title) == "" {
		return invalid("thesis title is required")
	}
	if err := checkLength("title", title, maxTitleLength); err != nil {
		return err
	}
	if strings.TrimSpace(thesisType) == "" {
		return invalid("thesis type is required")
	}
	return nil
}

// CreateThesis opens a thesis directly, without an application
func (s *ThesisService) CreateThesis(ctx context.Context, actor *models.User, req *CreateThesisRequest) (*models.Thesis, error) {
	if !access.HasManagementAccess(actor) {
		return nil, forbidden("you are not allowed to create theses")
	}
	groupID := req.ResearchGroupID
	if groupID == nil {
		groupID = actor.ResearchGroupID
	}
	if groupID == nil {
		return nil, invalid("research group is required")
	}

	now := s.deps.Now()
	fx := &sideEffects{}
	var thesis *models.Thesis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := loadResearchGroup(tx, *groupID)
		if err != nil {
			return err
		}
		if err := access.AssertCanAccessResearchGroup(actor, group); err != nil {
			return err
		}

		thesis, err = createThesisTx(tx, actor, thesisParams{
			Title:           req.Title,
			Type:            req.Type,
			Language:        req.Language,
			ResearchGroupID: group.ID,
			Roles: RoleAssignment{
				Supervisors: req.SupervisorIDs,
				Advisors:    req.AdvisorIDs,
				Students:    req.StudentIDs,
			},
		}, s.deps, fx, now)
		if err != nil {
			return err
		}
		thesis.ResearchGroup = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	fx.run(ctx)
	return thesis, nil
}

// createThesisTx inserts a thesis in PROPOSAL, or WRITING when the group skips the proposal phase
func createThesisTx(tx *gorm.DB, actor *models.User, p thesisParams, deps *WorkflowDeps, fx *sideEffects, now time.Time) (*models.Thesis, error) {
	if err := validateThesisBasics(p.Title, p.Type); err != nil {
		return nil, err
	}

	settings, err := groupSettings(tx, p.ResearchGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group settings: %w", err)
	}
	state := models.ThesisStateProposal
	if !settings.ProposalPhaseActive {
		state = models.ThesisStateWriting
	}

	thesis := &models.Thesis{
		Title:           strings.TrimSpace(p.Title),
		Type:            p.Type,
		Language:        p.Language,
		Visibility:      models.VisibilityPrivate,
		Keywords:        datatypes.JSONSlice[string]{},
		State:           state,
		ApplicationID:   p.ApplicationID,
		ResearchGroupID: p.ResearchGroupID,
	}
	if err := tx.Omit(clause.Associations).Create(thesis).Error; err != nil {
		return nil, fmt.Errorf("failed to create thesis: %w", err)
	}
	if err := assignThesisRoles(tx, actor, thesis, p.Roles, now); err != nil {
		return nil, err
	}
	if err := recordStateTx(tx, thesis, state, now); err != nil {
		return nil, err
	}

	for _, r := range thesis.Roles {
		if r.Role != models.RoleStudent || r.User == nil {
			continue
		}
		student := r.User
		fx.add("add student group", func(ctx context.Context) error {
			return deps.Identity.AddStudentGroup(ctx, student)
		})
	}
	fx.notify(deps.Notifier, thesisNotification(NotifyThesisCreated, thesis, actor, "A new thesis was created", now))
	return thesis, nil
}

// recordStateTx keeps one state-change record per (thesis, state); re-entering a state keeps the first timestamp
func recordStateTx(tx *gorm.DB, thesis *models.Thesis, state string, now time.Time) error {
	change := models.ThesisStateChange{ThesisID: thesis.ID, State: state, ChangedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thesis_id"}, {Name: "state"}},
		DoNothing: true,
	}).Create(&change).Error
	if err != nil {
		return fmt.Errorf("failed to record state change: %w", err)
	}

	for _, existing := range thesis.StateChanges {
		if existing.State == state {
			return nil
		}
	}
	thesis.StateChanges = append(thesis.StateChanges, change)
	return nil
}

// transitionTx moves the thesis to state and records the change
func transitionTx(tx *gorm.DB, thesis *models.Thesis, state string, now time.Time) error {
	if err := tx.Model(thesis).Omit(clause.Associations).Updates(map[string]interface{}{"state": state}).Error; err != nil {
		return fmt.Errorf("failed to update thesis state: %w", err)
	}
	thesis.State = state
	return recordStateTx(tx, thesis, state, now)
}

// releaseStudentsTx schedules student-group removal for students left without an active thesis
func releaseStudentsTx(tx *gorm.DB, students []*models.User, identity IdentitySynchronizer, fx *sideEffects) error {
	for _, student := range students {
		var active int64
		err := tx.Model(&models.Thesis{}).
			Where("state NOT IN ?", []string{models.ThesisStateFinished, models.ThesisStateDroppedOut}).
			Where("id IN (?)", tx.Model(&models.ThesisRole{}).Select("thesis_id").
				Where("user_id = ? AND role = ?", student.ID, models.RoleStudent)).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("failed to count active theses: %w", err)
		}
		if active > 0 {
			continue
		}
		u := student
		fx.add("remove student group", func(ctx context.Context) error {
			return identity.RemoveStudentGroup(ctx, u)
		})
	}
	return nil
}

func thesisStudents(thesis *models.Thesis) []*models.User {
	var out []*models.User
	for _, r := range thesis.Roles {
		if r.Role == models.RoleStudent && r.User != nil {
			out = append(out, r.User)
		}
	}
	return out
}

func (s *ThesisService) UpdateThesisInfo(ctx context.Context, actor *models.User, id uuid.UUID, req *UpdateThesisInfoRequest) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		err := tx.Model(thesis).Omit(clause.Associations).Updates(map[string]interface{}{
			"abstract": req.Abstract,
			"info":     req.Info,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update thesis info: %w", err)
		}
		thesis.Abstract = req.Abstract
		thesis.Info = req.Info
		return nil
	})
}

// UpdateThesis edits the thesis metadata and replaces its role bindings
func (s *ThesisService) UpdateThesis(ctx context.Context, actor *models.User, id uuid.UUID, req *UpdateThesisRequest) (*models.Thesis, error) {
	if err := validateThesisBasics(req.Title, req.Type); err != nil {
		return nil, err
	}
	if !contains(models.ThesisVisibilities, req.Visibility) {
		return nil, invalid("invalid thesis visibility")
	}
	if (req.StartDate == nil) != (req.EndDate == nil) {
		return nil, invalid("start and end date must be set together")
	}
	if req.StartDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, invalid("start date must not be after the end date")
	}

	return s.mutate(ctx, actor, id, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		previous := thesisStudents(thesis)

		err := tx.Model(thesis).Omit(clause.Associations).Updates(map[string]interface{}{
			"title":      strings.TrimSpace(req.Title),
			"type":       req.Type,
			"language":   req.Language,
			"visibility": req.Visibility,
			"keywords":   datatypes.JSONSlice[string](req.Keywords),
			"start_date": req.StartDate,
			"end_date":   req.EndDate,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update thesis: %w", err)
		}
		thesis.Title = strings.TrimSpace(req.Title)
		thesis.Type = req.Type
		thesis.Language = req.Language
		thesis.Visibility = req.Visibility
		thesis.Keywords = req.Keywords
		thesis.StartDate = req.StartDate
		thesis.EndDate = req.EndDate

		err = assignThesisRoles(tx, actor, thesis, RoleAssignment{
			Supervisors: req.SupervisorIDs,
			Advisors:    req.AdvisorIDs,
			Students:    req.StudentIDs,
		}, now)
		if err != nil {
			return err
		}

		if thesis.IsTerminal() {
			return nil
		}
		var removed []*models.User
		for _, student := range previous {
			if !thesis.HasRole(student.ID, models.RoleStudent) {
				removed = append(removed, student)
			}
		}
		for _, student := range thesisStudents(thesis) {
			found := false
			for _, p := range previous {
				if p.ID == student.ID {
					found = true
					break
				}
			}
			if !found {
				u := student
				fx.add("add student group", func(ctx context.Context) error {
					return s.deps.Identity.AddStudentGroup(ctx, u)
				})
			}
		}
		return releaseStudentsTx(tx, removed, s.deps.Identity, fx)
	})
}

// SubmitThesis hands in the thesis; a THESIS file must have been uploaded
func (s *ThesisService) SubmitThesis(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateWriting {
			return invalid("thesis can only be submitted while writing")
		}
		if thesis.LatestFile(models.ThesisFileTypeThesis) == nil {
			return invalid("no thesis file uploaded")
		}
		if err := transitionTx(tx, thesis, models.ThesisStateSubmitted, now); err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyThesisSubmitted, thesis, actor, "The thesis was submitted", now,
			models.RoleAdvisor, models.RoleSupervisor))
		return nil
	})
}

type AssessmentRequest struct {
	SummaryText     string `json:"summary_text" binding:"required"`
	PositivesText   string `json:"positives_text" binding:"required"`
	NegativesText   string `json:"negatives_text" binding:"required"`
	GradeSuggestion string `json:"grade_suggestion" binding:"required"`
}

// SubmitAssessment stores the advisor's assessment and moves SUBMITTED to ASSESSED
func (s *ThesisService) SubmitAssessment(ctx context.Context, actor *models.User, id uuid.UUID, req *AssessmentRequest) (*models.Thesis, error) {
	if strings.TrimSpace(req.GradeSuggestion) == "" {
		return nil, invalid("grade suggestion is required")
	}
	return s.mutate(ctx, actor, id, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateSubmitted {
			return invalid("thesis can only be assessed after submission")
		}
		assessment := models.ThesisAssessment{
			ThesisID:        thesis.ID,
			SummaryText:     req.SummaryText,
			PositivesText:   req.PositivesText,
			NegativesText:   req.NegativesText,
			GradeSuggestion: strings.TrimSpace(req.GradeSuggestion),
			CreatedByID:     actor.ID,
		}
		if err := tx.Create(&assessment).Error; err != nil {
			return fmt.Errorf("failed to save assessment: %w", err)
		}
		thesis.Assessments = append(thesis.Assessments, assessment)

		if err := transitionTx(tx, thesis, models.ThesisStateAssessed, now); err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyAssessmentAdded, thesis, actor, "An assessment was added", now,
			models.RoleSupervisor))
		return nil
	})
}

type GradeRequest struct {
	FinalGrade    string `json:"final_grade" binding:"required"`
	FinalFeedback string `json:"final_feedback"`
	Visibility    string `json:"visibility" binding:"required"`
}

// GradeThesis records the final grade and moves ASSESSED to GRADED
func (s *ThesisService) GradeThesis(ctx context.Context, actor *models.User, id uuid.UUID, req *GradeRequest) (*models.Thesis, error) {
	if strings.TrimSpace(req.FinalGrade) == "" {
		return nil, invalid("final grade is required")
	}
	if !contains(models.ThesisVisibilities, req.Visibility) {
		return nil, invalid("invalid thesis visibility")
	}
	return s.mutate(ctx, actor, id, access.Supervisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateAssessed {
			return invalid("thesis can only be graded after the assessment")
		}
		grade := strings.TrimSpace(req.FinalGrade)
		feedback := req.FinalFeedback
		err := tx.Model(thesis).Omit(clause.Associations).Updates(map[string]interface{}{
			"final_grade":    grade,
			"final_feedback": feedback,
			"visibility":     req.Visibility,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to save grade: %w", err)
		}
		thesis.FinalGrade = &grade
		thesis.FinalFeedback = &feedback
		thesis.Visibility = req.Visibility

		if err := transitionTx(tx, thesis, models.ThesisStateGraded, now); err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyFinalGradeAvailable, thesis, actor, "The final grade is available", now))
		return nil
	})
}

// CompleteThesis moves GRADED to FINISHED
func (s *ThesisService) CompleteThesis(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Supervisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateGraded {
			return invalid("thesis can only be completed after grading")
		}
		if err := transitionTx(tx, thesis, models.ThesisStateFinished, now); err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyThesisFinished, thesis, actor, "The thesis was completed", now))
		return releaseStudentsTx(tx, thesisStudents(thesis), s.deps.Identity, fx)
	})
}

// CloseThesis drops a thesis from any non-terminal state
func (s *ThesisService) CloseThesis(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.IsTerminal() {
			return invalid("thesis is already completed")
		}
		if err := transitionTx(tx, thesis, models.ThesisStateDroppedOut, now); err != nil {
			return err
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyThesisClosed, thesis, actor, "The thesis was closed", now))
		return releaseStudentsTx(tx, thesisStudents(thesis), s.deps.Identity, fx)
	})
}

func (s *ThesisService) GetThesis(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error) {
	thesis, err := loadThesis(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !access.HasThesisReadAccess(thesis, actor) {
		return nil, forbidden("you do not have access to this thesis")
	}
	return thesis, nil
}

// ListTheses returns the theses visible to actor
func (s *ThesisService) ListTheses(ctx context.Context, actor *models.User, params *ThesisListParams) (*ThesisListResponse, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Thesis{})

	publicFinished := db.Where("visibility = ? AND state = ?", models.VisibilityPublic, models.ThesisStateFinished)
	switch {
	case actor == nil:
		query = query.Where(publicFinished)
	case actor.IsAdmin() && !params.OnlyOwn:
	default:
		own := db.Model(&models.ThesisRole{}).Select("thesis_id").Where("user_id = ?", actor.ID)
		if params.OnlyOwn {
			query = query.Where("id IN (?)", own)
			break
		}
		visible := db.Where("id IN (?)", own).Or(publicFinished)
		if actor.HasGroup(models.GroupGroupAdmin) && actor.ResearchGroupID != nil {
			visible = visible.Or("research_group_id = ?", *actor.ResearchGroupID)
		}
		if actor.IsStaff() {
			visible = visible.Or("visibility IN ?", []string{models.VisibilityPublic, models.VisibilityStudent, models.VisibilityInternal})
		} else if actor.HasGroup(models.GroupStudent) {
			visible = visible.Or("visibility IN ?", []string{models.VisibilityPublic, models.VisibilityStudent})
		}
		activeGroups := db.Model(&models.ResearchGroup{}).Select("id").Where("archived = ?", false)
		query = query.Where(visible).
			Where(db.Where("research_group_id IN (?)", activeGroups).Or(publicFinished))
	}

	if len(params.States) > 0 {
		query = query.Where("state IN ?", params.States)
	}
	if params.ResearchGroupID != nil {
		query = query.Where("research_group_id = ?", *params.ResearchGroupID)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count theses: %w", err)
	}

	var items []models.Thesis
	err := query.
		Preload("Roles", byPosition).
		Preload("Roles.User").
		Preload("StateChanges").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list theses: %w", err)
	}
	return &ThesisListResponse{Items: items, Total: total, Page: page}, nil
}
