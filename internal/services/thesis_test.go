package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func (f *fixture) createThesis(title string, students ...*models.User) *models.Thesis {
	f.t.Helper()
	ids := make([]uuid.UUID, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	thesis, err := f.theses.CreateThesis(context.Background(), f.advisor, &CreateThesisRequest{
		Title:         title,
		Type:          "MASTER",
		SupervisorIDs: []uuid.UUID{f.super.ID},
		AdvisorIDs:    []uuid.UUID{f.advisor.ID},
		StudentIDs:    ids,
	})
	require.NoError(f.t, err)
	return thesis
}

func stateNames(thesis *models.Thesis) []string {
	out := make([]string, 0, len(thesis.StateChanges))
	for _, c := range thesis.StateChanges {
		out = append(out, c.State)
	}
	return out
}

func TestThesisLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thesis := f.createThesis("Graph Compression", f.student)
	assert.Equal(t, models.ThesisStateProposal, thesis.State)

	_, err := f.theses.UploadProposal(ctx, f.student, thesis.ID, &Upload{Name: "proposal.pdf", Data: samplePDF})
	require.NoError(t, err)

	_, err = f.theses.AcceptProposal(ctx, f.student, thesis.ID)
	assert.Equal(t, http.StatusForbidden, appStatus(err), "students cannot accept their own proposal")
	accepted, err := f.theses.AcceptProposal(ctx, f.advisor, thesis.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStateWriting, accepted.State)

	_, err = f.theses.SubmitThesis(ctx, f.student, thesis.ID)
	assert.Equal(t, http.StatusBadRequest, appStatus(err), "nothing uploaded yet")

	_, err = f.theses.UploadThesisFile(ctx, f.student, thesis.ID, models.ThesisFileTypeThesis, &Upload{Name: "thesis.pdf", Data: samplePDF})
	require.NoError(t, err)
	submitted, err := f.theses.SubmitThesis(ctx, f.student, thesis.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStateSubmitted, submitted.State)

	_, err = f.theses.SubmitAssessment(ctx, f.advisor, thesis.ID, &AssessmentRequest{
		SummaryText: "solid", PositivesText: "clear", NegativesText: "short", GradeSuggestion: "1.3",
	})
	require.NoError(t, err)

	grade := &GradeRequest{FinalGrade: "1.3", FinalFeedback: "well done", Visibility: models.VisibilityPublic}
	_, err = f.theses.GradeThesis(ctx, f.advisor, thesis.ID, grade)
	assert.Equal(t, http.StatusForbidden, appStatus(err), "grading needs supervisor access")
	graded, err := f.theses.GradeThesis(ctx, f.super, thesis.ID, grade)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStateGraded, graded.State)

	finished, err := f.theses.CompleteThesis(ctx, f.super, thesis.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStateFinished, finished.State)

	loaded := f.reloadThesis(thesis.ID)
	assert.ElementsMatch(t, []string{
		models.ThesisStateProposal, models.ThesisStateWriting, models.ThesisStateSubmitted,
		models.ThesisStateAssessed, models.ThesisStateGraded, models.ThesisStateFinished,
	}, stateNames(loaded))
	assert.Equal(t, []string{f.student.ID.String()}, idsToStrings(f.identity.removed))

	_, err = f.theses.CloseThesis(ctx, f.super, thesis.ID)
	assert.Equal(t, http.StatusBadRequest, appStatus(err), "terminal theses stay terminal")

	_, err = f.theses.GetThesis(ctx, nil, thesis.ID)
	assert.NoError(t, err, "public finished theses are readable anonymously")
}

func TestThesisLifecycle_OrderIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thesis := f.createThesis("Graph Compression", f.student)

	_, err := f.theses.SubmitAssessment(ctx, f.advisor, thesis.ID, &AssessmentRequest{GradeSuggestion: "2.0"})
	assert.Equal(t, http.StatusBadRequest, appStatus(err))
	_, err = f.theses.GradeThesis(ctx, f.super, thesis.ID, &GradeRequest{FinalGrade: "2.0", Visibility: models.VisibilityPrivate})
	assert.Equal(t, http.StatusBadRequest, appStatus(err))
	_, err = f.theses.CompleteThesis(ctx, f.super, thesis.ID)
	assert.Equal(t, http.StatusBadRequest, appStatus(err))
	_, err = f.theses.AcceptProposal(ctx, f.advisor, thesis.ID)
	assert.Equal(t, http.StatusNotFound, appStatus(err), "no proposal uploaded")
	_, err = f.theses.UploadProposal(ctx, f.student, thesis.ID, &Upload{Name: "notes.txt", Data: []byte("plain text")})
	assert.Equal(t, http.StatusBadRequest, appStatus(err), "proposals must be PDF")
}

func TestCloseThesis_ReleasesStudentsWithoutActiveThesis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createThesis("First", f.student)
	second := f.createThesis("Second", f.student)

	closed, err := f.theses.CloseThesis(ctx, f.advisor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStateDroppedOut, closed.State)
	assert.Empty(t, f.identity.removed, "student still writes the second thesis")

	_, err = f.theses.CloseThesis(ctx, f.advisor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.student.ID.String()}, idsToStrings(f.identity.removed))
	assert.Equal(t, 2, f.notifier.count(NotifyThesisClosed))
}

func TestUpdateThesis_SyncsStudentGroups(t *testing.T) {
	f := newFixture(t)
	replacement := f.createUser("replacement", nil, models.GroupStudent)
	thesis := f.createThesis("Graph Compression", f.student)

	updated, err := f.theses.UpdateThesis(context.Background(), f.advisor, thesis.ID, &UpdateThesisRequest{
		Title:         "Graph Compression Revisited",
		Type:          "MASTER",
		Visibility:    models.VisibilityInternal,
		SupervisorIDs: []uuid.UUID{f.super.ID},
		AdvisorIDs:    []uuid.UUID{f.advisor.ID},
		StudentIDs:    []uuid.UUID{replacement.ID},
	})
	require.NoError(t, err)
	assert.True(t, updated.HasRole(replacement.ID, models.RoleStudent))
	assert.False(t, updated.HasRole(f.student.ID, models.RoleStudent))
	assert.Contains(t, idsToStrings(f.identity.added), replacement.ID.String())
	assert.Equal(t, []string{f.student.ID.String()}, idsToStrings(f.identity.removed))
}

func TestThesisGroupGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thesis := f.createThesis("Graph Compression", f.student)

	_, err := f.theses.UpdateThesisInfo(ctx, f.outsider, thesis.ID, &UpdateThesisInfoRequest{Abstract: "x"})
	assert.Equal(t, http.StatusForbidden, appStatus(err))

	_, err = f.groupSvc.ArchiveResearchGroup(ctx, f.admin, f.group.ID, true)
	require.NoError(t, err)
	_, err = f.theses.UpdateThesisInfo(ctx, f.advisor, thesis.ID, &UpdateThesisInfoRequest{Abstract: "x"})
	assert.Equal(t, http.StatusForbidden, appStatus(err), "archived groups are read-only for members")
	_, err = f.theses.UpdateThesisInfo(ctx, f.admin, thesis.ID, &UpdateThesisInfoRequest{Abstract: "x"})
	assert.NoError(t, err, "admins bypass the group guard")
}

func TestRecordState_KeepsFirstTimestamp(t *testing.T) {
	f := newFixture(t)
	thesis := f.createThesis("Graph Compression", f.student)
	later := f.now.Add(48 * time.Hour)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, thesis, models.ThesisStateProposal, later)
	})
	require.NoError(t, err)

	loaded := f.reloadThesis(thesis.ID)
	require.Len(t, loaded.StateChanges, 1)
	assert.True(t, loaded.StateChanges[0].ChangedAt.Equal(f.now))
}

func TestPresentation_ScheduleCreatesCalendarEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setSettings(false, 8, false)
	thesis := f.createThesis("Graph Compression", f.student)
	require.Equal(t, models.ThesisStateWriting, thesis.State)

	withPresentation, err := f.theses.CreatePresentation(ctx, f.student, thesis.ID, &PresentationRequest{
		Type:        models.PresentationTypeFinal,
		Visibility:  models.VisibilityPublic,
		Location:    "Room 01.07.014",
		ScheduledAt: f.now.Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, withPresentation.Presentations, 1)
	presentationID := withPresentation.Presentations[0].ID

	_, err = f.theses.SchedulePresentation(ctx, f.student, thesis.ID, presentationID, true)
	assert.Equal(t, http.StatusForbidden, appStatus(err))
	_, err = f.theses.SchedulePresentation(ctx, f.advisor, thesis.ID, presentationID, true)
	require.NoError(t, err)
	require.Len(t, f.calendar.created, 1)

	loaded := f.reloadThesis(thesis.ID)
	require.NotNil(t, loaded.Presentations[0].CalendarEvent)
	assert.Equal(t, "event-1", *loaded.Presentations[0].CalendarEvent)

	_, err = f.theses.DeletePresentation(ctx, f.advisor, thesis.ID, presentationID)
	require.NoError(t, err)
	assert.Equal(t, []string{"event-1"}, f.calendar.deleted)
}
