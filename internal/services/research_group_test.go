package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestCreateResearchGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &ResearchGroupRequest{Name: "Data Engineering", Abbreviation: "de", HeadID: &f.super.ID}

	_, err := f.groupSvc.CreateResearchGroup(ctx, f.super, req)
	assert.Equal(t, http.StatusForbidden, appStatus(err))

	group, err := f.groupSvc.CreateResearchGroup(ctx, f.admin, req)
	require.NoError(t, err)
	assert.Equal(t, "DE", group.Abbreviation)
	require.NotNil(t, group.Settings)
	assert.True(t, group.Settings.ProposalPhaseActive)

	head, err := loadUser(f.db, f.super.ID)
	require.NoError(t, err)
	assert.True(t, head.InResearchGroup(group.ID), "the head joins the group")

	_, err = f.groupSvc.CreateResearchGroup(ctx, f.admin, req)
	assert.Equal(t, http.StatusConflict, appStatus(err))

	_, err = f.groupSvc.CreateResearchGroup(ctx, f.admin, &ResearchGroupRequest{Name: "X", Abbreviation: "X", HeadID: &f.advisor.ID})
	assert.Equal(t, http.StatusBadRequest, appStatus(err), "the head must be a supervisor")
}

func TestUpdateResearchGroup_GroupAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	groupAdmin := f.createUser("groupadmin", &f.group.ID, models.GroupGroupAdmin)
	req := &ResearchGroupRequest{Name: "Applied Education", Abbreviation: "AET"}

	updated, err := f.groupSvc.UpdateResearchGroup(ctx, groupAdmin, f.group.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Applied Education", updated.Name)

	_, err = f.groupSvc.UpdateResearchGroup(ctx, groupAdmin, f.otherTeam.ID, req)
	assert.Equal(t, http.StatusForbidden, appStatus(err))
	_, err = f.groupSvc.UpdateResearchGroup(ctx, f.advisor, f.group.ID, req)
	assert.Equal(t, http.StatusForbidden, appStatus(err))
}

func TestUpdateSettings_WritesFalseValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, err := f.groupSvc.UpdateSettings(ctx, f.admin, f.group.ID, &ResearchGroupSettingsRequest{
		AutomaticRejectEnabled: boolPtr(true),
		RejectDuration:         intPtr(3),
		ProposalPhaseActive:    boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, settings.ProposalPhaseActive)

	stored, err := groupSettings(f.db, f.group.ID)
	require.NoError(t, err)
	assert.True(t, stored.AutomaticRejectEnabled)
	assert.Equal(t, 3, stored.RejectDuration)
	assert.False(t, stored.ProposalPhaseActive)

	_, err = f.groupSvc.UpdateSettings(ctx, f.admin, f.group.ID, &ResearchGroupSettingsRequest{RejectDuration: intPtr(1)})
	assert.Equal(t, http.StatusBadRequest, appStatus(err))
	_, err = f.groupSvc.UpdateSettings(ctx, f.super, f.group.ID, &ResearchGroupSettingsRequest{ProposalPhaseActive: boolPtr(true)})
	assert.Equal(t, http.StatusForbidden, appStatus(err))

	_, err = f.groupSvc.GetSettings(ctx, f.advisor, f.group.ID)
	assert.NoError(t, err, "group staff can read the settings")
	_, err = f.groupSvc.GetSettings(ctx, f.outsider, f.group.ID)
	assert.Equal(t, http.StatusForbidden, appStatus(err))
}

func TestUpdateSettings_ProposalPhaseOffStartsInWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groupSvc.UpdateSettings(ctx, f.admin, f.group.ID, &ResearchGroupSettingsRequest{
		ProposalPhaseActive: boolPtr(false),
	})
	require.NoError(t, err)

	var stored models.ResearchGroupSetting
	require.NoError(t, f.db.First(&stored, "research_group_id = ?", f.group.ID).Error)
	assert.False(t, stored.ProposalPhaseActive)
	assert.Equal(t, 8, stored.RejectDuration, "untouched fields keep their values")

	app := f.apply(f.student, f.openTopic("Graph Compression", nil))
	_, err = f.apps.AcceptApplication(ctx, f.super, app.ID, &AcceptApplicationRequest{})
	require.NoError(t, err)

	var thesis models.Thesis
	require.NoError(t, f.db.Where("application_id = ?", app.ID).First(&thesis).Error)
	assert.Equal(t, models.ThesisStateWriting, thesis.State)
}

func TestUpdateSettings_CreatesMissingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Where("research_group_id = ?", f.group.ID).Delete(&models.ResearchGroupSetting{}).Error)

	_, err := f.groupSvc.UpdateSettings(ctx, f.admin, f.group.ID, &ResearchGroupSettingsRequest{
		ProposalPhaseActive: boolPtr(false),
	})
	require.NoError(t, err)

	stored, err := groupSettings(f.db, f.group.ID)
	require.NoError(t, err)
	assert.False(t, stored.ProposalPhaseActive)
	assert.False(t, stored.AutomaticRejectEnabled)
	assert.Equal(t, 8, stored.RejectDuration)
}

func TestArchiveResearchGroup_HidesGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.groupSvc.ArchiveResearchGroup(ctx, f.super, f.group.ID, true)
	assert.Equal(t, http.StatusForbidden, appStatus(err))
	archived, err := f.groupSvc.ArchiveResearchGroup(ctx, f.admin, f.group.ID, true)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	list, err := f.groupSvc.ListResearchGroups(ctx, f.student, &ResearchGroupListParams{IncludeArchived: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total, "archived groups are listed for admins only")
	list, err = f.groupSvc.ListResearchGroups(ctx, f.admin, &ResearchGroupListParams{IncludeArchived: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	_, err = f.groupSvc.GetResearchGroup(ctx, f.student, f.group.ID)
	assert.Equal(t, http.StatusNotFound, appStatus(err))
	_, err = f.groupSvc.GetResearchGroup(ctx, f.admin, f.group.ID)
	assert.NoError(t, err)
}

func TestResearchGroupMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newcomer := f.createUser("newcomer", nil, models.GroupAdvisor)

	user, err := f.groupSvc.AssignMember(ctx, f.admin, f.group.ID, newcomer.ID)
	require.NoError(t, err)
	assert.True(t, user.InResearchGroup(f.group.ID))

	groupAdmin := f.createUser("groupadmin", &f.group.ID, models.GroupGroupAdmin)
	_, err = f.groupSvc.AssignMember(ctx, groupAdmin, f.group.ID, f.outsider.ID)
	assert.Equal(t, http.StatusConflict, appStatus(err), "members of another group are not moved by group admins")

	members, err := f.groupSvc.ListMembers(ctx, f.advisor, f.group.ID)
	require.NoError(t, err)
	assert.Len(t, members, 4)

	require.NoError(t, f.groupSvc.RemoveMember(ctx, groupAdmin, f.group.ID, newcomer.ID))
	err = f.groupSvc.RemoveMember(ctx, groupAdmin, f.group.ID, newcomer.ID)
	assert.Equal(t, http.StatusNotFound, appStatus(err))
}
