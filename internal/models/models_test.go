package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTopicState(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		topic    Topic
		expected string
	}{
		{name: "unpublished", topic: Topic{}, expected: TopicStateDraft},
		{name: "published", topic: Topic{PublishedAt: &now}, expected: TopicStateOpen},
		{name: "closed wins over published", topic: Topic{PublishedAt: &now, ClosedAt: &now}, expected: TopicStateClosed},
		{name: "closed draft", topic: Topic{ClosedAt: &now}, expected: TopicStateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.topic.State(); got != tt.expected {
				t.Errorf("State() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestThesisUsersWithRole_PositionOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	thesis := Thesis{Roles: []ThesisRole{
		{UserID: b, Role: RoleAdvisor, Position: 1},
		{UserID: c, Role: RoleSupervisor, Position: 0},
		{UserID: a, Role: RoleAdvisor, Position: 0},
	}}

	advisors := thesis.UsersWithRole(RoleAdvisor)
	if len(advisors) != 2 || advisors[0] != a || advisors[1] != b {
		t.Errorf("UsersWithRole(ADVISOR) = %v, expected [%s %s]", advisors, a, b)
	}
	if !thesis.HasRole(c, RoleSupervisor) {
		t.Error("expected supervisor binding")
	}
	if thesis.HasRole(c, RoleAdvisor) {
		t.Error("supervisor binding should not imply advisor binding")
	}
}

func TestThesisLatestProposalAndFile(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	thesis := Thesis{
		Proposals: []ThesisProposal{
			{UploadName: "first.pdf", CreatedAt: base},
			{UploadName: "second.pdf", CreatedAt: base.Add(time.Hour)},
		},
		Files: []ThesisFile{
			{Type: ThesisFileTypeThesis, UploadName: "draft.pdf", UploadedAt: base},
			{Type: ThesisFileTypePresentation, UploadName: "slides.pdf", UploadedAt: base.Add(2 * time.Hour)},
		},
	}

	if p := thesis.LatestProposal(); p == nil || p.UploadName != "second.pdf" {
		t.Errorf("LatestProposal() = %+v, expected second.pdf", p)
	}
	if f := thesis.LatestFile(ThesisFileTypeThesis); f == nil || f.UploadName != "draft.pdf" {
		t.Errorf("LatestFile(THESIS) = %+v, expected draft.pdf", f)
	}
	if f := thesis.LatestFile(ThesisFileTypeAttachment); f != nil {
		t.Errorf("LatestFile(ATTACHMENT) = %+v, expected nil", f)
	}
	if (&Thesis{}).LatestProposal() != nil {
		t.Error("LatestProposal() on empty thesis should be nil")
	}
}

func TestIsTerminalThesisState(t *testing.T) {
	for _, state := range []string{ThesisStateFinished, ThesisStateDroppedOut} {
		if !IsTerminalThesisState(state) {
			t.Errorf("%s should be terminal", state)
		}
	}
	for _, state := range []string{ThesisStateProposal, ThesisStateWriting, ThesisStateSubmitted, ThesisStateAssessed, ThesisStateGraded} {
		if IsTerminalThesisState(state) {
			t.Errorf("%s should not be terminal", state)
		}
	}
}

func TestUserGroups(t *testing.T) {
	groupID := uuid.New()
	user := User{
		ResearchGroupID: &groupID,
		Groups:          []UserGroup{{Group: GroupAdvisor}},
	}

	if !user.IsStaff() {
		t.Error("advisor should be staff")
	}
	if user.IsAdmin() {
		t.Error("advisor should not be admin")
	}
	if !user.InResearchGroup(groupID) || user.InResearchGroup(uuid.New()) {
		t.Error("InResearchGroup mismatch")
	}
	if (&User{}).InResearchGroup(groupID) {
		t.Error("user without research group belongs to none")
	}
}
