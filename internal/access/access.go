// Package access evaluates what an actor may do with topics, applications and theses.
//
// Every entity type maps an actor to one ordered capability Level. Higher levels
// include all lower ones, so a supervisor passes advisor and student checks and an
// admin passes everything. The predicates never fail; AssertCanAccessResearchGroup
// is the only function returning an error.
package access

import (
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
)

type Level int

const (
	None Level = iota
	Read
	Student
	Advisor
	Supervisor
	Admin
)

func (l Level) String() string {
	switch l {
	case Read:
		return "read"
	case Student:
		return "student"
	case Advisor:
		return "advisor"
	case Supervisor:
		return "supervisor"
	case Admin:
		return "admin"
	default:
		return "none"
	}
}

func isArchived(group *models.ResearchGroup) bool {
	return group != nil && group.Archived
}

func isGroupAdminOf(actor *models.User, group *models.ResearchGroup) bool {
	return group != nil && actor.HasGroup(models.GroupGroupAdmin) && actor.InResearchGroup(group.ID)
}

// ThesisLevel returns the capability of actor on thesis. Roles and ResearchGroup must be loaded.
func ThesisLevel(actor *models.User, thesis *models.Thesis) Level {
	publicFinished := thesis.Visibility == models.VisibilityPublic && thesis.State == models.ThesisStateFinished

	if actor == nil {
		if publicFinished {
			return Read
		}
		return None
	}
	if actor.IsAdmin() {
		return Admin
	}
	if isArchived(thesis.ResearchGroup) {
		if publicFinished {
			return Read
		}
		return None
	}

	level := None
	switch {
	case thesis.HasRole(actor.ID, models.RoleSupervisor):
		level = Supervisor
	case thesis.HasRole(actor.ID, models.RoleAdvisor):
		level = Advisor
	case thesis.HasRole(actor.ID, models.RoleStudent):
		level = Student
	}
	if level < Supervisor && isGroupAdminOf(actor, thesis.ResearchGroup) {
		level = Supervisor
	}
	if level == None && thesisVisibleTo(actor, thesis) {
		level = Read
	}
	return level
}

func thesisVisibleTo(actor *models.User, thesis *models.Thesis) bool {
	switch thesis.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityStudent:
		return actor.HasAnyGroup(models.GroupStudent, models.GroupAdvisor, models.GroupSupervisor)
	case models.VisibilityInternal:
		return actor.IsStaff()
	}
	return false
}

// TopicLevel returns the capability of actor on topic. Roles and ResearchGroup must be loaded.
func TopicLevel(actor *models.User, topic *models.Topic) Level {
	published := topic.PublishedAt != nil

	if actor == nil {
		if published && !isArchived(topic.ResearchGroup) {
			return Read
		}
		return None
	}
	if actor.IsAdmin() {
		return Admin
	}
	if isArchived(topic.ResearchGroup) {
		return None
	}

	level := None
	switch {
	case topic.HasRole(actor.ID, models.RoleSupervisor):
		level = Supervisor
	case topic.HasRole(actor.ID, models.RoleAdvisor):
		level = Advisor
	}
	if level < Supervisor && isGroupAdminOf(actor, topic.ResearchGroup) {
		level = Supervisor
	}
	if level == None {
		if published || (actor.IsStaff() && actor.InResearchGroup(topic.ResearchGroupID)) {
			level = Read
		}
	}
	return level
}

// ApplicationLevel returns the capability of actor on application. ResearchGroup must be loaded.
func ApplicationLevel(actor *models.User, application *models.Application) Level {
	if actor == nil {
		return None
	}
	if actor.IsAdmin() {
		return Admin
	}
	if isArchived(application.ResearchGroup) {
		return None
	}

	level := None
	if actor.InResearchGroup(application.ResearchGroupID) {
		switch {
		case actor.HasAnyGroup(models.GroupSupervisor, models.GroupGroupAdmin):
			level = Supervisor
		case actor.HasGroup(models.GroupAdvisor):
			level = Advisor
		}
	}
	if level == None && application.UserID == actor.ID {
		level = Student
	}
	return level
}

func HasThesisReadAccess(thesis *models.Thesis, actor *models.User) bool {
	return ThesisLevel(actor, thesis) >= Read
}

func HasThesisStudentAccess(thesis *models.Thesis, actor *models.User) bool {
	return ThesisLevel(actor, thesis) >= Student
}

func HasThesisAdvisorAccess(thesis *models.Thesis, actor *models.User) bool {
	return ThesisLevel(actor, thesis) >= Advisor
}

func HasThesisSupervisorAccess(thesis *models.Thesis, actor *models.User) bool {
	return ThesisLevel(actor, thesis) >= Supervisor
}

func HasTopicReadAccess(topic *models.Topic, actor *models.User) bool {
	return TopicLevel(actor, topic) >= Read
}

func HasTopicAdvisorAccess(topic *models.Topic, actor *models.User) bool {
	return TopicLevel(actor, topic) >= Advisor
}

func HasApplicationReadAccess(application *models.Application, actor *models.User) bool {
	return ApplicationLevel(actor, application) >= Student
}

// HasManagementAccess is group-based: staff manage applications and topics as a group,
// independent of named role bindings.
func HasManagementAccess(actor *models.User) bool {
	return actor != nil && actor.HasAnyGroup(models.GroupAdmin, models.GroupAdvisor, models.GroupSupervisor)
}

// bypassesGroupCheck covers anonymous actors, admins and students acting on their own behalf
func bypassesGroupCheck(actor *models.User) bool {
	if actor == nil || actor.IsAdmin() {
		return true
	}
	return actor.HasGroup(models.GroupStudent) && !actor.IsStaff()
}

// CanAccessResearchGroup reports whether actor may mutate entities owned by group
func CanAccessResearchGroup(actor *models.User, group *models.ResearchGroup) bool {
	if bypassesGroupCheck(actor) {
		return true
	}
	if group == nil || group.Archived {
		return false
	}
	return actor.InResearchGroup(group.ID)
}

// AssertCanAccessResearchGroup is called at the start of every mutating workflow operation
func AssertCanAccessResearchGroup(actor *models.User, group *models.ResearchGroup) error {
	if !CanAccessResearchGroup(actor, group) {
		return response.NewForbidden("you do not have access to this research group")
	}
	return nil
}

// Require returns a forbidden error unless have reaches need
func Require(have, need Level, what string) error {
	if have < need {
		return response.NewForbidden("you do not have " + need.String() + " access to this " + what)
	}
	return nil
}
