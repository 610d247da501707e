package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleAssignment lists the users per role in display order
type RoleAssignment struct {
	Supervisors []uuid.UUID `json:"supervisor_ids"`
	Advisors    []uuid.UUID `json:"advisor_ids"`
	Students    []uuid.UUID `json:"student_ids,omitempty"`
}

type resolvedRole struct {
	role  string
	users []models.User
}

// resolveRoleUsers loads ids in the given order and checks that every user holds a group
// eligible for role. Missing or duplicate ids are rejected.
func resolveRoleUsers(tx *gorm.DB, ids []uuid.UUID, role string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := tx.Preload("Groups").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s users: %w", role, err)
	}
	if len(users) != len(ids) {
		return nil, invalid("not all selected users were found")
	}

	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u := byID[id]
		switch role {
		case models.RoleSupervisor:
			if !u.HasGroup(models.GroupSupervisor) {
				return nil, invalid(fmt.Sprintf("%s is not eligible to be a supervisor", u.Username))
			}
		case models.RoleAdvisor:
			if !u.HasAnyGroup(models.GroupAdvisor, models.GroupSupervisor) {
				return nil, invalid(fmt.Sprintf("%s is not eligible to be an advisor", u.Username))
			}
		}
		ordered = append(ordered, u)
	}
	return ordered, nil
}

func resolveAssignment(tx *gorm.DB, a RoleAssignment, withStudents bool) ([]resolvedRole, error) {
	if len(a.Supervisors) == 0 || len(a.Advisors) == 0 {
		return nil, invalid("at least one supervisor and one advisor must be selected")
	}
	if withStudents && len(a.Students) == 0 {
		return nil, invalid("at least one student must be selected")
	}

	lists := []struct {
		role string
		ids  []uuid.UUID
	}{
		{models.RoleSupervisor, a.Supervisors},
		{models.RoleAdvisor, a.Advisors},
	}
	if withStudents {
		lists = append(lists, struct {
			role string
			ids  []uuid.UUID
		}{models.RoleStudent, a.Students})
	}

	resolved := make([]resolvedRole, 0, len(lists))
	for _, l := range lists {
		users, err := resolveRoleUsers(tx, l.ids, l.role)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedRole{role: l.role, users: users})
	}
	return resolved, nil
}

// assignTopicRoles replaces the topic's role bindings with a
func assignTopicRoles(tx *gorm.DB, actor *models.User, topic *models.Topic, a RoleAssignment, now time.Time) error {
	resolved, err := resolveAssignment(tx, a, false)
	if err != nil {
		return err
	}

	if err := tx.Where("topic_id = ?", topic.ID).Delete(&models.TopicRole{}).Error; err != nil {
		return fmt.Errorf("failed to clear topic roles: %w", err)
	}

	var roles []models.TopicRole
	for _, r := range resolved {
		for i := range r.users {
			roles = append(roles, models.TopicRole{
				TopicID:      topic.ID,
				UserID:       r.users[i].ID,
				Role:         r.role,
				Position:     i,
				AssignedByID: actorID(actor),
				AssignedAt:   now,
			})
		}
	}
	if err := tx.Omit(clause.Associations).Create(&roles).Error; err != nil {
		return fmt.Errorf("failed to save topic roles: %w", err)
	}

	byUser := usersByID(resolved)
	for i := range roles {
		u := byUser[roles[i].UserID]
		roles[i].User = &u
	}
	topic.Roles = roles
	return nil
}

// assignThesisRoles replaces the thesis's role bindings with a; students are required
func assignThesisRoles(tx *gorm.DB, actor *models.User, thesis *models.Thesis, a RoleAssignment, now time.Time) error {
	resolved, err := resolveAssignment(tx, a, true)
	if err != nil {
		return err
	}

	if err := tx.Where("thesis_id = ?", thesis.ID).Delete(&models.ThesisRole{}).Error; err != nil {
		return fmt.Errorf("failed to clear thesis roles: %w", err)
	}

	var roles []models.ThesisRole
	for _, r := range resolved {
		for i := range r.users {
			roles = append(roles, models.ThesisRole{
				ThesisID:     thesis.ID,
				UserID:       r.users[i].ID,
				Role:         r.role,
				Position:     i,
				AssignedByID: actorID(actor),
				AssignedAt:   now,
			})
		}
	}
	if err := tx.Omit(clause.Associations).Create(&roles).Error; err != nil {
		return fmt.Errorf("failed to save thesis roles: %w", err)
	}

	byUser := usersByID(resolved)
	for i := range roles {
		u := byUser[roles[i].UserID]
		roles[i].User = &u
	}
	thesis.Roles = roles
	return nil
}

func usersByID(resolved []resolvedRole) map[uuid.UUID]models.User {
	out := make(map[uuid.UUID]models.User)
	for _, r := range resolved {
		for _, u := range r.users {
			out[u.ID] = u
		}
	}
	return out
}
