package services

import (
	"context"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

// IdentitySynchronizer mirrors thesis membership into the identity provider
type IdentitySynchronizer interface {
	AddStudentGroup(ctx context.Context, user *models.User) error
	RemoveStudentGroup(ctx context.Context, user *models.User) error
}

type NoopIdentitySynchronizer struct{}

func (NoopIdentitySynchronizer) AddStudentGroup(ctx context.Context, user *models.User) error {
	return nil
}
func (NoopIdentitySynchronizer) RemoveStudentGroup(ctx context.Context, user *models.User) error {
	return nil
}

// NewIdentitySynchronizer syncs through LDAP when a student group is configured.
// enabled is consulted on every call so the sync can be paused at runtime.
func NewIdentitySynchronizer(cfg *config.LDAPConfig, enabled func() bool) IdentitySynchronizer {
	if cfg == nil || !cfg.Enabled || cfg.StudentGroupDN == "" {
		return NoopIdentitySynchronizer{}
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &LDAPGroupSync{ldap: NewLDAPService(cfg), groupDN: cfg.StudentGroupDN, enabled: enabled}
}

// LDAPGroupSync maintains the directory group of students with an active thesis
type LDAPGroupSync struct {
	ldap    *LDAPService
	groupDN string
	enabled func() bool
}

func (s *LDAPGroupSync) AddStudentGroup(ctx context.Context, user *models.User) error {
	if user.AuthType != "ldap" || !s.enabled() {
		return nil
	}
	if err := s.ldap.AddGroupMember(s.groupDN, user.Username); err != nil {
		return err
	}
	logger.Info().Str("user", user.Username).Str("group", s.groupDN).Msg("added student to LDAP group")
	return nil
}

func (s *LDAPGroupSync) RemoveStudentGroup(ctx context.Context, user *models.User) error {
	if user.AuthType != "ldap" || !s.enabled() {
		return nil
	}
	if err := s.ldap.RemoveGroupMember(s.groupDN, user.Username); err != nil {
		return err
	}
	logger.Info().Str("user", user.Username).Str("group", s.groupDN).Msg("removed student from LDAP group")
	return nil
}
