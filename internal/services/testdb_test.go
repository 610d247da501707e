package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/storage"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// recordingNotifier keeps every notification handed to it
type recordingNotifier struct {
	mu    sync.Mutex
	items []*Notification
	fail  bool
}

func (n *recordingNotifier) Notify(ctx context.Context, notification *Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification)
	if n.fail {
		return errors.New("mail server down")
	}
	return nil
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]NotificationKind, 0, len(n.items))
	for _, item := range n.items {
		kinds = append(kinds, item.Kind)
	}
	return kinds
}

func (n *recordingNotifier) count(kind NotificationKind) int {
	c := 0
	for _, k := range n.kinds() {
		if k == kind {
			c++
		}
	}
	return c
}

// recordingIdentity records student group changes by user id
type recordingIdentity struct {
	mu      sync.Mutex
	added   []uuid.UUID
	removed []uuid.UUID
}

func (r *recordingIdentity) AddStudentGroup(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, user.ID)
	return nil
}

func (r *recordingIdentity) RemoveStudentGroup(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, user.ID)
	return nil
}

// recordingCalendar hands out sequential event ids
type recordingCalendar struct {
	mu      sync.Mutex
	created []CalendarEvent
	updated []string
	deleted []string
}

func (c *recordingCalendar) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, event)
	return fmt.Sprintf("event-%d", len(c.created)), nil
}

func (c *recordingCalendar) UpdateEvent(ctx context.Context, id string, event CalendarEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = append(c.updated, id)
	return nil
}

func (c *recordingCalendar) DeleteEvent(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	return nil
}

// fixture wires the workflow services against one database
type fixture struct {
	t         *testing.T
	db        *gorm.DB
	notifier  *recordingNotifier
	identity  *recordingIdentity
	calendar  *recordingCalendar
	deps      *WorkflowDeps
	now       time.Time
	topics    *TopicService
	apps      *ApplicationService
	theses    *ThesisService
	autoRej   *AutoRejectService
	groupSvc  *ResearchGroupService
	admin     *models.User
	group     *models.ResearchGroup
	super     *models.User
	advisor   *models.User
	student   *models.User
	outsider  *models.User
	otherTeam *models.ResearchGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	f := &fixture{
		t:        t,
		db:       db,
		notifier: &recordingNotifier{},
		identity: &recordingIdentity{},
		calendar: &recordingCalendar{},
		now:      testNow,
	}
	f.deps = &WorkflowDeps{
		Notifier:       f.notifier,
		Identity:       f.identity,
		Calendar:       f.calendar,
		Store:          store,
		MaxUploadBytes: 1 << 20,
		Now:            func() time.Time { return f.now },
	}
	f.topics = NewTopicService(db, f.deps)
	f.apps = NewApplicationService(db, f.deps)
	f.theses = NewThesisService(db, f.deps)
	f.autoRej = NewAutoRejectService(db, f.deps)
	f.groupSvc = NewResearchGroupService(db, f.deps)

	f.group = f.createGroup("Applied Education Technologies", "AET")
	f.otherTeam = f.createGroup("Software Engineering", "SE")
	f.admin = f.createUser("admin", nil, models.GroupAdmin)
	f.super = f.createUser("super", &f.group.ID, models.GroupSupervisor, models.GroupAdvisor)
	f.advisor = f.createUser("advisor", &f.group.ID, models.GroupAdvisor)
	f.student = f.createUser("student", nil, models.GroupStudent)
	f.outsider = f.createUser("outsider", &f.otherTeam.ID, models.GroupAdvisor)
	return f
}

func (f *fixture) createGroup(name, abbreviation string) *models.ResearchGroup {
	f.t.Helper()
	group := &models.ResearchGroup{Name: name, Abbreviation: abbreviation}
	require.NoError(f.t, f.db.Create(group).Error)
	settings := models.DefaultResearchGroupSetting(group.ID)
	require.NoError(f.t, f.db.Create(&settings).Error)
	group.Settings = &settings
	return group
}

func (f *fixture) createUser(username string, groupID *uuid.UUID, groups ...string) *models.User {
	f.t.Helper()
	user := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		FirstName:       username,
		LastName:        "Tester",
		AuthType:        "local",
		IsActive:        true,
		ResearchGroupID: groupID,
	}
	require.NoError(f.t, f.db.Omit("Groups").Create(user).Error)
	for _, g := range groups {
		ug := models.UserGroup{UserID: user.ID, Group: g}
		require.NoError(f.t, f.db.Create(&ug).Error)
		user.Groups = append(user.Groups, ug)
	}
	return user
}

func (f *fixture) setSettings(autoReject bool, weeks int, proposalPhase bool) {
	f.t.Helper()
	err := f.db.Model(&models.ResearchGroupSetting{}).Where("research_group_id = ?", f.group.ID).
		Updates(map[string]interface{}{
			"automatic_reject_enabled": autoReject,
			"reject_duration":          weeks,
			"proposal_phase_active":    proposalPhase,
		}).Error
	require.NoError(f.t, err)
}

// openTopic publishes a topic of the fixture group supervised by super and advised by advisor
func (f *fixture) openTopic(title string, deadline *time.Time) *models.Topic {
	f.t.Helper()
	topic, err := f.topics.CreateTopic(context.Background(), f.super, &TopicRequest{
		Title:               title,
		Problem:             "problem",
		ThesisTypes:         []string{"MASTER"},
		ApplicationDeadline: deadline,
		SupervisorIDs:       []uuid.UUID{f.super.ID},
		AdvisorIDs:          []uuid.UUID{f.advisor.ID},
		ResearchGroupID:     &f.group.ID,
	})
	require.NoError(f.t, err)
	return topic
}

func (f *fixture) apply(user *models.User, topic *models.Topic) *models.Application {
	f.t.Helper()
	app, err := f.apps.CreateApplication(context.Background(), user, &CreateApplicationRequest{
		TopicID:    &topic.ID,
		ThesisType: "MASTER",
		Motivation: "I like this topic",
	})
	require.NoError(f.t, err)
	return app
}

func (f *fixture) reloadApplication(id uuid.UUID) *models.Application {
	f.t.Helper()
	var app models.Application
	require.NoError(f.t, f.db.Preload("Reviewers").First(&app, "id = ?", id).Error)
	return &app
}

func (f *fixture) reloadThesis(id uuid.UUID) *models.Thesis {
	f.t.Helper()
	thesis, err := loadThesis(f.db, id)
	require.NoError(f.t, err)
	return thesis
}

func appStatus(err error) int {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

func ptrTime(t time.Time) *time.Time { return &t }

func idsToStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
