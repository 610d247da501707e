package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolidayService_IsWorkday(t *testing.T) {
	s := NewHolidayService()

	tests := []struct {
		name     string
		day      time.Time
		country  string
		expected bool
	}{
		{"regular monday", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), "DE", true},
		{"saturday", time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC), "DE", false},
		{"christmas in germany", time.Date(2026, 12, 25, 9, 0, 0, 0, time.UTC), "de", false},
		{"unknown country falls back to weekdays", time.Date(2026, 12, 25, 9, 0, 0, 0, time.UTC), "NONE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsWorkday(tt.day, tt.country); got != tt.expected {
				t.Errorf("IsWorkday(%s, %s) = %v, expected %v", tt.day.Format("2006-01-02"), tt.country, got, tt.expected)
			}
		})
	}
}

func TestReminder_NotifiesGroupStaff(t *testing.T) {
	f := newFixture(t)
	topic := f.openTopic("Graph Compression", nil)
	f.apply(f.student, topic)
	f.apply(f.createUser("second", nil, models.GroupStudent), topic)
	f.notifier.items = nil

	reminder := NewReminderService(f.db, f.deps, nil, "DE")
	n, err := reminder.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.notifier.items, 1)
	sent := f.notifier.items[0]
	assert.Equal(t, NotifyApplicationReminder, sent.Kind)
	assert.Equal(t, f.group.ID, sent.EntityID)
	assert.True(t, strings.HasPrefix(sent.Title, "2 "))
	assert.Len(t, sent.Recipients, 2)
}

func TestReminder_SkipsHolidays(t *testing.T) {
	f := newFixture(t)
	f.apply(f.student, f.openTopic("Graph Compression", nil))
	f.notifier.items = nil
	f.now = time.Date(2026, 12, 25, 9, 0, 0, 0, time.UTC)

	n, err := NewReminderService(f.db, f.deps, nil, "DE").SendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifier.items)
}

func TestAcquireLock(t *testing.T) {
	db := newTestDB(t)
	now := testNow
	ttl := 10 * time.Minute

	ok, err := AcquireLock(db, JobAutoReject, "2026-03-02", "a", now, ttl)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AcquireLock(db, JobAutoReject, "2026-03-02", "b", now.Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.False(t, ok, "held lock")

	ok, err = AcquireLock(db, JobReminder, "2026-03-02", "b", now, ttl)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per job")

	ok, err = AcquireLock(db, JobAutoReject, "2026-03-02", "b", now.Add(ttl+time.Second), ttl)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is taken over")

	var lock models.SchedulerLock
	require.NoError(t, db.Where("lock_name = ?", JobAutoReject).First(&lock).Error)
	assert.Equal(t, "b", lock.LockedBy)
}

func newTestScheduler(f *fixture) *Scheduler {
	s := NewScheduler(f.db, config.SchedulerConfig{},
		f.autoRej,
		NewReminderService(f.db, f.deps, nil, "DE"),
		NewSystemLogService(f.db))
	s.now = func() time.Time { return f.now }
	return s
}

func TestScheduler_RunAutoRejectOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.setSettings(true, 2, true)
	first := f.apply(f.student, f.openTopic("First", nil))
	s := newTestScheduler(f)
	ctx := context.Background()

	require.NoError(t, s.RunAutoReject(ctx))
	assert.Equal(t, models.ApplicationStateRejected, f.reloadApplication(first.ID).State)

	second := f.apply(f.createUser("second", nil, models.GroupStudent), f.openTopic("Second", nil))
	require.NoError(t, s.RunAutoReject(ctx))
	assert.Equal(t, models.ApplicationStateNotAssessed, f.reloadApplication(second.ID).State, "lock held for the day")

	f.now = f.now.Add(24 * time.Hour)
	require.NoError(t, s.RunAutoReject(ctx))
	assert.Equal(t, models.ApplicationStateRejected, f.reloadApplication(second.ID).State)
}

func TestScheduler_RuntimeSwitch(t *testing.T) {
	f := newFixture(t)
	f.setSettings(true, 2, true)
	app := f.apply(f.student, f.openTopic("First", nil))
	require.NoError(t, NewSystemConfigService(f.db).Set(ConfigAutoRejectEnabled, "false"))

	require.NoError(t, newTestScheduler(f).RunAutoReject(context.Background()))
	assert.Equal(t, models.ApplicationStateNotAssessed, f.reloadApplication(app.ID).State)

	var locks int64
	require.NoError(t, f.db.Model(&models.SchedulerLock{}).Count(&locks).Error)
	assert.Zero(t, locks, "a disabled job takes no lock")
}

func TestScheduler_StartRejectsInvalidCron(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.db, config.SchedulerConfig{AutoRejectCron: "every day"}, f.autoRej, nil, NewSystemLogService(f.db))
	assert.Error(t, s.Start())
}
