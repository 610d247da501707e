package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardDateRange(t *testing.T) {
	s := &DashboardService{now: func() time.Time { return testNow }}

	tests := []struct {
		name      string
		req       DashboardStatsRequest
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"defaults", DashboardStatsRequest{}, testNow.AddDate(0, 0, -90), testNow},
		{"explicit range", DashboardStatsRequest{StartDate: "2026-01-01", EndDate: "2026-01-31"},
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)},
		{"invalid bounds fall back", DashboardStatsRequest{StartDate: "yesterday", EndDate: "today"}, testNow.AddDate(0, 0, -90), testNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := s.dateRange(&tt.req)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, expected %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, expected %v", end, tt.wantEnd)
			}
		})
	}
}

func TestDashboard_ScopedToGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := NewDashboardService(f.db)

	topic := f.openTopic("Graph Compression", nil)
	f.apply(f.student, topic)
	f.createThesis("Thesis", f.createUser("writer", nil, models.GroupStudent))

	stats, err := s.GetStats(ctx, f.advisor, &DashboardStatsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Stats.OpenTopics)
	assert.EqualValues(t, 1, stats.Stats.PendingApplications)
	assert.EqualValues(t, 1, stats.Stats.ActiveTheses)
	require.Len(t, stats.ApplicationStates, 1)
	assert.Equal(t, models.ApplicationStateNotAssessed, stats.ApplicationStates[0].State)

	other, err := s.GetStats(ctx, f.outsider, &DashboardStatsRequest{})
	require.NoError(t, err)
	assert.Zero(t, other.Stats.PendingApplications)

	_, err = s.GetStats(ctx, f.outsider, &DashboardStatsRequest{ResearchGroupID: f.group.ID.String()})
	assert.Equal(t, http.StatusForbidden, appStatus(err))
	_, err = s.GetStats(ctx, f.student, &DashboardStatsRequest{})
	assert.Equal(t, http.StatusForbidden, appStatus(err))

	all, err := s.GetStats(ctx, f.admin, &DashboardStatsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, all.Stats.PendingApplications)
}
