package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: time.Now}
}

type DashboardStatsRequest struct {
	ResearchGroupID string `form:"research_group_id"`
	StartDate       string `form:"start_date"`
	EndDate         string `form:"end_date"`
}

type StateCount struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

type DashboardStats struct {
	OpenTopics          int64 `json:"open_topics"`
	PendingApplications int64 `json:"pending_applications"`
	ActiveTheses        int64 `json:"active_theses"`
	FinishedTheses      int64 `json:"finished_theses"`
}

type DashboardResponse struct {
	Stats             DashboardStats `json:"stats"`
	ApplicationStates []StateCount   `json:"application_states"`
	ThesisStates      []StateCount   `json:"thesis_states"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           time.Time      `json:"end_date"`
}

// GetStats counts topics, applications and theses in the actor's scope.
// Admins see every group unless one is requested; staff see their own group.
func (s *DashboardService) GetStats(ctx context.Context, actor *models.User, req *DashboardStatsRequest) (*DashboardResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsStaff() {
		return nil, forbidden("no access to the dashboard")
	}

	var groupID *uuid.UUID
	if req.ResearchGroupID != "" {
		id, err := uuid.Parse(req.ResearchGroupID)
		if err != nil {
			return nil, invalid("invalid research group id")
		}
		groupID = &id
	}
	if !actor.IsAdmin() {
		if actor.ResearchGroupID == nil {
			return nil, forbidden("no access to the dashboard")
		}
		if groupID != nil && *groupID != *actor.ResearchGroupID {
			return nil, forbidden("no access to this research group")
		}
		groupID = actor.ResearchGroupID
	}

	startDate, endDate := s.dateRange(req)
	db := s.db.WithContext(ctx)
	scoped := func(model interface{}) *gorm.DB {
		q := db.Model(model)
		if groupID != nil {
			q = q.Where("research_group_id = ?", *groupID)
		}
		return q
	}

	var stats DashboardStats
	if err := scoped(&models.Topic{}).
		Where("published_at IS NOT NULL AND closed_at IS NULL").
		Count(&stats.OpenTopics).Error; err != nil {
		return nil, err
	}
	if err := scoped(&models.Application{}).
		Where("state = ?", models.ApplicationStateNotAssessed).
		Count(&stats.PendingApplications).Error; err != nil {
		return nil, err
	}
	if err := scoped(&models.Thesis{}).
		Where("state NOT IN ?", []string{string(models.ThesisStateFinished), string(models.ThesisStateDroppedOut)}).
		Count(&stats.ActiveTheses).Error; err != nil {
		return nil, err
	}
	if err := scoped(&models.Thesis{}).
		Where("state = ?", models.ThesisStateFinished).
		Count(&stats.FinishedTheses).Error; err != nil {
		return nil, err
	}

	var applicationStates []StateCount
	if err := scoped(&models.Application{}).
		Select("state, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("state").
		Order("state").
		Scan(&applicationStates).Error; err != nil {
		return nil, err
	}

	var thesisStates []StateCount
	if err := scoped(&models.Thesis{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Order("state").
		Scan(&thesisStates).Error; err != nil {
		return nil, err
	}

	return &DashboardResponse{
		Stats:             stats,
		ApplicationStates: applicationStates,
		ThesisStates:      thesisStates,
		StartDate:         startDate,
		EndDate:           endDate,
	}, nil
}

// dateRange defaults to the last 90 days; an unparsable bound falls back to its default
func (s *DashboardService) dateRange(req *DashboardStatsRequest) (time.Time, time.Time) {
	now := s.now()
	startDate := now.AddDate(0, 0, -90)
	if req.StartDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			startDate = parsed
		}
	}

	endDate := now
	if req.EndDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			endDate = parsed.Add(24*time.Hour - time.Second)
		}
	}
	return startDate, endDate
}
