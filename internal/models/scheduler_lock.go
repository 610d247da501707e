package models

import "time"

// SchedulerLock guards a scheduled job run so only one instance executes it
type SchedulerLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LockName  string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_name"` // job name, e.g. auto_reject
	LockKey   string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_key"`  // run bucket, e.g. 2026-10-15
	LockedBy  string    `gorm:"size:100" json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }

func (l *SchedulerLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
