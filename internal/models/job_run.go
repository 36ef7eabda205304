package models

import "time"

// JobRun records that one instance claimed a cron job for one time window.
// The unique (job, window_start) pair is what makes the claim exclusive.
type JobRun struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Job         string    `gorm:"uniqueIndex:idx_job_window;size:64;not null" json:"job"`
	WindowStart time.Time `gorm:"uniqueIndex:idx_job_window;not null" json:"window_start"`
	WindowEnd   time.Time `gorm:"index;not null" json:"window_end"`
	Instance    string    `gorm:"size:64" json:"instance"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

func (JobRun) TableName() string { return "job_runs" }
