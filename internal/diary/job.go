package diary

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// EmpathyJob tracks one queued empathy-reply generation for a diary entry.
type EmpathyJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID  uint64 `gorm:"index;not null"`
	EntryID string `gorm:"size:36;index;not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultResponseID *string `gorm:"size:36;index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EmpathyJob) TableName() string { return "empathy_jobs" }
