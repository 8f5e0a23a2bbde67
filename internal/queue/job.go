package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies what a queued job asks a worker to do.
type JobType string

const (
	// JobTypeLeadEvaluation re-scores one lead's sanitized conversation.
	JobTypeLeadEvaluation JobType = "lead_evaluation"
	// JobTypeLeadReprocess re-runs evaluation for every conversation of a
	// lead, used after a scoring prompt change.
	JobTypeLeadReprocess JobType = "lead_reprocess"
)

// Job is one unit of asynchronous work. Jobs carry only identifiers; the
// worker re-reads sanitized data itself, so no conversational text ever
// rides the queue.
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	LeadID     int64          `json:"lead_id"`
	NotBefore  *time.Time     `json:"not_before,omitempty"`
	NotAfter   *time.Time     `json:"not_after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a job for the given lead.
func NewJob(jobType JobType, leadID int64) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		LeadID:     leadID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// ShouldProcess reports whether the job's processing window is open now.
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired reports whether the job is past its NotAfter deadline.
func (j *Job) IsExpired() bool {
	return j.NotAfter != nil && time.Now().After(*j.NotAfter)
}

// CanRetry reports whether the job has retries left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry bumps the retry count.
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
