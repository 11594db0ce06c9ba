package domain

import (
	"time"
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobRetrying  JobState = "retrying"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether a job in this state will never run again.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Valid reports whether s is one of the known job states.
func (s JobState) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobRetrying, JobSucceeded, JobFailed:
		return true
	}
	return false
}

// SubmissionJob is one retryable unit of submission work tied to exactly
// one claim. The queue's run loop is its only writer after creation.
type SubmissionJob struct {
	ID                 string    `json:"id"`
	ClaimID            string    `json:"claim_id"`
	OrgID              string    `json:"org_id"`
	RequestedBy        string    `json:"requested_by,omitempty"`
	ClaimType          ClaimType `json:"claim_type"`
	Attempt            int       `json:"attempt"`
	MaxAttempts        int       `json:"max_attempts"`
	NextAttemptAt      time.Time `json:"next_attempt_at"`
	State              JobState  `json:"state"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	LastError          *string   `json:"last_error,omitempty"`
	LastUpstreamStatus *int      `json:"last_upstream_status,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	RequestIDHash      string    `json:"request_id_hash,omitempty"`
}

// Clone returns a copy of the job safe to hand to other goroutines.
func (j *SubmissionJob) Clone() *SubmissionJob {
	c := *j
	if j.LastError != nil {
		v := *j.LastError
		c.LastError = &v
	}
	if j.LastUpstreamStatus != nil {
		v := *j.LastUpstreamStatus
		c.LastUpstreamStatus = &v
	}
	return &c
}
