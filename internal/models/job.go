package models

import "time"

// JobStatus is the lifecycle state of a planned crawl job (spec §3).
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusRetry      JobStatus = "retry"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one unit of planned fetch-and-extract work (spec §3, §4.B).
type Job struct {
	JobID       string                 `json:"job_id"`
	SourceID    string                 `json:"source_id"`
	EntityType  EntityType             `json:"entity_type"`
	URL         string                 `json:"url"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
	Status      JobStatus              `json:"status"`
	LastError   string                 `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DefaultMaxAttempts matches spec §3's stated default.
const DefaultMaxAttempts = 3

// ShouldRetry reports whether the job has attempts remaining.
func (j *Job) ShouldRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// MetaString reads a string value out of Metadata, defaulting to "".
func (j *Job) MetaString(key string) string {
	if j.Metadata == nil {
		return ""
	}
	if v, ok := j.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaFloat reads a float64 value out of Metadata, defaulting to def.
func (j *Job) MetaFloat(key string, def float64) float64 {
	if j.Metadata == nil {
		return def
	}
	if v, ok := j.Metadata[key].(float64); ok {
		return v
	}
	return def
}

// MetaInt reads an int-ish value out of Metadata, defaulting to def.
func (j *Job) MetaInt(key string, def int) int {
	if j.Metadata == nil {
		return def
	}
	switch v := j.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
