package models

// JobCheckpoint is the per-run, per-job resumability record (spec §3, §4.K).
type JobCheckpoint struct {
	JobID               string `json:"job_id"`
	URLCursor           string `json:"url_cursor"`
	PageIdx             int    `json:"page_idx"`
	DiscoveredURLsHash  string `json:"discovered_urls_hash"`
}

// Matches reports whether this checkpoint is honourable against the
// replanned job's current job ID and discovered-URL set hash (spec §4.K):
// a restored checkpoint is only used when both match exactly.
func (c *JobCheckpoint) Matches(jobID, discoveredURLsHash string) bool {
	return c != nil && c.JobID == jobID && c.DiscoveredURLsHash == discoveredURLsHash
}
