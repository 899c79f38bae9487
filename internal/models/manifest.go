package models

// SourceStats accumulates per-source outcome counts for the run manifest
// (spec §3).
type SourceStats struct {
	RowsNew     int `json:"rows_new"`
	RowsUpdated int `json:"rows_updated"`
	Rejects     int `json:"rejects"`
}

// RunManifest is the per-run JSON summary spec §3/§6 require.
type RunManifest struct {
	RunID         string                 `json:"run_id"`
	CountsByType  map[string]int         `json:"counts_by_type"`
	OutputPaths   []string               `json:"output_paths"`
	SourceStats   map[string]*SourceStats `json:"source_stats"`
	MetricsSnapshot map[string]int64     `json:"metrics_snapshot"`
	ExitCode      int                    `json:"exit_code"`
}

// NewRunManifest builds an empty manifest ready for accumulation.
func NewRunManifest(runID string) *RunManifest {
	return &RunManifest{
		RunID:        runID,
		CountsByType: make(map[string]int),
		OutputPaths:  make([]string, 0),
		SourceStats:  make(map[string]*SourceStats),
	}
}

// StatsFor returns (creating if absent) the SourceStats bucket for sourceID.
func (m *RunManifest) StatsFor(sourceID string) *SourceStats {
	s, ok := m.SourceStats[sourceID]
	if !ok {
		s = &SourceStats{}
		m.SourceStats[sourceID] = s
	}
	return s
}
