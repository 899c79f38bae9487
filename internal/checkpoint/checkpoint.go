// Package checkpoint implements the Checkpointer (spec §4.K): per-run,
// per-job resumability state persisted as a single JSON file.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// Checkpointer reads and writes JobCheckpoint files under a run-scoped
// directory (spec §4.K).
type Checkpointer struct {
	dir string
}

// New builds a Checkpointer rooted at dir.
func New(dir string) *Checkpointer {
	return &Checkpointer{dir: dir}
}

func (c *Checkpointer) path(runID, jobID string) string {
	return filepath.Join(c.dir, runID, jobID+".json")
}

// Load returns the saved checkpoint for (runID, jobID), or nil if absent
// or corrupt (spec §4.K: "load_checkpoint returns nil on absent/corrupt").
func (c *Checkpointer) Load(runID, jobID string) *models.JobCheckpoint {
	data, err := os.ReadFile(c.path(runID, jobID))
	if err != nil {
		return nil
	}

	var cp models.JobCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil
	}

	return &cp
}

// Save persists cp after every accepted entity (spec §4.K).
func (c *Checkpointer) Save(runID string, cp *models.JobCheckpoint) error {
	dir := filepath.Join(c.dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, cp.JobID+".json"), data, 0o644)
}

// Clear deletes the checkpoint for (runID, jobID), ignoring a not-found
// error since clearing an already-absent checkpoint is a no-op.
func (c *Checkpointer) Clear(runID, jobID string) error {
	err := os.Remove(c.path(runID, jobID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
