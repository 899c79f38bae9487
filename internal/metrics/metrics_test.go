package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreSeedsEveryCounterAtZero(t *testing.T) {
	r := New()
	snapshot := r.Snapshot()

	for _, name := range names {
		v, ok := snapshot[name]
		require.True(t, ok, "expected %q to be pre-seeded", name)
		assert.Equal(t, int64(0), v)
	}
}

func TestIncrAccumulates(t *testing.T) {
	r := New()
	r.Incr("pages_fetched", 3)
	r.Incr("pages_fetched", 2)

	assert.Equal(t, int64(5), r.Snapshot()["pages_fetched"])
}

func TestIncrUnknownCounterPanics(t *testing.T) {
	r := New()
	assert.Panics(t, func() { r.Incr("robots_blocked", 1) })
}

func TestExportWritesJSONSnapshot(t *testing.T) {
	r := New()
	r.Incr("entities_new", 4)

	path := filepath.Join(t.TempDir(), "metrics", "run-1.json")
	require.NoError(t, r.Export(path, "run-1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		RunID   string           `json:"run_id"`
		Metrics map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, int64(4), doc.Metrics["entities_new"])
}

func TestRecordDurationIncrementsOnStop(t *testing.T) {
	r := New()
	stop := r.RecordDuration("run_duration_ms")
	stop()

	assert.GreaterOrEqual(t, r.Snapshot()["run_duration_ms"], int64(0))
}
