package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

func TestSaveLoadClearRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	cp := &models.JobCheckpoint{
		JobID:              "job-1",
		URLCursor:          "https://example.invalid/page/2",
		PageIdx:            1,
		DiscoveredURLsHash: "abc123",
	}

	require.NoError(t, c.Save("run-1", cp))

	loaded := c.Load("run-1", "job-1")
	require.NotNil(t, loaded)
	assert.Equal(t, cp.JobID, loaded.JobID)
	assert.Equal(t, cp.URLCursor, loaded.URLCursor)
	assert.Equal(t, cp.PageIdx, loaded.PageIdx)
	assert.Equal(t, cp.DiscoveredURLsHash, loaded.DiscoveredURLsHash)

	require.NoError(t, c.Clear("run-1", "job-1"))
	assert.Nil(t, c.Load("run-1", "job-1"))
}

func TestLoadAbsentReturnsNil(t *testing.T) {
	c := New(t.TempDir())
	assert.Nil(t, c.Load("no-such-run", "no-such-job"))
}

func TestLoadCorruptReturnsNil(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	runDir := filepath.Join(dir, "run-1")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "job-1.json"), []byte("not json"), 0o644))

	assert.Nil(t, c.Load("run-1", "job-1"))
}

func TestClearAbsentIsNoop(t *testing.T) {
	c := New(t.TempDir())
	assert.NoError(t, c.Clear("run-1", "job-1"))
}

func TestMatchesRequiresJobIDAndHash(t *testing.T) {
	cp := &models.JobCheckpoint{JobID: "job-1", DiscoveredURLsHash: "h1"}

	assert.True(t, cp.Matches("job-1", "h1"))
	assert.False(t, cp.Matches("job-1", "h2"))
	assert.False(t, cp.Matches("job-2", "h1"))

	var nilCP *models.JobCheckpoint
	assert.False(t, nilCP.Matches("job-1", "h1"))
}
