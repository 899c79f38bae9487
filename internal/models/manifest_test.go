package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsForCreatesBucketLazily(t *testing.T) {
	m := NewRunManifest("run-1")

	assert.Empty(t, m.SourceStats)

	stats := m.StatsFor("src-1")
	stats.RowsNew++

	assert.Len(t, m.SourceStats, 1)
	assert.Equal(t, 1, m.StatsFor("src-1").RowsNew, "a second call returns the same bucket")
}

func TestNewRunManifestInitializesCollections(t *testing.T) {
	m := NewRunManifest("run-1")

	assert.Equal(t, "run-1", m.RunID)
	assert.NotNil(t, m.CountsByType)
	assert.NotNil(t, m.OutputPaths)
	assert.NotNil(t, m.SourceStats)
}
