package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

const testdataRoot = "../../testdata/schemas"

func TestPruneDropsUndeclaredKeys(t *testing.T) {
	reg := NewRegistry(testdataRoot)

	payload := map[string]interface{}{
		"source_id":       "src-1",
		"title":           "Jazz Night",
		"not_a_real_field": "should be dropped",
	}

	pruned, err := reg.Prune(models.EntityTypeEvents, payload)
	require.NoError(t, err)

	assert.Equal(t, "src-1", pruned["source_id"])
	assert.Equal(t, "Jazz Night", pruned["title"])
	_, present := pruned["not_a_real_field"]
	assert.False(t, present)
}

func TestValidatePassesForWellFormedPayload(t *testing.T) {
	reg := NewRegistry(testdataRoot)

	payload := map[string]interface{}{
		"type":      "events",
		"source_id": "src-1",
		"title":     "Jazz Night",
	}

	result, err := reg.Validate(models.EntityTypeEvents, payload)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Errors)
}

func TestValidateFailsWhenRequiredFieldMissing(t *testing.T) {
	reg := NewRegistry(testdataRoot)

	payload := map[string]interface{}{
		"type": "events",
		"title": "Jazz Night",
	}

	result, err := reg.Validate(models.EntityTypeEvents, payload)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateSportRequiresSportType(t *testing.T) {
	reg := NewRegistry(testdataRoot)

	payload := map[string]interface{}{
		"type":      "sports",
		"source_id": "src-1",
		"title":     "Grand Final",
	}

	result, err := reg.Validate(models.EntityTypeSports, payload)
	require.NoError(t, err)
	assert.False(t, result.OK)
}

func TestLoadMissingSchemaIsFatal(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "no-such-dir"))

	_, err := reg.Prune(models.EntityTypeEvents, map[string]interface{}{"title": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFatal)
}

func TestLoadMemoizesCompiledSchema(t *testing.T) {
	reg := NewRegistry(testdataRoot)

	_, err := reg.Prune(models.EntityTypeEvents, map[string]interface{}{"title": "x"})
	require.NoError(t, err)

	c1, err := reg.load(models.EntityTypeEvents)
	require.NoError(t, err)
	c2, err := reg.load(models.EntityTypeEvents)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
}
