package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "source_id,base_url,type,country,robots_ok,sitemap_url,crawl_freq,max_qps,concurrency,css_rules_path,enabled\n"

func writeCSV(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sources.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvHeader+body), 0o644))
	return path
}

func TestLoadSourcesSkipsDisabledRows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte("selectors: {}"), 0o644))

	body := "src-1,https://example.invalid/a,events,AU,true,,daily,1,1,events.yaml,true\n" +
		"src-2,https://example.invalid/b,events,AU,true,,daily,1,1,missing.yaml,false\n"
	path := writeCSV(t, dir, body)

	srcs, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "src-1", srcs[0].SourceID)
}

func TestLoadSourcesRaisesOnEnabledRowWithMissingRuleFile(t *testing.T) {
	dir := t.TempDir()
	body := "src-1,https://example.invalid/a,events,AU,true,,daily,1,1,missing.yaml,true\n"
	path := writeCSV(t, dir, body)

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestValidateSourcesReportsPerRowWithoutRaising(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte("selectors: {}"), 0o644))

	body := "src-1,https://example.invalid/a,events,AU,true,,daily,1,1,events.yaml,true\n" +
		"src-2,https://example.invalid/b,events,AU,true,,daily,1,1,missing.yaml,true\n" +
		"src-3,https://example.invalid/c,events,AU,true,,daily,1,1,events.yaml,false\n"
	path := writeCSV(t, dir, body)

	results, err := ValidateSources(path)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Equal(t, "ok", results[0].Detail)

	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Detail, "does not exist")

	assert.True(t, results[2].OK)
	assert.Equal(t, "disabled", results[2].Detail)
}

func TestLoadSourcesRaisesOnMissingCSVFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "no-such.csv"))
	assert.Error(t, err)
}

func TestRegistryLoadSourcesMatchesPackageFunction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte("selectors: {}"), 0o644))
	body := "src-1,https://example.invalid/a,events,AU,true,,daily,1,1,events.yaml,true\n"
	path := writeCSV(t, dir, body)

	reg := NewRegistry(nil)
	srcs, err := reg.LoadSources(path)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
}
