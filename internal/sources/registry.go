// Package sources implements the Source Registry (spec §4.A): parsing,
// coercing and validating the sources CSV, and resolving rule-file paths
// relative to it.
package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// Registry loads and validates the sources CSV; it holds no sources itself,
// only the logger used for per-row skip messages.
type Registry struct {
	logger arbor.ILogger
}

// NewRegistry creates a Registry. Logging here matches the teacher's
// services-take-a-logger convention (sources/service.go NewService).
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{logger: logger}
}

// ValidationResult is one row of validate_sources' lenient report
// (spec §4.A): detail is "ok", "disabled", or an error message.
type ValidationResult struct {
	SourceID string
	OK       bool
	Detail   string
}

func readRows(csvPath string) ([]models.SourceRow, string, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: opening sources CSV %s: %v", common.ErrConfig, csvPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, "", fmt.Errorf("%w: sources CSV %s has no header: %v", common.ErrConfig, csvPath, err)
	}

	var rows []models.SourceRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: reading sources CSV %s: %v", common.ErrConfig, csvPath, err)
		}
		row := make(models.SourceRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, filepath.Dir(csvPath), nil
}

// LoadSources is the strict loader: it raises on any invalid *enabled*
// row (including a missing rule file), and silently skips disabled rows
// (spec §4.A). It logs nothing; use Registry.LoadSources when a logger is
// available.
func LoadSources(csvPath string) ([]*models.Source, error) {
	return NewRegistry(nil).LoadSources(csvPath)
}

// ValidateSources is the lenient validator used by the admin CLI's
// validate-sources subcommand: it never raises, it reports per row
// (spec §4.A, §8 scenario 3).
func ValidateSources(csvPath string) ([]ValidationResult, error) {
	return NewRegistry(nil).ValidateSources(csvPath)
}

// LoadSources is the Registry-bound strict loader: identical contract to
// the package-level LoadSources, but logs a debug line per skipped
// disabled row.
func (r *Registry) LoadSources(csvPath string) ([]*models.Source, error) {
	rows, csvDir, err := readRows(csvPath)
	if err != nil {
		return nil, err
	}

	var out []*models.Source
	for i, row := range rows {
		src, err := models.NewSourceFromRow(row, csvDir)
		if err != nil {
			return nil, fmt.Errorf("%w: sources CSV row %d: %v", common.ErrConfig, i+2, err)
		}
		if !src.Enabled {
			r.debugf("source %s disabled, skipping", src.SourceID)
			continue
		}
		if err := src.ValidateStrict(); err != nil {
			return nil, fmt.Errorf("%w: sources CSV row %d (%s): %v", common.ErrConfig, i+2, src.SourceID, err)
		}
		out = append(out, src)
	}

	return out, nil
}

// ValidateSources is the Registry-bound lenient validator.
func (r *Registry) ValidateSources(csvPath string) ([]ValidationResult, error) {
	rows, csvDir, err := readRows(csvPath)
	if err != nil {
		return nil, err
	}

	results := make([]ValidationResult, 0, len(rows))
	for _, row := range rows {
		src, err := models.NewSourceFromRow(row, csvDir)
		if err != nil {
			results = append(results, ValidationResult{SourceID: row["source_id"], OK: false, Detail: err.Error()})
			continue
		}
		if !src.Enabled {
			results = append(results, ValidationResult{SourceID: src.SourceID, OK: true, Detail: "disabled"})
			continue
		}
		if err := src.ValidateStrict(); err != nil {
			results = append(results, ValidationResult{SourceID: src.SourceID, OK: false, Detail: err.Error()})
			continue
		}
		results = append(results, ValidationResult{SourceID: src.SourceID, OK: true, Detail: "ok"})
	}

	return results, nil
}

func (r *Registry) debugf(format string, args ...interface{}) {
	if r.logger == nil {
		return
	}
	r.logger.Debug().Msg(fmt.Sprintf(format, args...))
}
