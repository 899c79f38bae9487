package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// rejectRecord is the on-disk shape of one quarantined entity (spec §6:
// "reject_<timestamp>.json containing {entity, reason: [string]}").
type rejectRecord struct {
	Entity *models.Entity `json:"entity"`
	Reason []string       `json:"reason"`
}

// WriteQuarantine persists a schema-rejected entity under dir, named
// reject_<YYYYMMDDTHHMMSS><microseconds>.json (spec §4.O step 5, §6).
func WriteQuarantine(dir string, entity *models.Entity, reasons []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating quarantine dir %s: %v", common.ErrFatal, dir, err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("reject_%s%06d.json", now.Format("20060102T150405"), now.Nanosecond()/1000)
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(rejectRecord{Entity: entity, Reason: reasons}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshalling quarantine record: %v", common.ErrFatal, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: writing quarantine record %s: %v", common.ErrFatal, path, err)
	}

	return path, nil
}
