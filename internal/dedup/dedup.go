// Package dedup implements the Deduplicator and Merger (spec §4.J): a
// dedup-key index with a ±1-day near-duplicate probe, and an
// opaque-replace entity merge.
package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

const dayBucketLayout = "2006-01-02"

// Key computes the dedup key for an entity: sha1 of
// lower_trim(title)|date_bucket|lower_trim(venue_or_address)|lower_trim(city)|source_id
// (spec §9/§3).
func Key(e *models.Entity) string {
	return keyFor(e, 0)
}

// keyFor computes the dedup key using a start/end shifted by shiftDays,
// used both for the canonical key (shiftDays=0) and for the ±1-day
// near-key probe.
func keyFor(e *models.Entity, shiftDays int) string {
	venue := e.VenueName
	if venue == "" {
		venue = e.Address
	}

	parts := []string{
		lowerTrim(e.Title),
		dateBucket(e, shiftDays),
		lowerTrim(venue),
		lowerTrim(e.City),
		e.SourceID,
	}

	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// dateBucket resolves the entity's bucketing date, preferring Start, then
// End, then a fixed epoch day for entities with no parseable date at all
// (spec §3: "date_bucket(start|end|epoch)").
func dateBucket(e *models.Entity, shiftDays int) string {
	raw := e.Start
	if raw == "" {
		raw = e.End
	}

	t, err := parseBucketDate(raw)
	if err != nil {
		t = time.Unix(0, 0).UTC()
	}

	return t.AddDate(0, 0, shiftDays).Format(dayBucketLayout)
}

func parseBucketDate(raw string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// Index is the mutex-guarded seen-key set backing is_duplicate/remember
// (spec §4.J).
type Index struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewIndex builds an empty Index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]bool)}
}

// IsDuplicate reports whether candidate's canonical key, or either of its
// ±1-day shifted keys, is already present in the index. The shifted keys
// are generated from the candidate (not checked against a shifted
// canonical set) per spec §9's resolved near-duplicate probe symmetry.
func (idx *Index) IsDuplicate(candidate *models.Entity) (bool, string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	canonical := keyFor(candidate, 0)
	if idx.seen[canonical] {
		return true, canonical
	}

	for _, shift := range []int{-1, 1} {
		if near := keyFor(candidate, shift); idx.seen[near] {
			return true, near
		}
	}

	return false, canonical
}

// Remember records candidate's canonical key as seen.
func (idx *Index) Remember(candidate *models.Entity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seen[keyFor(candidate, 0)] = true
}

// Merger merges a duplicate candidate into the previously accepted
// entity for the same dedup key.
type Merger struct{}

// NewMerger builds a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge overlays candidate's non-zero scalar fields onto existing and
// replaces (never unions) list/slice fields when candidate's version is
// non-empty, per spec §4.J's "opaque list/map replace-not-union
// semantics". Returns the merged entity and whether any field actually
// changed.
func (m *Merger) Merge(existing, candidate *models.Entity) (*models.Entity, bool) {
	merged := *existing
	mutated := false

	setString := func(dst *string, src string) {
		if src != "" && src != *dst {
			*dst = src
			mutated = true
		}
	}
	setFloat := func(dst *float64, src float64) {
		if src != 0 && src != *dst {
			*dst = src
			mutated = true
		}
	}
	setSlice := func(dst *[]string, src []string) {
		if len(src) > 0 && !equalStrings(*dst, src) {
			*dst = src
			mutated = true
		}
	}
	setTimeSlots := func(dst *[]models.TimeSlot, src []models.TimeSlot) {
		if len(src) > 0 && !equalTimeSlots(*dst, src) {
			*dst = src
			mutated = true
		}
	}

	setString(&merged.Title, candidate.Title)
	setString(&merged.SourceID, candidate.SourceID)
	setString(&merged.VenueName, candidate.VenueName)
	setString(&merged.Address, candidate.Address)
	setString(&merged.City, candidate.City)
	setString(&merged.Country, candidate.Country)
	setString(&merged.Timezone, candidate.Timezone)
	setString(&merged.Start, candidate.Start)
	setString(&merged.End, candidate.End)
	setString(&merged.PriceText, candidate.PriceText)
	setFloat(&merged.PriceValue, candidate.PriceValue)
	setString(&merged.Organizer, candidate.Organizer)
	setString(&merged.URL, candidate.URL)
	setString(&merged.SportType, candidate.SportType)
	setSlice(&merged.Emails, candidate.Emails)
	setSlice(&merged.Phones, candidate.Phones)
	setSlice(&merged.Images, candidate.Images)
	setSlice(&merged.Taxonomy, candidate.Taxonomy)
	setTimeSlots(&merged.TimeSlots, candidate.TimeSlots)

	return &merged, mutated
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalTimeSlots(a, b []models.TimeSlot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
