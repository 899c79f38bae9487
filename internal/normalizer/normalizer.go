// Package normalizer implements the Normaliser (spec §4.H): five ordered,
// idempotent passes applied to every extracted entity before validation.
// The compiled-pattern-plus-dedup-via-map idiom is grounded on the
// teacher's services/metadata/extractor.go Extractor.
package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9()\-. ]{6,}[0-9]`)
	pricePattern = regexp.MustCompile(`(\d+)([.,]\d{2})?`)
)

// dateLayouts are tried in order when backfilling a timezone-less start
// or end string into a parseable timestamp (spec §4.H).
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// DefaultTaxonomyVocab is the fixed case-insensitive title-substring table
// (spec §4.H invariant 5).
var DefaultTaxonomyVocab = map[string]string{
	"jazz":     "music",
	"art":      "art",
	"football": "football",
	"running":  "running",
}

// Normaliser maps free-form source taxonomy text onto a controlled
// vocabulary via a fixed-substring seam (spec §9's Open Question
// resolution: "taxonomy matching kept naive/substring-based").
type Normaliser struct {
	taxonomyVocab map[string]string
}

// New builds a Normaliser with the given substring->canonical-tag
// taxonomy map. A nil map disables taxonomy mapping.
func New(taxonomyVocab map[string]string) *Normaliser {
	return &Normaliser{taxonomyVocab: taxonomyVocab}
}

// Normalise applies all five invariants in order and returns the mutated
// entity (spec §4.H operates in place on the extractor's output).
func (n *Normaliser) Normalise(e *models.Entity) *models.Entity {
	n.normaliseDatetimes(e)
	n.normaliseContacts(e)
	n.normalisePrice(e)
	n.normaliseURLs(e)
	n.MapTaxonomy(e)
	return e
}

// normaliseDatetimes attaches an explicit offset to Start, backfilling the
// entity's timezone from Start's resolved zone when the entity didn't
// already carry one, then applies that (possibly just-backfilled) zone to
// End and every TimeSlot, and reorders a slot whose End parses before its
// Start (spec §4.H invariant 1: "if no offset, attach the entity's
// timezone if present, else UTC; backfill timezone from the zone's IANA
// key or a synthesised UTC±HH:MM string"). Values that fail to parse
// under any known layout are left untouched rather than discarded.
func (n *Normaliser) normaliseDatetimes(e *models.Entity) {
	tzHint := e.Timezone

	if e.Start != "" {
		if dt, ok := convertDatetime(e.Start, tzHint); ok {
			e.Start = dt.Format(time.RFC3339)
			if tzHint == "" {
				tzHint = zoneName(dt)
				e.Timezone = tzHint
			}
		}
	}

	if e.End != "" {
		if dt, ok := convertDatetime(e.End, tzHint); ok {
			e.End = dt.Format(time.RFC3339)
		}
	}

	for i := range e.TimeSlots {
		if dt, ok := convertDatetime(e.TimeSlots[i].Start, tzHint); ok {
			e.TimeSlots[i].Start = dt.Format(time.RFC3339)
		}
		if dt, ok := convertDatetime(e.TimeSlots[i].End, tzHint); ok {
			e.TimeSlots[i].End = dt.Format(time.RFC3339)
		}

		if start, sErr := parseAny(e.TimeSlots[i].Start); sErr == nil {
			if end, eErr := parseAny(e.TimeSlots[i].End); eErr == nil && end.Before(start) {
				e.TimeSlots[i].Start, e.TimeSlots[i].End = e.TimeSlots[i].End, e.TimeSlots[i].Start
			}
		}
	}
}

// convertDatetime parses raw under any known layout. A value with no
// explicit offset is attached to tzHint when that resolves to a loadable
// zone, else to UTC; a value that already carries an offset is converted
// into tzHint's zone when tzHint resolves. Returns ok=false when raw
// fails to parse under every known layout.
func convertDatetime(raw, tzHint string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	dt, hasOffset, err := parseWithOffsetInfo(raw)
	if err != nil {
		return time.Time{}, false
	}

	if !hasOffset {
		loc := resolveLocation(tzHint)
		if loc == nil {
			loc = time.UTC
		}
		dt = time.Date(dt.Year(), dt.Month(), dt.Day(), dt.Hour(), dt.Minute(), dt.Second(), dt.Nanosecond(), loc)
	}

	if loc := resolveLocation(tzHint); loc != nil {
		dt = dt.In(loc)
	}

	return dt, true
}

// parseWithOffsetInfo tries RFC3339 first, since it is the only layout in
// dateLayouts that carries an explicit offset or "Z". hasOffset reports
// whether the parse matched that layout.
func parseWithOffsetInfo(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true, nil
	}
	for _, layout := range dateLayouts[1:] {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable date: %q", raw)
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	return loc
}

// zoneName returns dt's IANA zone name, or a synthesised UTC±HH:MM string
// when the zone carries no name (e.g. a bare numeric offset parsed from
// RFC3339).
func zoneName(dt time.Time) string {
	name, offset := dt.Zone()
	if name != "" {
		return name
	}

	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

func parseAny(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// normaliseContacts lowercases and deduplicates emails, and strips
// non-digit characters (preserving a leading "+") from phone numbers,
// deduplicating the result (spec §4.H invariant 2).
func (n *Normaliser) normaliseContacts(e *models.Entity) {
	e.Emails = dedupeStrings(mapStrings(e.Emails, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}))

	e.Phones = dedupeStrings(mapStrings(e.Phones, normalisePhone))
}

func normalisePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalisePrice parses PriceText into PriceValue using the fixed
// `(\d+)([.,]\d{2})?` pattern (spec §4.H invariant 3). A PriceText that
// contains no digits leaves PriceValue at its zero value.
func (n *Normaliser) normalisePrice(e *models.Entity) {
	if e.PriceText == "" || e.PriceValue != 0 {
		return
	}

	match := pricePattern.FindStringSubmatch(e.PriceText)
	if match == nil {
		return
	}

	whole := match[1]
	frac := strings.TrimLeft(match[2], ".,")

	numeric := whole
	if frac != "" {
		numeric += "." + frac
	}

	v, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return
	}
	e.PriceValue = v
}

// normaliseURLs trims whitespace from URL, Images, and dedupes Images
// while preserving first-seen order (spec §4.H invariant 4).
func (n *Normaliser) normaliseURLs(e *models.Entity) {
	e.URL = strings.TrimSpace(e.URL)
	e.Images = dedupeStrings(mapStrings(e.Images, strings.TrimSpace))
}

// MapTaxonomy appends canonical tags for every configured substring found
// in the entity's title (case-insensitive), and appends the sports
// SportType as a taxonomy tag for sports entities (spec §4.H invariant 5,
// §9's "naive substring matching behind a Normaliser.MapTaxonomy seam").
func (n *Normaliser) MapTaxonomy(e *models.Entity) {
	titleLower := strings.ToLower(e.Title)

	for substr, tag := range n.taxonomyVocab {
		if strings.Contains(titleLower, strings.ToLower(substr)) {
			e.Taxonomy = appendUnique(e.Taxonomy, tag)
		}
	}

	if e.Type == models.EntityTypeSports && e.SportType != "" {
		e.Taxonomy = appendUnique(e.Taxonomy, e.SportType)
	}
}

func mapStrings(in []string, f func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// ExtractEmails finds every email-shaped substring in raw text, used when
// an entity's emails come from unstructured page text rather than a
// dedicated selector field.
func ExtractEmails(raw string) []string {
	return emailPattern.FindAllString(raw, -1)
}

// ExtractPhones finds every phone-shaped substring in raw text.
func ExtractPhones(raw string) []string {
	return phonePattern.FindAllString(raw, -1)
}
