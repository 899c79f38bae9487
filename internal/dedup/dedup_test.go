package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

func sampleEntity() *models.Entity {
	return &models.Entity{
		Type:      models.EntityTypeEvents,
		SourceID:  "src-1",
		Title:     "Jazz Night",
		VenueName: "The Blue Room",
		City:      "Melbourne",
		Start:     "2026-03-05T19:00:00Z",
	}
}

func TestKeyIsStableAndCaseInsensitive(t *testing.T) {
	a := sampleEntity()
	b := sampleEntity()
	b.Title = "  JAZZ NIGHT  "
	b.City = "MELBOURNE"

	assert.Equal(t, Key(a), Key(b))
}

func TestKeyDiffersByDateBucket(t *testing.T) {
	a := sampleEntity()
	b := sampleEntity()
	b.Start = "2026-03-10T19:00:00Z"

	assert.NotEqual(t, Key(a), Key(b))
}

func TestIndexIsDuplicateExactMatch(t *testing.T) {
	idx := NewIndex()
	a := sampleEntity()

	dup, _ := idx.IsDuplicate(a)
	assert.False(t, dup)

	idx.Remember(a)

	dup, key := idx.IsDuplicate(a)
	assert.True(t, dup)
	assert.Equal(t, Key(a), key)
}

func TestIndexFlagsNearDuplicateAtPlusMinusOneDay(t *testing.T) {
	idx := NewIndex()
	original := sampleEntity()
	idx.Remember(original)

	dayBefore := sampleEntity()
	dayBefore.Start = "2026-03-04T19:00:00Z"
	dup, _ := idx.IsDuplicate(dayBefore)
	assert.True(t, dup, "a candidate one day earlier must be flagged near-duplicate")

	dayAfter := sampleEntity()
	dayAfter.Start = "2026-03-06T19:00:00Z"
	dup, _ = idx.IsDuplicate(dayAfter)
	assert.True(t, dup, "a candidate one day later must be flagged near-duplicate")

	twoDaysAfter := sampleEntity()
	twoDaysAfter.Start = "2026-03-07T19:00:00Z"
	dup, _ = idx.IsDuplicate(twoDaysAfter)
	assert.False(t, dup, "a candidate two days out must not be flagged")
}

func TestMergeReplacesScalarAndSliceFields(t *testing.T) {
	existing := sampleEntity()
	existing.Emails = []string{"old@example.invalid"}

	candidate := sampleEntity()
	candidate.Address = "123 Example St"
	candidate.Emails = []string{"new@example.invalid"}

	merged, mutated := NewMerger().Merge(existing, candidate)
	assert.True(t, mutated)
	assert.Equal(t, "123 Example St", merged.Address)
	assert.Equal(t, []string{"new@example.invalid"}, merged.Emails)
}

func TestMergeReportsNoMutationWhenCandidateAddsNothing(t *testing.T) {
	existing := sampleEntity()
	candidate := sampleEntity()

	merged, mutated := NewMerger().Merge(existing, candidate)
	assert.False(t, mutated)
	assert.Equal(t, existing.Title, merged.Title)
}

func TestMergeNeverUnionsSlices(t *testing.T) {
	existing := sampleEntity()
	existing.Taxonomy = []string{"music"}

	candidate := sampleEntity()
	candidate.Taxonomy = []string{"art"}

	merged, mutated := NewMerger().Merge(existing, candidate)
	assert.True(t, mutated)
	assert.Equal(t, []string{"art"}, merged.Taxonomy, "merge must replace, not union, list fields")
}
