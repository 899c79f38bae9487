package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

const twoEventJSONLD = `<html><head>
<script type="application/ld+json">
[
  {
    "@type": "MusicEvent",
    "name": "Jazz Night",
    "startDate": "2026-03-05T19:00:00Z",
    "endDate": "2026-03-05T22:00:00Z",
    "location": {"name": "The Blue Room", "address": {"streetAddress": "1 Main St", "addressLocality": "Melbourne", "addressCountry": "AU"}},
    "organizer": {"name": "Blue Room Presents"},
    "offers": {"price": "25.00"},
    "image": "https://img.invalid/jazz.jpg"
  },
  {
    "@type": "ExhibitionEvent",
    "name": "Art Expo",
    "startDate": "2026-03-06T10:00:00Z",
    "endDate": "2026-03-06T18:00:00Z",
    "location": {"name": "City Gallery", "address": "2 Gallery Way, Melbourne"}
  }
]
</script>
</head><body></body></html>`

func TestExtractStructuredTwoEventScenario(t *testing.T) {
	entities, err := Extract(twoEventJSONLD, models.EntityTypeEvents, nil, "src-1", "https://example.invalid/whats-on")
	require.NoError(t, err)
	require.Len(t, entities, 2)

	jazz := entities[0]
	assert.Equal(t, "Jazz Night", jazz.Title)
	assert.Equal(t, "The Blue Room", jazz.VenueName)
	assert.Equal(t, "1 Main St", jazz.Address)
	assert.Equal(t, "Melbourne", jazz.City)
	assert.Equal(t, "AU", jazz.Country)
	assert.Equal(t, "Blue Room Presents", jazz.Organizer)
	assert.Equal(t, "25.00", jazz.PriceText)
	require.Len(t, jazz.TimeSlots, 1)
	assert.Equal(t, []string{"https://img.invalid/jazz.jpg"}, jazz.Images)

	expo := entities[1]
	assert.Equal(t, "Art Expo", expo.Title)
	assert.Equal(t, "City Gallery", expo.VenueName)
	assert.Equal(t, "2 Gallery Way, Melbourne", expo.Address)
}

func TestExtractStructuredFiltersByRequestedType(t *testing.T) {
	entities, err := Extract(twoEventJSONLD, models.EntityTypeSports, nil, "src-1", "https://example.invalid/whats-on")
	require.NoError(t, err)
	assert.Empty(t, entities, "structured nodes of a different type must be discarded")
}

func TestExtractFallsBackToRulesWhenStructuredYieldsNothingForType(t *testing.T) {
	html := `<html><body>
		<div class="listing">
			<h2 class="title">Weekend Parkrun</h2>
			<span class="venue">Riverside Park</span>
			<span class="sport">running</span>
		</div>
	</body></html>`

	spec := &models.RuleSpec{}
	spec.Selectors.ListItem = ".listing"
	spec.Fields = map[string]string{
		"title":      ".title",
		"venue_name": ".venue",
		"sport_type": ".sport",
	}

	entities, err := Extract(html, models.EntityTypeSports, spec, "src-2", "https://example.invalid/sports")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Weekend Parkrun", entities[0].Title)
	assert.Equal(t, "Riverside Park", entities[0].VenueName)
	assert.Equal(t, "running", entities[0].SportType)
}

func TestExtractWithNoStructuredDataAndNilSpecYieldsNothing(t *testing.T) {
	entities, err := Extract("<html><body>plain text, no markup</body></html>", models.EntityTypeEvents, nil, "src-1", "https://example.invalid/")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestExtractGraphContainerIsFlattened(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@graph": [{"@type": "Festival", "name": "Food Truck Fest", "startDate": "2026-04-01"}]}
	</script></head><body></body></html>`

	entities, err := Extract(html, models.EntityTypeFestivals, nil, "src-3", "https://example.invalid/festivals")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Food Truck Fest", entities[0].Title)
}

func TestExtractRulesDiscardsItemsWithNoTitle(t *testing.T) {
	html := `<html><body>
		<div class="listing"><span class="venue">No title here</span></div>
		<div class="listing"><h2 class="title">Has Title</h2></div>
	</body></html>`

	spec := &models.RuleSpec{}
	spec.Selectors.ListItem = ".listing"
	spec.Fields = map[string]string{"title": ".title"}

	entities, err := Extract(html, models.EntityTypeEvents, spec, "src-1", "https://example.invalid/")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Has Title", entities[0].Title)
}

func TestExtractRulesSplitsTimeSlotsField(t *testing.T) {
	html := `<html><body>
		<div class="listing">
			<h2 class="title">Matinee</h2>
			<span class="slot">14:00 - 16:00</span>
		</div>
	</body></html>`

	spec := &models.RuleSpec{}
	spec.Selectors.ListItem = ".listing"
	spec.Fields = map[string]string{
		"title":      ".title",
		"time_slots": ".slot",
	}

	entities, err := Extract(html, models.EntityTypeEvents, spec, "src-1", "https://example.invalid/")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Len(t, entities[0].TimeSlots, 1)
	assert.Equal(t, "14:00", entities[0].TimeSlots[0].Start)
	assert.Equal(t, "16:00", entities[0].TimeSlots[0].End)
	assert.Equal(t, "14:00", entities[0].Start)
	assert.Equal(t, "16:00", entities[0].End)
}
