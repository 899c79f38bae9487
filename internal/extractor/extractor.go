// Package extractor implements the Extractor (spec §4.G): a two-phase
// pipeline that prefers embedded structured data (JSON-LD) and falls back
// to declarative CSS-selector rules. goquery usage is grounded on
// jonesrussell-north-cloud/crawler/internal/fetcher/extractor.go and the
// teacher's services/crawler/html_scraper.go ExtractMetadata JSON-LD walk.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// Extract parses html and returns every candidate entity matching
// entityType from both the structured-data phase and the rules phase,
// structured-data candidates first (spec §4.G: "both phases contribute;
// structured-data candidates come first in the output list"). Phase 1 can
// surface several types on one page (e.g. a "what's on" listing mixing
// festivals and sports fixtures); Extract itself discards every candidate
// whose resolved type does not equal entityType.
func Extract(html string, entityType models.EntityType, spec *models.RuleSpec, sourceID, pageURL string) ([]*models.Entity, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	structured := filterByType(extractStructured(doc, sourceID, pageURL), entityType)

	if spec == nil {
		return structured, nil
	}

	ruleBased := filterByType(extractRules(doc, spec, entityType, sourceID, pageURL), entityType)
	return append(structured, ruleBased...), nil
}

// filterByType discards any candidate whose Type does not match
// entityType (spec §4.G: "candidate type must equal requested entity_type
// else discarded").
func filterByType(entities []*models.Entity, entityType models.EntityType) []*models.Entity {
	out := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Type == entityType {
			out = append(out, e)
		}
	}
	return out
}
