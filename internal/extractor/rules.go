package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// fieldExpr is a parsed field expression from a RuleSpec: a CSS selector
// optionally suffixed with `@attr` (extract an attribute instead of text;
// `@attr|text` falls back to the text content when the attribute is
// absent) and optionally suffixed with `[]` (collect every match instead
// of the first), per spec §4.G's "selector[@attr][[]]" grammar.
type fieldExpr struct {
	selector string
	attr     string // empty means text content
	multi    bool
}

func parseFieldExpr(raw string) fieldExpr {
	expr := strings.TrimSpace(raw)

	multi := false
	if strings.HasSuffix(expr, "[]") {
		multi = true
		expr = strings.TrimSuffix(expr, "[]")
	}

	attr := ""
	if idx := strings.Index(expr, "@"); idx >= 0 {
		attr = strings.TrimSpace(expr[idx+1:])
		expr = strings.TrimSpace(expr[:idx])
	}

	return fieldExpr{selector: strings.TrimSpace(expr), attr: attr, multi: multi}
}

// resolve evaluates a fieldExpr against scope, returning the single
// extracted value (first match, or empty if none).
func (f fieldExpr) resolve(scope *goquery.Selection) string {
	sel := scope
	if f.selector != "" {
		sel = scope.Find(f.selector)
	}
	if sel.Length() == 0 {
		return ""
	}
	return f.valueOf(sel.First())
}

// resolveAll evaluates a fieldExpr against every match in scope.
func (f fieldExpr) resolveAll(scope *goquery.Selection) []string {
	sel := scope
	if f.selector != "" {
		sel = scope.Find(f.selector)
	}

	var out []string
	sel.Each(func(_ int, item *goquery.Selection) {
		if v := f.valueOf(item); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func (f fieldExpr) valueOf(item *goquery.Selection) string {
	if f.attr != "" {
		attr, textFallback := strings.CutSuffix(f.attr, "|text")
		if v, ok := item.Attr(attr); ok || !textFallback {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(item.Text())
}

// extractRules runs the RuleSpec fallback (spec §4.G phase 2): scope to
// list_item elements, evaluate each configured field expression per item,
// and compose time_slots by splitting the time_slots field's raw text on
// "|" or "-".
func extractRules(doc *goquery.Document, spec *models.RuleSpec, entityType models.EntityType, sourceID, pageURL string) []*models.Entity {
	items := doc.Find(spec.ListItemSelector())

	exprs := make(map[string]fieldExpr, len(spec.Fields))
	for field, raw := range spec.Fields {
		exprs[field] = parseFieldExpr(raw)
	}

	var entities []*models.Entity
	items.Each(func(_ int, item *goquery.Selection) {
		e := &models.Entity{
			Type:     entityType,
			SourceID: sourceID,
			URL:      pageURL,
			Timezone: spec.DateScopes.Timezone,
		}

		e.Title = exprs["title"].resolve(item)
		e.VenueName = exprs["venue_name"].resolve(item)
		e.Address = exprs["address"].resolve(item)
		e.City = exprs["city"].resolve(item)
		e.Country = exprs["country"].resolve(item)
		e.Start = exprs["start"].resolve(item)
		e.End = exprs["end"].resolve(item)
		e.PriceText = exprs["price_text"].resolve(item)
		e.Organizer = exprs["organizer"].resolve(item)
		e.SportType = exprs["sport_type"].resolve(item)

		if expr, ok := exprs["url"]; ok {
			if u := expr.resolve(item); u != "" {
				e.URL = u
			}
		}

		if expr, ok := exprs["emails"]; ok {
			e.Emails = expr.resolveAll(item)
		}
		if expr, ok := exprs["phones"]; ok {
			e.Phones = expr.resolveAll(item)
		}
		if expr, ok := exprs["images"]; ok {
			e.Images = expr.resolveAll(item)
		}
		if expr, ok := exprs["taxonomy"]; ok {
			e.Taxonomy = expr.resolveAll(item)
		}

		if expr, ok := exprs["time_slots"]; ok {
			// time_slots always collects every matched element, regardless
			// of the expression's []-suffix, since a single list item can
			// carry several distinct time elements (spec §4.G).
			for _, raw := range expr.resolveAll(item) {
				start, end, ok := splitTimeSlot(raw)
				if !ok {
					continue
				}
				e.TimeSlots = append(e.TimeSlots, models.TimeSlot{Start: start, End: end})
				if e.Start == "" {
					e.Start = start
				}
				if e.End == "" {
					e.End = end
				}
			}
		}

		if e.Title == "" {
			return // nothing usable extracted from this list item
		}

		entities = append(entities, e)
	})

	return entities
}

// splitTimeSlot splits a raw "start - end" or "start | end" string into
// its two halves (spec §4.G: "time_slots split on | or -").
func splitTimeSlot(raw string) (start, end string, ok bool) {
	for _, sep := range []string{"|", "-"} {
		if idx := strings.Index(raw, sep); idx >= 0 {
			return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(sep):]), true
		}
	}
	return strings.TrimSpace(raw), "", true
}
