package extractor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// schemaTypeVocab maps schema.org JSON-LD @type labels onto the closed
// {events, festivals, sports} vocabulary (spec §4.G).
var schemaTypeVocab = map[string]models.EntityType{
	"event":           models.EntityTypeEvents,
	"musicevent":      models.EntityTypeEvents,
	"theaterevent":    models.EntityTypeEvents,
	"exhibitionevent": models.EntityTypeEvents,
	"comedyevent":     models.EntityTypeEvents,
	"festival":        models.EntityTypeFestivals,
	"foodevent":       models.EntityTypeFestivals,
	"sportsevent":     models.EntityTypeSports,
}

// extractStructured scans doc for JSON-LD script blocks and returns every
// node whose @type maps into the closed entity vocabulary, flattening
// @graph containers and top-level arrays (spec §4.G phase 1).
func extractStructured(doc *goquery.Document, sourceID, pageURL string) []*models.Entity {
	var nodes []map[string]interface{}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		raw := s.Text()
		if strings.TrimSpace(raw) == "" {
			return
		}

		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}

		nodes = append(nodes, flattenJSONLD(data)...)
	})

	var entities []*models.Entity
	for _, node := range nodes {
		entityType, ok := matchSchemaType(node)
		if !ok {
			continue
		}
		entities = append(entities, entityFromJSONLD(node, entityType, sourceID, pageURL))
	}

	return entities
}

// flattenJSONLD expands @graph and @list containers and arrays into a
// flat list of JSON-LD object nodes.
func flattenJSONLD(data interface{}) []map[string]interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		if graph, ok := v["@graph"]; ok {
			return flattenJSONLD(graph)
		}
		if list, ok := v["@list"]; ok {
			return flattenJSONLD(list)
		}
		return []map[string]interface{}{v}
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range v {
			out = append(out, flattenJSONLD(item)...)
		}
		return out
	default:
		return nil
	}
}

func matchSchemaType(node map[string]interface{}) (models.EntityType, bool) {
	raw, ok := node["@type"]
	if !ok {
		return "", false
	}

	labels := stringList(raw)
	for _, label := range labels {
		if t, ok := schemaTypeVocab[strings.ToLower(label)]; ok {
			return t, true
		}
	}
	return "", false
}

// stringList normalises a JSON-LD value that may be a single string or a
// list of strings (schema.org allows @type to be either).
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func entityFromJSONLD(node map[string]interface{}, entityType models.EntityType, sourceID, pageURL string) *models.Entity {
	e := &models.Entity{
		Type:     entityType,
		SourceID: sourceID,
		URL:      pageURL,
	}

	e.Title = stringField(node, "name")
	e.Start = stringField(node, "startDate")
	e.End = stringField(node, "endDate")
	e.Timezone = stringField(node, "eventTimeZone")
	e.TimeSlots = timeSlotsFromNode(node)

	if loc, ok := node["location"].(map[string]interface{}); ok {
		e.VenueName = stringField(loc, "name")
		if addr, ok := loc["address"].(map[string]interface{}); ok {
			e.Address = stringField(addr, "streetAddress")
			e.City = stringField(addr, "addressLocality")
			e.Country = stringField(addr, "addressCountry")
		} else if addrStr, ok := loc["address"].(string); ok {
			e.Address = addrStr
		}
	}

	if organizer, ok := node["organizer"].(map[string]interface{}); ok {
		e.Organizer = stringField(organizer, "name")
	}

	if u := stringField(node, "url"); u != "" {
		e.URL = u
	}

	e.Images = append(e.Images, imagesFromJSONLD(node["image"])...)

	if offers := firstOffer(node["offers"]); offers != nil {
		e.PriceText = stringField(offers, "price")
	}

	return e
}

// timeSlotsFromNode composes the top-level start/end window with a slot
// for every subEvent's own start/end (spec §4.G: "time_slots composed
// from the top-level window plus any sub-events").
func timeSlotsFromNode(node map[string]interface{}) []models.TimeSlot {
	var slots []models.TimeSlot

	if start, end := stringField(node, "startDate"), stringField(node, "endDate"); start != "" || end != "" {
		slots = append(slots, models.TimeSlot{Start: start, End: end})
	}

	for _, sub := range subEvents(node["subEvent"]) {
		if start, end := stringField(sub, "startDate"), stringField(sub, "endDate"); start != "" || end != "" {
			slots = append(slots, models.TimeSlot{Start: start, End: end})
		}
	}

	return slots
}

func subEvents(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{t}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func firstOffer(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		if len(t) == 0 {
			return nil
		}
		if m, ok := t[0].(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

func imagesFromJSONLD(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]interface{}:
		if u := stringField(t, "url"); u != "" {
			return []string{u}
		}
	}
	return nil
}

func stringField(node map[string]interface{}, key string) string {
	if v, ok := node[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
