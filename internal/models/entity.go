package models

// TimeSlot is one {start, end} window attached to an Entity (spec §3).
type TimeSlot struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Entity is the polymorphic record produced by the extractor and carried
// through normalise/validate/dedup/merge/commit (spec §3).
//
// The `Type` discriminator selects the variant; `SportType` is only
// meaningful when Type == EntityTypeSports.
type Entity struct {
	Type EntityType `json:"type"`

	SourceID   string     `json:"source_id"`
	Title      string     `json:"title"`
	VenueName  string     `json:"venue_name,omitempty"`
	Address    string     `json:"address,omitempty"`
	City       string     `json:"city,omitempty"`
	Country    string     `json:"country,omitempty"`
	TimeSlots  []TimeSlot `json:"time_slots,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
	Start      string     `json:"start,omitempty"`
	End        string     `json:"end,omitempty"`
	PriceText  string     `json:"price_text,omitempty"`
	PriceValue float64    `json:"price_value,omitempty"`
	Organizer  string     `json:"organizer,omitempty"`
	URL        string     `json:"url,omitempty"`
	Emails     []string   `json:"emails,omitempty"`
	Phones     []string   `json:"phones,omitempty"`
	Images     []string   `json:"images,omitempty"`
	Taxonomy   []string   `json:"taxonomy,omitempty"`

	// sports-only
	SportType string `json:"sport_type,omitempty"`
}

// AsMap returns a shallow map view keyed by JSON field name, used by the
// schema registry's prune() and by the gold-tier CSV column-union writer.
// The scalar string fields (type through url) are always included, even
// when empty; price_value, time_slots, emails, phones, images and taxonomy
// are included only when non-empty; sport_type is included for sports
// entities only, even when empty.
func (e *Entity) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"type":       string(e.Type),
		"source_id":  e.SourceID,
		"title":      e.Title,
		"venue_name": e.VenueName,
		"address":    e.Address,
		"city":       e.City,
		"country":    e.Country,
		"timezone":   e.Timezone,
		"start":      e.Start,
		"end":        e.End,
		"price_text": e.PriceText,
		"organizer":  e.Organizer,
		"url":        e.URL,
	}
	if e.PriceValue != 0 {
		m["price_value"] = e.PriceValue
	}
	if len(e.TimeSlots) > 0 {
		slots := make([]map[string]string, 0, len(e.TimeSlots))
		for _, ts := range e.TimeSlots {
			slots = append(slots, map[string]string{"start": ts.Start, "end": ts.End})
		}
		m["time_slots"] = slots
	}
	if len(e.Emails) > 0 {
		m["emails"] = e.Emails
	}
	if len(e.Phones) > 0 {
		m["phones"] = e.Phones
	}
	if len(e.Images) > 0 {
		m["images"] = e.Images
	}
	if len(e.Taxonomy) > 0 {
		m["taxonomy"] = e.Taxonomy
	}
	if e.Type == EntityTypeSports {
		m["sport_type"] = e.SportType
	}
	return m
}
