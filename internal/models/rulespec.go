package models

// RuleSpec is the declarative selector-based extraction schema for a
// source's list page (spec §3, §6 "RuleSpec YAML"). Only its parsed shape
// is consumed by the core — the YAML schema itself is an external
// collaborator concern (spec §1).
type RuleSpec struct {
	Selectors struct {
		ListItem string `yaml:"list_item"`
	} `yaml:"selectors"`
	Fields     map[string]string `yaml:"fields"`
	Pagination struct {
		NextSelector string `yaml:"next_selector"`
		MonthGrid    bool   `yaml:"month_grid"`
		MaxPages     int    `yaml:"max_pages"`
	} `yaml:"pagination"`
	DateScopes struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"date_scopes"`
}

// ListItemSelector returns the configured root selector, defaulting to
// "body" per spec §3.
func (r *RuleSpec) ListItemSelector() string {
	if r.Selectors.ListItem == "" {
		return "body"
	}
	return r.Selectors.ListItem
}

// MaxPages returns the configured pagination cap, defaulting to 1 (no
// pagination follow-ups) per spec §3 ("pagination_max_pages (≥1)").
func (r *RuleSpec) MaxPages() int {
	if r.Pagination.MaxPages < 1 {
		return 1
	}
	return r.Pagination.MaxPages
}
