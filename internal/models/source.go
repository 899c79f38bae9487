package models

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var sourceValidator = validator.New()

// CrawlFrequency constrains Source.CrawlFreq (spec §3).
type CrawlFrequency string

const (
	CrawlFreqDaily   CrawlFrequency = "daily"
	CrawlFreqWeekly  CrawlFrequency = "weekly"
	CrawlFreqMonthly CrawlFrequency = "monthly"
)

// EntityType constrains Source.Type and Entity.Type (spec §3).
type EntityType string

const (
	EntityTypeEvents    EntityType = "events"
	EntityTypeFestivals EntityType = "festivals"
	EntityTypeSports    EntityType = "sports"
)

// ValidEntityTypes lists the closed set of entity types the registry accepts.
var ValidEntityTypes = []EntityType{EntityTypeEvents, EntityTypeFestivals, EntityTypeSports}

func isValidEntityType(t string) bool {
	for _, v := range ValidEntityTypes {
		if string(v) == t {
			return true
		}
	}
	return false
}

// truthySet is the closed truthy vocabulary for CSV boolean coercion
// (spec §4.A): {1,true,yes,y} case-insensitive.
var truthySet = map[string]bool{"1": true, "true": true, "yes": true, "y": true}

func coerceBool(raw string) bool {
	return truthySet[strings.ToLower(strings.TrimSpace(raw))]
}

// Source is one row of the source registry CSV (spec §3, §4.A). The
// validator tags cover the field-shape checks a struct validator expresses
// well (required, bounds); the enum/scheme/file-existence checks in
// validateCommon below need row-specific logic a tag can't carry.
type Source struct {
	SourceID     string  `validate:"required"`
	BaseURL      string  `validate:"required,url"`
	Type         EntityType
	Country      string `validate:"len=2"` // ISO-3166-alpha-2
	RobotsOK     bool
	SitemapURL   string
	CSSRulesPath string `validate:"required"` // resolved absolute/relative-to-CSV path
	CrawlFreq    CrawlFrequency
	MaxQPS       float64 `validate:"gt=0"`
	Concurrency  int     `validate:"gt=0"`
	Enabled      bool
}

// ValidateStrict is used by the strict loader (load_sources): it raises on
// any invalid *enabled* row, including a missing rule file.
func (s *Source) ValidateStrict() error {
	if !s.Enabled {
		return nil
	}
	return s.validateCommon(true)
}

// ValidateLenient runs the same field checks as ValidateStrict but never
// checks that css_rules_path exists; callers inspect the returned error's
// message as the "detail" string. The sources registry's ValidateSources
// uses ValidateStrict, not this method.
func (s *Source) ValidateLenient() error {
	return s.validateCommon(false)
}

func (s *Source) validateCommon(checkRuleFileExists bool) error {
	if err := sourceValidator.Struct(s); err != nil {
		return fmt.Errorf("%v", err)
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base_url must be http or https: %q", s.BaseURL)
	}

	if !isValidEntityType(string(s.Type)) {
		return fmt.Errorf("type must be one of events, festivals, sports: %q", s.Type)
	}

	switch s.CrawlFreq {
	case CrawlFreqDaily, CrawlFreqWeekly, CrawlFreqMonthly:
	default:
		return fmt.Errorf("crawl_freq must be one of daily, weekly, monthly: %q", s.CrawlFreq)
	}

	if checkRuleFileExists {
		if _, err := os.Stat(s.CSSRulesPath); err != nil {
			return fmt.Errorf("css_rules_path does not exist: %s", s.CSSRulesPath)
		}
	}

	return nil
}

// SourceRow is the raw CSV row shape before coercion, keyed by header name.
type SourceRow map[string]string

// NewSourceFromRow coerces a raw CSV row into a Source, resolving
// css_rules_path relative to csvDir (spec §4.A).
func NewSourceFromRow(row SourceRow, csvDir string) (*Source, error) {
	s := &Source{
		SourceID:   strings.TrimSpace(row["source_id"]),
		BaseURL:    strings.TrimSpace(row["base_url"]),
		Type:       EntityType(strings.TrimSpace(row["type"])),
		Country:    strings.ToUpper(strings.TrimSpace(row["country"])),
		RobotsOK:   coerceBool(row["robots_ok"]),
		SitemapURL: strings.TrimSpace(row["sitemap_url"]),
		CrawlFreq:  CrawlFrequency(strings.TrimSpace(row["crawl_freq"])),
		Enabled:    coerceBool(row["enabled"]),
	}

	s.MaxQPS = 1.0
	if raw := strings.TrimSpace(row["max_qps"]); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("max_qps is not a number: %q", raw)
		}
		s.MaxQPS = v
	}

	s.Concurrency = 1
	if raw := strings.TrimSpace(row["concurrency"]); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("concurrency is not an integer: %q", raw)
		}
		s.Concurrency = v
	}

	if raw := strings.TrimSpace(row["css_rules_path"]); raw != "" {
		if filepath.IsAbs(raw) {
			s.CSSRulesPath = raw
		} else {
			s.CSSRulesPath = filepath.Join(csvDir, raw)
		}
	}

	return s, nil
}
