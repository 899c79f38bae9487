// Package rules loads RuleSpec documents from YAML, the declarative
// selector schema that drives the Extractor's rules-fallback phase
// (spec §4.G, §6).
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// Load reads and parses a RuleSpec YAML document from path.
func Load(path string) (*models.RuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading rule spec %s: %v", common.ErrConfig, path, err)
	}

	var spec models.RuleSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: parsing rule spec %s: %v", common.ErrConfig, path, err)
	}

	return &spec, nil
}
