// Package schema implements the Schema Registry (spec §4.I): loading and
// compiling per-entity-type JSON Schema documents, then pruning and
// validating payloads against them. Out-of-pack dependency
// santhosh-tekuri/jsonschema/v5 is used here because the only
// schema-related library in the example corpus, invopop/jsonschema,
// generates schemas from Go structs rather than validating arbitrary
// JSON documents — the wrong direction for this component's contract.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// ValidationResult is the validate() contract's return shape (spec §4.I).
type ValidationResult struct {
	OK     bool
	Errors []string
}

// compiled holds a compiled schema plus the set of property names it
// declares at the top level, used by prune().
type compiled struct {
	validator  *jsonschema.Schema
	properties map[string]bool
}

// Registry memoizes compiled schemas for each entity type, loaded from
// <root>/<type_singular>.schema.json (spec §4.I).
type Registry struct {
	root string

	mu       sync.Mutex
	compiled map[models.EntityType]*compiled
}

// NewRegistry builds a Registry rooted at root.
func NewRegistry(root string) *Registry {
	return &Registry{
		root:     root,
		compiled: make(map[models.EntityType]*compiled),
	}
}

func singular(t models.EntityType) string {
	switch t {
	case models.EntityTypeEvents:
		return "event"
	case models.EntityTypeFestivals:
		return "festival"
	case models.EntityTypeSports:
		return "sport"
	default:
		return string(t)
	}
}

// load compiles (and memoizes) the schema for entityType. A missing
// schema file is fatal (spec §4.I: "missing schema is fatal").
func (r *Registry) load(entityType models.EntityType) (*compiled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.compiled[entityType]; ok {
		return c, nil
	}

	path := filepath.Join(r.root, singular(entityType)+".schema.json")

	compiler := jsonschema.NewCompiler()
	validator, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling schema %s: %v", common.ErrFatal, path, err)
	}

	properties, err := topLevelProperties(path)
	if err != nil {
		return nil, err
	}

	c := &compiled{validator: validator, properties: properties}
	r.compiled[entityType] = c
	return c, nil
}

// topLevelProperties reads the schema file's own JSON to recover the set
// of declared top-level property names, used by prune() (spec §4.I).
func topLevelProperties(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema %s: %v", common.ErrFatal, path, err)
	}

	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing schema %s: %v", common.ErrFatal, path, err)
	}

	out := make(map[string]bool, len(doc.Properties))
	for k := range doc.Properties {
		out[k] = true
	}
	return out, nil
}

// Prune returns a copy of payload containing only keys declared as
// top-level properties in entityType's schema (spec §4.I).
func (r *Registry) Prune(entityType models.EntityType, payload map[string]interface{}) (map[string]interface{}, error) {
	c, err := r.load(entityType)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if c.properties[k] {
			out[k] = v
		}
	}
	return out, nil
}

// Validate checks payload against entityType's compiled schema, returning
// one "<json_path>: <message>" string per violation (spec §4.I).
func (r *Registry) Validate(entityType models.EntityType, payload map[string]interface{}) (*ValidationResult, error) {
	c, err := r.load(entityType)
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateInterface(payload); err != nil {
		var verr *jsonschema.ValidationError
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			verr = ve
		}

		var messages []string
		if verr != nil {
			for _, cause := range flattenCauses(verr) {
				messages = append(messages, fmt.Sprintf("%s: %s", cause.InstanceLocation, cause.Message))
			}
		} else {
			messages = []string{err.Error()}
		}

		return &ValidationResult{OK: false, Errors: messages}, nil
	}

	return &ValidationResult{OK: true}, nil
}

// flattenCauses walks a jsonschema.ValidationError tree into its leaf
// causes, since the library reports nested sub-schema failures as a tree.
func flattenCauses(verr *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return []*jsonschema.ValidationError{verr}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range verr.Causes {
		out = append(out, flattenCauses(cause)...)
	}
	return out
}
