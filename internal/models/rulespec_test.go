package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListItemSelectorDefaultsToBody(t *testing.T) {
	r := &RuleSpec{}
	assert.Equal(t, "body", r.ListItemSelector())

	r.Selectors.ListItem = ".listing"
	assert.Equal(t, ".listing", r.ListItemSelector())
}

func TestMaxPagesDefaultsToOne(t *testing.T) {
	r := &RuleSpec{}
	assert.Equal(t, 1, r.MaxPages())

	r.Pagination.MaxPages = 0
	assert.Equal(t, 1, r.MaxPages())

	r.Pagination.MaxPages = 5
	assert.Equal(t, 5, r.MaxPages())
}
