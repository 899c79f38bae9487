package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	j := &Job{Attempts: 1, MaxAttempts: DefaultMaxAttempts}
	assert.True(t, j.ShouldRetry())

	j.Attempts = DefaultMaxAttempts
	assert.False(t, j.ShouldRetry())
}

func TestMetaAccessorsReturnDefaultsWhenMetadataNil(t *testing.T) {
	j := &Job{}

	assert.Equal(t, "", j.MetaString("css_rules_path"))
	assert.Equal(t, 2.5, j.MetaFloat("max_qps", 2.5))
	assert.Equal(t, 4, j.MetaInt("concurrency", 4))
}

func TestMetaAccessorsReadTypedValues(t *testing.T) {
	j := &Job{Metadata: map[string]interface{}{
		"css_rules_path": "/rules/events.yaml",
		"max_qps":        1.5,
		"concurrency":    3,
	}}

	assert.Equal(t, "/rules/events.yaml", j.MetaString("css_rules_path"))
	assert.Equal(t, 1.5, j.MetaFloat("max_qps", 0))
	assert.Equal(t, 3, j.MetaInt("concurrency", 0))
}

func TestMetaIntAcceptsFloatJSONNumber(t *testing.T) {
	j := &Job{Metadata: map[string]interface{}{"concurrency": float64(5)}}
	assert.Equal(t, 5, j.MetaInt("concurrency", 0))
}

func TestMetaAccessorsFallBackOnWrongType(t *testing.T) {
	j := &Job{Metadata: map[string]interface{}{"max_qps": "not-a-number"}}
	assert.Equal(t, 1.0, j.MetaFloat("max_qps", 1.0))
}
