// Package metrics implements the Metrics Registry (spec §4.M): a
// pre-seeded set of run counters, exported as a JSON snapshot at the end
// of a run. Counter storage and gathering are grounded on
// prometheus/client_golang, the counter/registry library used elsewhere
// in the example corpus (e.g. nmxmxh-master-ovasabi) for exactly this
// kind of in-process counter bookkeeping.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/listingcrawl/listingcrawl/internal/common"
)

// names is the closed, pre-seeded counter vocabulary (spec §4.M).
var names = []string{
	"pages_fetched",
	"http_2xx",
	"http_3xx",
	"http_4xx",
	"http_5xx",
	"retries",
	"unchanged_skips",
	"parse_failures",
	"validates_failed",
	"entities_new",
	"entities_updated",
	"quarantine_rows",
	"duplicates",
	"run_duration_ms",
}

// Registry wraps a dedicated prometheus.Registry so run metrics never
// collide with any process-wide default registry a host application
// might also use.
type Registry struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	counters map[string]prometheus.Counter
}

// New builds a Registry with every counter name in names pre-seeded at
// zero, so snapshot() always reports the full vocabulary even when a
// counter was never incremented (spec §4.M).
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter, len(names)),
	}

	for _, name := range names {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listingcrawl_" + name,
			Help: name,
		})
		r.registry.MustRegister(c)
		r.counters[name] = c
	}

	return r
}

// Incr adds n to the named counter. n must be >= 0, per prometheus
// Counter semantics; an unknown name is a programmer error and panics,
// matching spec §4.M's closed vocabulary assumption.
func (r *Registry) Incr(name string, n float64) {
	r.mu.Lock()
	c, ok := r.counters[name]
	r.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("metrics: unknown counter %q", name))
	}
	c.Add(n)
}

// Snapshot returns the current value of every counter.
func (r *Registry) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(names))

	families, err := r.registry.Gather()
	if err != nil {
		return out
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			name := stripPrefix(family.GetName())
			out[name] = int64(m.GetCounter().GetValue())
		}
	}

	for _, name := range names {
		if _, ok := out[name]; !ok {
			out[name] = 0
		}
	}

	return out
}

func stripPrefix(fqName string) string {
	const prefix = "listingcrawl_"
	if len(fqName) > len(prefix) && fqName[:len(prefix)] == prefix {
		return fqName[len(prefix):]
	}
	return fqName
}

// Export writes the snapshot as a JSON document to the file at path, with
// runID recorded in its run_id field, matching the teacher's job-log-as-JSON persistence convention
// (spec §4.M, §6).
func (r *Registry) Export(path, runID string) error {
	snapshot := r.Snapshot()

	doc := struct {
		RunID     string           `json:"run_id"`
		Metrics   map[string]int64 `json:"metrics"`
		ExportedAt time.Time       `json:"exported_at"`
	}{
		RunID:      runID,
		Metrics:    snapshot,
		ExportedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling metrics export: %v", common.ErrFatal, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating metrics export dir: %v", common.ErrFatal, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing metrics export %s: %v", common.ErrFatal, path, err)
	}

	return nil
}

// RecordDuration returns a stop function that, when called, adds the
// elapsed milliseconds since now to the named counter. Intended for
// `defer r.RecordDuration("run_duration_ms")()` around a scoped
// block (spec §4.M).
func (r *Registry) RecordDuration(name string) func() {
	start := time.Now()
	return func() {
		r.Incr(name, float64(time.Since(start).Milliseconds()))
	}
}
