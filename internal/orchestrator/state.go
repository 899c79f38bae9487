package orchestrator

import (
	"sync"

	"github.com/listingcrawl/listingcrawl/internal/dedup"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// RunState is the mutable state one run's jobs all contribute to: the
// dedup index, the per-type in-memory accepted-entity index, and the run
// manifest (spec §3: "the run owns its Metrics, Dedup index, in-memory
// per-type results index, checkpoint state, manifest"). A single mutex
// guards every field workers touch concurrently, matching spec §9's
// cooperative-suspension note that a truly parallel runtime needs explicit
// mutual exclusion around exactly this state.
type RunState struct {
	Manifest *models.RunManifest

	dedupIndex *dedup.Index
	merger     *dedup.Merger

	mu      sync.Mutex
	results map[models.EntityType]map[string]*models.Entity
}

// NewRunState builds an empty RunState for runID.
func NewRunState(runID string) *RunState {
	return &RunState{
		Manifest:   models.NewRunManifest(runID),
		dedupIndex: dedup.NewIndex(),
		merger:     dedup.NewMerger(),
		results:    make(map[models.EntityType]map[string]*models.Entity),
	}
}

// ResultsFor returns every entity currently accepted for entityType, used
// for the end-of-run gold-tier commit.
func (s *RunState) ResultsFor(entityType models.EntityType) []*models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.results[entityType]
	out := make([]*models.Entity, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	return out
}

func (s *RunState) putResult(entityType models.EntityType, key string, e *models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.results[entityType]
	if !ok {
		byKey = make(map[string]*models.Entity)
		s.results[entityType] = byKey
	}
	byKey[key] = e
}

func (s *RunState) getResult(entityType models.EntityType, key string) (*models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.results[entityType]
	if !ok {
		return nil, false
	}
	e, ok := byKey[key]
	return e, ok
}

func (s *RunState) recordOutputPath(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Manifest.OutputPaths = append(s.Manifest.OutputPaths, path)
}

func (s *RunState) setCount(entityType models.EntityType, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Manifest.CountsByType[string(entityType)] = n
}

func (s *RunState) incrRowsNew(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Manifest.StatsFor(sourceID).RowsNew++
}

func (s *RunState) incrRowsUpdated(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Manifest.StatsFor(sourceID).RowsUpdated++
}

func (s *RunState) incrRejects(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Manifest.StatsFor(sourceID).Rejects++
}
