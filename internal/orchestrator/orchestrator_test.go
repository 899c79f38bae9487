package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/checkpoint"
	"github.com/listingcrawl/listingcrawl/internal/fetchcache"
	"github.com/listingcrawl/listingcrawl/internal/fetcher"
	"github.com/listingcrawl/listingcrawl/internal/metrics"
	"github.com/listingcrawl/listingcrawl/internal/models"
	"github.com/listingcrawl/listingcrawl/internal/normalizer"
	"github.com/listingcrawl/listingcrawl/internal/robots"
	"github.com/listingcrawl/listingcrawl/internal/schema"
	"github.com/listingcrawl/listingcrawl/internal/storage"
)

const twoEventListingPage = `<html><head>
<script type="application/ld+json">
[
  {
    "@type": "MusicEvent",
    "name": "Jazz Night",
    "startDate": "2026-03-05T19:00:00Z",
    "endDate": "2026-03-05T22:00:00Z",
    "location": {"name": "The Blue Room", "address": {"streetAddress": "1 Main St", "addressLocality": "Melbourne", "addressCountry": "AU"}},
    "offers": {"price": "25.00"}
  },
  {
    "@type": "ExhibitionEvent",
    "name": "Art Expo",
    "startDate": "2026-03-06T10:00:00Z",
    "endDate": "2026-03-06T18:00:00Z",
    "location": {"name": "City Gallery", "address": "2 Gallery Way, Melbourne"}
  }
]
</script>
</head><body></body></html>`

type harness struct {
	orch     *Orchestrator
	silver   string
	gold     string
	quarDir  string
	manifest string
}

func newHarness(t *testing.T, handler http.HandlerFunc) (*harness, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := arbor.NewLogger()

	robotsCache := robots.NewCache("listingcrawl-test", logger)
	fetchCache, err := fetchcache.Load(filepath.Join(t.TempDir(), "etags.json"))
	require.NoError(t, err)

	f := fetcher.New(5e9, "listingcrawl-test", t.TempDir(), logger)

	schemaReg := schema.NewRegistry("../../testdata/schemas")
	norm := normalizer.New(normalizer.DefaultTaxonomyVocab)
	cp := checkpoint.New(t.TempDir())

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	silver := filepath.Join(t.TempDir(), "silver")
	gold := filepath.Join(t.TempDir(), "gold")
	quarDir := filepath.Join(t.TempDir(), "quarantine")
	manifest := filepath.Join(t.TempDir(), "manifests")

	writer := storage.NewWriter(silver, gold, db)
	m := metrics.New()

	orch := New(robotsCache, fetchCache, f, schemaReg, norm, cp, writer, m, quarDir, 1000, logger)

	return &harness{orch: orch, silver: silver, gold: gold, quarDir: quarDir, manifest: manifest}, srv
}

func TestRunJobAcceptsBothListedEvents(t *testing.T) {
	h, srv := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoEventListingPage))
	})

	state := NewRunState("run-1")
	job := &models.Job{JobID: "job-1", SourceID: "src-1", EntityType: models.EntityTypeEvents, URL: srv.URL + "/whats-on", MaxAttempts: 3}

	err := h.orch.RunJob(context.Background(), "run-1", job, state)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, job.Status)

	results := state.ResultsFor(models.EntityTypeEvents)
	require.Len(t, results, 2)

	titles := []string{results[0].Title, results[1].Title}
	assert.Contains(t, titles, "Jazz Night")
	assert.Contains(t, titles, "Art Expo")
}

func TestRunJobQuarantinesEntityMissingRequiredFields(t *testing.T) {
	h, srv := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><script type="application/ld+json">
		{"@type": "Event", "startDate": "2026-03-05T19:00:00Z"}
		</script></head><body></body></html>`))
	})

	state := NewRunState("run-1")
	job := &models.Job{JobID: "job-1", SourceID: "src-1", EntityType: models.EntityTypeEvents, URL: srv.URL + "/whats-on", MaxAttempts: 3}

	err := h.orch.RunJob(context.Background(), "run-1", job, state)
	require.NoError(t, err)

	assert.Empty(t, state.ResultsFor(models.EntityTypeEvents), "a title-less event must fail validation, not be accepted")
	assert.Equal(t, 1, state.Manifest.StatsFor("src-1").Rejects)
}

func TestRunJobSucceedsTriviallyOnRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := arbor.NewLogger()
	robotsCache := robots.NewCache("listingcrawl-test", logger)
	fetchCache, err := fetchcache.Load(filepath.Join(t.TempDir(), "etags.json"))
	require.NoError(t, err)
	f := fetcher.New(5e9, "listingcrawl-test", t.TempDir(), logger)
	schemaReg := schema.NewRegistry("../../testdata/schemas")
	norm := normalizer.New(normalizer.DefaultTaxonomyVocab)
	cp := checkpoint.New(t.TempDir())
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	writer := storage.NewWriter(filepath.Join(t.TempDir(), "silver"), filepath.Join(t.TempDir(), "gold"), db)
	m := metrics.New()

	orch := New(robotsCache, fetchCache, f, schemaReg, norm, cp, writer, m, t.TempDir(), 1000, logger)

	state := NewRunState("run-1")
	job := &models.Job{JobID: "job-1", SourceID: "src-1", EntityType: models.EntityTypeEvents, URL: srv.URL + "/whats-on", MaxAttempts: 3}

	err = orch.RunJob(context.Background(), "run-1", job, state)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, job.Status)
	assert.Empty(t, state.ResultsFor(models.EntityTypeEvents))
}

func TestFinishRunWritesGoldAndManifest(t *testing.T) {
	h, srv := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoEventListingPage))
	})

	state := NewRunState("run-1")
	job := &models.Job{JobID: "job-1", SourceID: "src-1", EntityType: models.EntityTypeEvents, URL: srv.URL + "/whats-on", MaxAttempts: 3}
	require.NoError(t, h.orch.RunJob(context.Background(), "run-1", job, state))

	runDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	manifest, err := h.orch.FinishRun(runDate, h.manifest, state, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, manifest.CountsByType[string(models.EntityTypeEvents)])
	assert.NotEmpty(t, manifest.OutputPaths)
	assert.Equal(t, 0, manifest.ExitCode)
}
