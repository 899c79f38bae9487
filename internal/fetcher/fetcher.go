// Package fetcher implements the Fetcher (spec §4.F): robots-checked,
// conditional, retrying HTTP GETs that persist successful responses as
// bronze-tier snapshots. Retry/backoff shape is grounded on the teacher's
// services/crawler/retry.go RetryPolicy; bronze snapshot hashing is
// grounded on services/crawler/image_storage.go's sha256-keyed on-disk
// layout.
package fetcher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/fetchcache"
	"github.com/listingcrawl/listingcrawl/internal/metrics"
	"github.com/listingcrawl/listingcrawl/internal/models"
	"github.com/listingcrawl/listingcrawl/internal/robots"
)

const maxAttempts = 4

var backoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// retryableStatus mirrors the teacher's RetryPolicy.RetryableStatusCodes
// (services/crawler/retry.go): timeouts, rate limiting, and server errors
// are worth a retry, other 4xx responses are not.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// statusError carries an HTTP status so the retry loop can tell a
// transport-level failure (always retryable) from an application-level
// status error (retryable only via retryableStatus).
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// Fetcher performs conditional, retrying, robots-respecting GET requests.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	bronzeRoot string
	logger     arbor.ILogger
}

// New builds a Fetcher with the given request timeout.
func New(timeout time.Duration, userAgent, bronzeRoot string, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		bronzeRoot: bronzeRoot,
		logger:     logger,
	}
}

// FetchDocument implements spec §4.F's contract: robots-check, apply
// conditional headers, retry transport errors with exponential backoff,
// and persist 2xx bodies as bronze snapshots. Returns (nil, nil) on a 304.
// A robots disallow is not reported as (nil, nil): it returns an error
// wrapping common.ErrNotAllowed, which callers treat as a skip.
func (f *Fetcher) FetchDocument(url string, robotsCache *robots.Cache, cache *fetchcache.Cache, m *metrics.Registry) (*models.Snapshot, error) {
	allowed, err := robotsCache.Allowed(url)
	if err != nil {
		return nil, fmt.Errorf("%w: checking robots for %s: %v", common.ErrTransport, url, err)
	}
	if !allowed {
		f.logger.Debug().Str("url", url).Msg("robots disallow")
		return nil, fmt.Errorf("%w: %s", common.ErrNotAllowed, url)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		snapshot, status, err := f.attempt(url, cache, m)
		if err == nil {
			if status == http.StatusNotModified {
				m.Incr("unchanged_skips", 1)
				return nil, nil
			}
			return snapshot, nil
		}

		lastErr = err
		if !f.shouldRetry(err) {
			return nil, err
		}

		m.Incr("retries", 1)
		if attempt < maxAttempts-1 {
			f.logger.Debug().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("retrying fetch after backoff")
			time.Sleep(backoffSchedule[attempt])
		}
	}

	return nil, fmt.Errorf("%w: fetching %s after %d attempts: %v", common.ErrTransport, url, maxAttempts, lastErr)
}

// shouldRetry reports whether err came from a network-level failure (no
// HTTP response at all) or from a response status in retryableStatus.
// Other 4xx statuses fail immediately (spec §4.F).
func (f *Fetcher) shouldRetry(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return retryableStatus[se.status]
	}
	return true // no statusError attached: genuine transport failure
}

// attempt performs exactly one HTTP round trip. status is only meaningful
// when err is nil.
func (f *Fetcher) attempt(url string, cache *fetchcache.Cache, m *metrics.Registry) (*models.Snapshot, int, error) {
	start := time.Now()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request for %s: %v", common.ErrFatal, url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range cache.HeadersFor(url) {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("fetch attempt")

	switch {
	case resp.StatusCode == http.StatusNotModified:
		_ = cache.Update(url, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))
		return nil, resp.StatusCode, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading body for %s: %v", common.ErrTransport, url, err)
		}

		m.Incr("pages_fetched", 1)
		m.Incr("http_2xx", 1)

		snapshot, err := f.persistSnapshot(url, string(body), resp.Header)
		if err != nil {
			return nil, 0, err
		}

		_ = cache.Update(url, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))
		return snapshot, resp.StatusCode, nil

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		m.Incr("http_3xx", 1)
		return nil, 0, &statusError{status: resp.StatusCode, err: fmt.Errorf("%w: unexpected redirect status %d for %s", common.ErrTransport, resp.StatusCode, url)}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		m.Incr("http_4xx", 1)
		return nil, 0, &statusError{status: resp.StatusCode, err: fmt.Errorf("%w: client error %d for %s", common.ErrTransport, resp.StatusCode, url)}

	default:
		m.Incr("http_5xx", 1)
		return nil, 0, &statusError{status: resp.StatusCode, err: fmt.Errorf("%w: server error %d for %s", common.ErrTransport, resp.StatusCode, url)}
	}
}

func (f *Fetcher) persistSnapshot(url, html string, header http.Header) (*models.Snapshot, error) {
	now := time.Now().UTC()

	headers := make(map[string]string, len(header))
	for k := range header {
		headers[k] = header.Get(k)
	}

	snapshot := &models.Snapshot{
		URL:       url,
		HTML:      html,
		Headers:   headers,
		FetchedAt: now,
	}

	sum := sha256.Sum256([]byte(url))
	urlHash := hex.EncodeToString(sum[:])
	dir := filepath.Join(f.bronzeRoot, urlHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating bronze dir %s: %v", common.ErrFatal, dir, err)
	}

	htmlPath := filepath.Join(dir, snapshot.FetchedAtFilename()+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing bronze snapshot %s: %v", common.ErrFatal, htmlPath, err)
	}

	headersPath := filepath.Join(dir, snapshot.FetchedAtFilename()+".headers.json")
	headersData, err := json.MarshalIndent(headers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling headers for %s: %v", common.ErrFatal, url, err)
	}
	if err := os.WriteFile(headersPath, headersData, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing bronze headers %s: %v", common.ErrFatal, headersPath, err)
	}

	snapshot.Path = htmlPath
	return snapshot, nil
}
