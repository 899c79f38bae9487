// Package robots implements the Robots Cache (spec §4.D): a per-host,
// in-process cache of robots.txt decisions. Colly (the teacher's HTML
// scraper in services/crawler/html_scraper.go) wires robots.txt handling
// in via colly.IgnoreRobotsTxt(), which in turn resolves robots.txt with
// temoto/robotstxt under the hood. This package depends on that same
// library directly, since spec §4.F wants a bespoke fetch pipeline rather
// than Colly's collector abstraction.
package robots

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
)

const defaultFetchTimeout = 5 * time.Second

// entry is a cached robots.txt decision for one host.
type entry struct {
	policy *robotstxt.RobotsData
}

// Cache is a mutex-guarded, unbounded, process-lifetime robots.txt cache
// keyed by "scheme://netloc" (spec §4.D: no TTL, no eviction).
type Cache struct {
	httpClient *http.Client
	userAgent  string
	logger     arbor.ILogger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache builds a Cache with its own HTTP client, whose fixed 5s timeout
// (spec §4.D) is independent of the fetcher's content timeout.
func NewCache(userAgent string, logger arbor.ILogger) *Cache {
	return &Cache{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		userAgent:  userAgent,
		logger:     logger,
		entries:    make(map[string]*entry),
	}
}

func hostKey(u *url.URL) string {
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

// Allowed reports whether fetching rawURL with the cache's user agent is
// permitted by the host's robots.txt (spec §4.D). file:// URLs are always
// allowed. Any transport failure or non-2xx/3xx status fetching
// robots.txt fails open (treated as allow-all), matching spec §4.D's
// explicit "fail open" requirement so a missing robots.txt never blocks a
// crawl.
func (c *Cache) Allowed(rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parsing url for robots check: %w", err)
	}

	if u.Scheme == "file" {
		return true, nil
	}

	key := hostKey(u)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = c.populate(u, key)
		c.entries[key] = e
	}

	if e.policy == nil {
		return true, nil
	}

	group := e.policy.FindGroup(c.userAgent)
	return group.Test(u.Path), nil
}

// populate fetches and parses robots.txt for the host of u. Caller must
// hold c.mu, which serializes population per spec §4.D's requirement to
// avoid a thundering herd of concurrent robots.txt fetches for one host.
func (c *Cache) populate(u *url.URL, key string) *entry {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		c.logger.Warn().Str("host", key).Err(err).Msg("building robots.txt request, failing open")
		return &entry{}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("host", key).Err(err).Msg("fetching robots.txt failed, failing open")
		return &entry{}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Debug().Str("host", key).Int("status", resp.StatusCode).Msg("robots.txt not available, failing open")
		return &entry{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn().Str("host", key).Err(err).Msg("reading robots.txt failed, failing open")
		return &entry{}
	}

	policy, err := robotstxt.FromBytes(body)
	if err != nil {
		c.logger.Warn().Str("host", key).Err(err).Msg("parsing robots.txt failed, failing open")
		return &entry{}
	}

	return &entry{policy: policy}
}
