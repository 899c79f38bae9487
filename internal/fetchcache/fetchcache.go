// Package fetchcache implements the Conditional Fetch Cache (spec §4.E): a
// per-URL store of ETag/Last-Modified validators used to make conditional
// GET requests, persisted as a single versioned JSON document.
package fetchcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/listingcrawl/listingcrawl/internal/common"
)

const cacheVersion = 1

// Record is the validator state kept for one URL.
type Record struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// document is the on-disk shape. Version mismatches are discarded rather
// than migrated (spec §4.E: "incompatible versions are discarded").
type document struct {
	Version int                `json:"version"`
	Records map[string]*Record `json:"records"`
}

// Cache is a mutex-guarded fetch-validator store mirrored to path.
type Cache struct {
	path string

	mu  sync.Mutex
	doc *document
}

// Load reads the cache document at path, starting fresh if it is absent,
// corrupt, or carries an unrecognised version (spec §4.E).
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, doc: &document{Version: cacheVersion, Records: make(map[string]*Record)}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: reading fetch cache %s: %v", common.ErrFatal, path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return c, nil // corrupt: start fresh
	}
	if doc.Version != cacheVersion {
		return c, nil // incompatible version: start fresh
	}
	if doc.Records == nil {
		doc.Records = make(map[string]*Record)
	}

	c.doc = &doc
	return c, nil
}

// HeadersFor returns the conditional request headers to attach for url, or
// nil if no prior validators are known (spec §4.E).
func (c *Cache) HeadersFor(url string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.doc.Records[url]
	if !ok {
		return nil
	}

	headers := make(map[string]string, 2)
	if rec.ETag != "" {
		headers["If-None-Match"] = rec.ETag
	}
	if rec.LastModified != "" {
		headers["If-Modified-Since"] = rec.LastModified
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// Update records fresh validators for url and rewrites the document to
// disk. The fetcher calls this synchronously after each response and
// ignores the returned error, so a failed write never fails a fetch.
func (c *Cache) Update(url, etag, lastModified string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Records[url] = &Record{
		ETag:         etag,
		LastModified: lastModified,
		LastSeen:     time.Now().UTC(),
	}

	return c.persist()
}

func (c *Cache) persist() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating fetch cache dir %s: %v", common.ErrFatal, dir, err)
	}

	data, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling fetch cache: %v", common.ErrFatal, err)
	}

	tmp, err := os.CreateTemp(dir, ".fetchcache-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating fetch cache temp file: %v", common.ErrFatal, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing fetch cache: %v", common.ErrFatal, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing fetch cache temp file: %v", common.ErrFatal, err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming fetch cache into place: %v", common.ErrFatal, err)
	}

	return nil
}
