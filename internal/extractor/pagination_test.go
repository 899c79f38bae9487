package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

func TestDiscoverPaginationNilSpecReturnsNothing(t *testing.T) {
	urls, err := DiscoverPagination("<html></html>", nil, "https://example.invalid/")
	require.NoError(t, err)
	assert.Nil(t, urls)
}

func TestDiscoverPaginationDefaultMaxPagesYieldsNoFollowUps(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.NextSelector = "a.next"

	html := `<html><body><a class="next" href="/page/2">Next</a></body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/")
	require.NoError(t, err)
	assert.Empty(t, urls, "max_pages=1 (the default) must yield no pagination follow-ups")
}

func TestDiscoverPaginationFollowsNextSelector(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.NextSelector = "a.next"
	spec.Pagination.MaxPages = 2

	html := `<html><body><a class="next" href="/page/2">Next</a></body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/list")
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.invalid/page/2", urls[0])
}

func TestDiscoverPaginationResolvesRelativeHrefAgainstPageURL(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.NextSelector = "a.next"
	spec.Pagination.MaxPages = 2

	html := `<html><body><a class="next" href="page-2.html">Next</a></body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/events/list.html")
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.invalid/events/page-2.html", urls[0])
}

func TestDiscoverPaginationMonthGridCollectsMultipleLinks(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.MonthGrid = true
	spec.Pagination.MaxPages = 5

	html := `<html><body>
		<a href="/2026/04">April month</a>
		<a href="/2026/05">May month</a>
		<a href="/2026/06">June month</a>
		<a href="/about">About</a>
	</body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/")
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.NotContains(t, urls, "https://example.invalid/about")
}

func TestDiscoverPaginationCapsAtMaxPagesMinusOne(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.MonthGrid = true
	spec.Pagination.MaxPages = 3

	html := `<html><body>
		<a href="/2026/04">April month</a>
		<a href="/2026/05">May month</a>
		<a href="/2026/06">June month</a>
		<a href="/2026/07">July month</a>
	</body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/")
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestDiscoverPaginationDedupesIdenticalResolvedURLs(t *testing.T) {
	spec := &models.RuleSpec{}
	spec.Pagination.MonthGrid = true
	spec.Pagination.MaxPages = 5

	html := `<html><body>
		<a href="/2026/04">month</a>
		<a href="/2026/04">month</a>
	</body></html>`

	urls, err := DiscoverPagination(html, spec, "https://example.invalid/")
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}
