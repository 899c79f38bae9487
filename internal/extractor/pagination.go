package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/listingcrawl/listingcrawl/internal/models"
)

// DiscoverPagination parses html and returns the pagination URLs reachable
// from this page per spec §4.O step 3: a single "next" link via the rule's
// pagination_next selector, and, when month_grid is set, every month-grid
// link, capped at spec.MaxPages()-1 total URLs. Relative hrefs are resolved
// against pageURL.
func DiscoverPagination(html string, spec *models.RuleSpec, pageURL string) ([]string, error) {
	if spec == nil {
		return nil, nil
	}

	maxExtra := spec.MaxPages() - 1
	if maxExtra <= 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]bool)

	add := func(href string) {
		if href == "" || len(urls) >= maxExtra {
			return
		}
		resolved := resolveHref(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		urls = append(urls, resolved)
	}

	if spec.Pagination.NextSelector != "" {
		if href, ok := doc.Find(spec.Pagination.NextSelector).First().Attr("href"); ok {
			add(href)
		}
	}

	if spec.Pagination.MonthGrid {
		doc.Find("a").Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				if strings.Contains(strings.ToLower(a.Text()), "month") || strings.Contains(href, "month") {
					add(href)
				}
			}
		})
	}

	return urls, nil
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
