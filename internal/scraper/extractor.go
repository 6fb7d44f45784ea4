// Link Extractor - outbound link discovery from fetched HTML

package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// ExtractedLink is one outbound link in document order.
type ExtractedLink struct {
	URL      string
	Name     string
	External bool
}

// ExtractResult is the extractor's view of a fetched page.
type ExtractResult struct {
	Title string
	Links []ExtractedLink
}

// LinkExtractor derives outbound link records from HTML content.
//
// Identical hrefs appearing multiple times in a document produce multiple
// records: document order and count are preserved deliberately.
type LinkExtractor struct {
	logger arbor.ILogger
}

// NewLinkExtractor creates a new link extractor
func NewLinkExtractor(logger arbor.ILogger) *LinkExtractor {
	return &LinkExtractor{
		logger: logger,
	}
}

// Extract parses the HTML and returns the page title plus every outbound
// anchor, resolved against the page URL. Unresolvable hrefs are skipped
// silently; a document that cannot be parsed at all is an extraction error.
func (le *LinkExtractor) Extract(html []byte, pageURL string) (*ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		le.logger.Warn().Err(err).Str("page_url", pageURL).Msg("Failed to parse page URL for link resolution")
		baseURL = nil
	}

	result := &ExtractResult{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || shouldSkipHref(href) {
			return
		}

		resolved := le.resolve(href, baseURL)
		if resolved == nil {
			return
		}

		result.Links = append(result.Links, ExtractedLink{
			URL:      resolved.String(),
			Name:     deriveLabel(s),
			External: !common.SameOrigin(resolved, baseURL),
		})
	})

	le.logger.Debug().
		Str("page_url", pageURL).
		Int("links_found", len(result.Links)).
		Msg("Links extracted from HTML content")

	return result, nil
}

// shouldSkipHref filters empty hrefs, fragment-only anchors and
// script-execution pseudo-URLs.
func shouldSkipHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return true
	}
	if strings.HasPrefix(href, "#") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// resolve turns an href into an absolute URL against the base, or nil when
// resolution is impossible. Malformed hrefs are not errors.
func (le *LinkExtractor) resolve(href string, baseURL *url.URL) *url.URL {
	if baseURL == nil {
		parsed, err := url.Parse(href)
		if err != nil || !parsed.IsAbs() {
			return nil
		}
		return parsed
	}

	resolved, err := baseURL.Parse(href)
	if err != nil {
		le.logger.Debug().Err(err).Str("href", href).Msg("Failed to resolve href")
		return nil
	}
	if resolved.Host == "" {
		return nil
	}
	return resolved
}

// deriveLabel finds a human-readable name for the anchor: visible text,
// then an embedded image's alt or title, then the anchor's own title
// attribute, then a generic placeholder.
func deriveLabel(s *goquery.Selection) string {
	label := strings.TrimSpace(s.Text())

	if label == "" {
		img := s.Find("img").First()
		if alt, ok := img.Attr("alt"); ok {
			label = strings.TrimSpace(alt)
		}
		if label == "" {
			if title, ok := img.Attr("title"); ok {
				label = strings.TrimSpace(title)
			}
		}
	}
	if label == "" {
		if title, ok := s.Attr("title"); ok {
			label = strings.TrimSpace(title)
		}
	}
	if label == "" {
		label = "Link"
	}

	return truncateLabel(label, models.MaxLinkNameLength)
}

// truncateLabel bounds the label to max runes, marking the cut with an
// ellipsis.
func truncateLabel(label string, max int) string {
	runes := []rune(label)
	if len(runes) <= max {
		return label
	}
	return string(runes[:max]) + "…"
}
