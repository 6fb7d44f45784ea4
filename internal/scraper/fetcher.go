package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

// FetchResult carries the page body and response metadata.
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
	Size        int64
}

// Fetcher retrieves a page body. Failures come back as *models.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*FetchResult, error)
}

// HTTPFetcher is the production fetcher: plain GET with a configured
// timeout, a desktop-browser user agent, a response size cap and a per-host
// politeness gate.
type HTTPFetcher struct {
	client     *http.Client
	config     common.ScraperConfig
	logger     arbor.ILogger
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewHTTPFetcher creates a fetcher from scraper configuration.
func NewHTTPFetcher(config common.ScraperConfig, logger arbor.ILogger) *HTTPFetcher {
	if config.UserAgent == "" {
		config.UserAgent = common.DefaultUserAgent
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		config:   config,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves the URL. Any non-2xx status, connection failure or timeout
// is wrapped into a typed FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*FetchResult, error) {
	if err := f.waitForHost(ctx, targetURL); err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrNetwork, URL: targetURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchErrNetwork, URL: targetURL, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{Kind: classifyTransportError(err), URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused
		io.CopyN(io.Discard, resp.Body, 1024)
		return nil, &models.FetchError{
			Kind:       models.FetchErrHTTPStatus,
			URL:        targetURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	reader := io.Reader(resp.Body)
	if f.config.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, f.config.MaxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &models.FetchError{Kind: classifyTransportError(err), URL: targetURL, Err: err}
	}

	f.logger.Debug().
		Str("url", targetURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Page fetched")

	return &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(body)),
	}, nil
}

// waitForHost blocks until the per-host politeness interval allows another
// request, honoring context cancellation.
func (f *HTTPFetcher) waitForHost(ctx context.Context, targetURL string) error {
	if f.config.HostInterval <= 0 {
		return nil
	}

	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return nil // leave bad URLs to the request itself
	}
	host := strings.ToLower(u.Host)

	f.limitersMu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(f.config.HostInterval), 1)
		f.limiters[host] = limiter
	}
	f.limitersMu.Unlock()

	return limiter.Wait(ctx)
}

func classifyTransportError(err error) models.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FetchErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.FetchErrTimeout
	}
	return models.FetchErrNetwork
}
