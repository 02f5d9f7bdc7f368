package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// defaultMaxExcerptLen bounds the text handed to the classifier; the
// batch prompt carries every article, so excerpts stay short.
const defaultMaxExcerptLen = 1500

// Scraper extracts readable article text from news pages.
type Scraper struct {
	httpClient    *http.Client
	maxExcerptLen int
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithMaxExcerptLength sets the maximum excerpt length in runes.
func WithMaxExcerptLength(n int) Option {
	return func(s *Scraper) {
		s.maxExcerptLen = n
	}
}

// NewScraper creates an article scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxExcerptLen: defaultMaxExcerptLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape extracts an excerpt of the article body at the URL.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	// News portals block requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newsradar/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)

	// Truncate on rune boundaries; most article text here is Korean.
	if runes := []rune(content); len(runes) > s.maxExcerptLen {
		content = string(runes[:s.maxExcerptLen])
	}

	return content, nil
}
