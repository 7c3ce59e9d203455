// Package zendesk provides a ContentSource over a Zendesk-style help
// centre API: a paginated article listing plus per-article fetch.
package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync-cli/internal/logger"
)

// Default configuration values.
const (
	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps listing and fetching polite
	// toward the help centre.
	DefaultRequestsPerSecond = 2.0

	// DefaultBurstSize is the rate limiter burst.
	DefaultBurstSize = 5
)

// Ensure Source implements the interface.
var _ driven.ContentSource = (*Source)(nil)

// Config holds configuration for the help-centre source.
type Config struct {
	// BaseURL is the help-centre API root, e.g.
	// https://support.example.com/api/v2/help_center (required).
	BaseURL string

	// SiteURL is the public site root used for citation URLs when the
	// API omits html_url. Optional.
	SiteURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond overrides the default rate limit.
	RequestsPerSecond float64
}

// Source is a help-centre implementation of driven.ContentSource.
//
// Markers: the help centre reports updated_at as RFC 3339 UTC, so
// lexicographic comparison matches chronological order as the
// ContentSource contract requires.
type Source struct {
	client  *http.Client
	baseURL string
	siteURL string
	limiter *rate.Limiter
}

// article is the help-centre wire format for one article.
type article struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
	HTMLURL   string `json:"html_url"`
	Body      string `json:"body"`
}

// listResponse is the paginated listing payload.
type listResponse struct {
	Articles []article `json:"articles"`
	NextPage string    `json:"next_page"`
}

// articleResponse is the single-article payload.
type articleResponse struct {
	Article article `json:"article"`
}

// New creates a help-centre content source.
func New(cfg Config) (*Source, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("zendesk: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &Source{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), DefaultBurstSize),
	}, nil
}

// List fetches pages of article summaries until max items are
// collected or the listing runs out.
func (s *Source) List(ctx context.Context, max int) ([]domain.Item, error) {
	var items []domain.Item

	for page := 1; len(items) < max; page++ {
		logger.Debug("Fetching article listing page %d", page)

		var payload listResponse
		url := fmt.Sprintf("%s/articles.json?page=%d", s.baseURL, page)
		if err := s.getJSON(ctx, url, &payload); err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		if len(payload.Articles) == 0 {
			break
		}

		for _, a := range payload.Articles {
			items = append(items, s.toItem(a))
		}
		if payload.NextPage == "" {
			break
		}
	}

	if len(items) > max {
		items = items[:max]
	}
	return items, nil
}

// Fetch returns the full body of one article.
func (s *Source) Fetch(ctx context.Context, item domain.Item) (*domain.RawContent, error) {
	var payload articleResponse
	url := fmt.Sprintf("%s/articles/%s.json", s.baseURL, item.ID)
	if err := s.getJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("%w: article %s: %w", domain.ErrFetch, item.ID, err)
	}

	fetched := s.toItem(payload.Article)
	if fetched.ID == "0" || fetched.ID == "" {
		fetched = item
	}
	return &domain.RawContent{Item: fetched, Body: payload.Article.Body}, nil
}

// getJSON performs one rate-limited GET and decodes the JSON payload.
func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// toItem converts the wire format to the domain type. When the API
// omits html_url, the citation URL falls back to the public site.
func (s *Source) toItem(a article) domain.Item {
	id := strconv.FormatInt(a.ID, 10)

	url := a.HTMLURL
	if url == "" && s.siteURL != "" {
		url = fmt.Sprintf("%s/articles/%s", s.siteURL, id)
	}

	return domain.Item{
		ID:           id,
		Title:        a.Title,
		UpdateMarker: a.UpdatedAt,
		URL:          url,
	}
}
