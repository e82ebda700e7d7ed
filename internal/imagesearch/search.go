package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMaxResults = 10
	defaultTimeout    = 10 * time.Second
)

var (
	// ErrMissingQuery indicates an empty search query.
	ErrMissingQuery = errors.New("imagesearch: query required")
	// ErrUpstream wraps any provider failure. Result quality and
	// availability carry no contractual guarantee.
	ErrUpstream = errors.New("imagesearch: upstream failure")
)

// Searcher is the narrow boundary around the external image provider.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// HTTPProviderConfig configures the remote image search provider.
type HTTPProviderConfig struct {
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// HTTPProvider queries an Openverse-style JSON endpoint for image URLs.
type HTTPProvider struct {
	endpoint   string
	maxResults int
	httpClient *http.Client
}

type searchResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// NewHTTPProvider constructs a provider for the given endpoint.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("imagesearch: endpoint required")
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPProvider{
		endpoint:   endpoint,
		maxResults: maxResults,
		httpClient: httpClient,
	}, nil
}

// Search returns image URLs for the query, capped at the configured count.
func (p *HTTPProvider) Search(ctx context.Context, query string) ([]string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrMissingQuery
	}

	requestURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: parse endpoint: %v", ErrUpstream, err)
	}
	values := requestURL.Query()
	values.Set("q", trimmed)
	values.Set("page_size", fmt.Sprintf("%d", p.maxResults))
	requestURL.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrUpstream, response.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	urls := make([]string, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		if result.URL == "" {
			continue
		}
		urls = append(urls, result.URL)
		if len(urls) == p.maxResults {
			break
		}
	}
	return urls, nil
}
