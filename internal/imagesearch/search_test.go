package imagesearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchReturnsResultURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "wine label" {
			t.Fatalf("unexpected query %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"url":"https://img.example/a.jpg"},{"url":""},{"url":"https://img.example/b.jpg"}]}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPProviderConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	urls, err := provider.Search(context.Background(), "wine label")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected empty urls dropped, got %v", urls)
	}
	if urls[0] != "https://img.example/a.jpg" {
		t.Fatalf("unexpected first url %q", urls[0])
	}
}

func TestSearchCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"url":"https://a"},{"url":"https://b"},{"url":"https://c"}]}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPProviderConfig{Endpoint: server.URL, MaxResults: 2})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	urls, err := provider.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected capped results, got %v", urls)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	provider, err := NewHTTPProvider(HTTPProviderConfig{Endpoint: "https://img.example"})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := provider.Search(context.Background(), "  "); !errors.Is(err, ErrMissingQuery) {
		t.Fatalf("expected missing query error, got %v", err)
	}
}

func TestSearchWrapsUpstreamFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPProviderConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := provider.Search(context.Background(), "query"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
