package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestShareLifecycleOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)
	_, cookie := stack.seedUser(t, "owner@example.com")

	status := postJSON(t, stack.handler, cookie, http.MethodGet, "/api/share/status", "")
	if status.Code != http.StatusOK {
		t.Fatalf("expected status success, got %d", status.Code)
	}
	var statusPayload struct {
		Token      string `json:"token"`
		ShowValues bool   `json:"showValues"`
		URL        string `json:"url"`
	}
	if err := json.Unmarshal(status.Body.Bytes(), &statusPayload); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if statusPayload.Token != "" || statusPayload.URL != "" {
		t.Fatalf("expected no token before generation, got %+v", statusPayload)
	}

	generated := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/share/generate", "")
	if generated.Code != http.StatusOK {
		t.Fatalf("expected generate success, got %d", generated.Code)
	}
	var generatedPayload struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(generated.Body.Bytes(), &generatedPayload); err != nil {
		t.Fatalf("failed to decode generate response: %v", err)
	}
	if generatedPayload.Token == "" {
		t.Fatalf("expected share token")
	}
	if generatedPayload.URL != testBaseURL+"/share/"+generatedPayload.Token {
		t.Fatalf("unexpected share url %q", generatedPayload.URL)
	}

	status = postJSON(t, stack.handler, cookie, http.MethodGet, "/api/share/status", "")
	if err := json.Unmarshal(status.Body.Bytes(), &statusPayload); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if statusPayload.Token != generatedPayload.Token {
		t.Fatalf("status token %q does not match generated %q", statusPayload.Token, generatedPayload.Token)
	}

	revoked := postJSON(t, stack.handler, cookie, http.MethodDelete, "/api/share/revoke", "")
	if revoked.Code != http.StatusOK {
		t.Fatalf("expected revoke success, got %d", revoked.Code)
	}

	view := httptest.NewRequest(http.MethodGet, "/share/"+generatedPayload.Token, http.NoBody)
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, view)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected revoked token to answer 404, got %d", recorder.Code)
	}
}

func TestShareSettingsRequireExplicitFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)
	_, cookie := stack.seedUser(t, "owner@example.com")

	response := postJSON(t, stack.handler, cookie, http.MethodPut, "/api/share/settings", `{}`)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing showValues, got %d", response.Code)
	}

	response = postJSON(t, stack.handler, cookie, http.MethodPut, "/api/share/settings", `{"showValues":true}`)
	if response.Code != http.StatusOK {
		t.Fatalf("expected settings update success, got %d", response.Code)
	}
}

func TestPublicShareViewRedactsAndAggregates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)
	_, cookie := stack.seedUser(t, "owner@example.com")

	bottles := []string{
		`{"name":"Cellar Red","type":"red","marketValue":120,"consumptionHistory":[{"date":"2026-01-01"}]}`,
		`{"name":"Cellar White","type":"white","marketValue":80,"photo":"data:image/png;base64,AAAA"}`,
		`{"name":"Gone","type":"red","status":"consumed","marketValue":999}`,
	}
	for _, bottle := range bottles {
		created := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/bottles", bottle)
		if created.Code != http.StatusOK {
			t.Fatalf("seed upsert failed: %d", created.Code)
		}
	}

	settings := postJSON(t, stack.handler, cookie, http.MethodPut, "/api/share/settings", `{"showValues":true}`)
	if settings.Code != http.StatusOK {
		t.Fatalf("settings update failed: %d", settings.Code)
	}
	generated := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/share/generate", "")
	var generatedPayload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(generated.Body.Bytes(), &generatedPayload); err != nil {
		t.Fatalf("failed to decode generate response: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/share/"+generatedPayload.Token, http.NoBody)
	request.Header.Set("Accept", "application/json")
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected public view success, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var view struct {
		OwnerName      string           `json:"ownerName"`
		ShowValues     bool             `json:"showValues"`
		Bottles        []map[string]any `json:"bottles"`
		BottleCount    int              `json:"bottleCount"`
		EstimatedValue float64          `json:"estimatedValue"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if view.OwnerName != "Test Owner" {
		t.Fatalf("unexpected owner name %q", view.OwnerName)
	}
	if view.BottleCount != 2 || len(view.Bottles) != 2 {
		t.Fatalf("expected consumed bottle filtered out, got count %d", view.BottleCount)
	}
	if view.EstimatedValue != 200 {
		t.Fatalf("expected estimated value 200, got %v", view.EstimatedValue)
	}
	for _, bottle := range view.Bottles {
		if _, present := bottle["consumptionHistory"]; present {
			t.Fatalf("consumption history leaked into public view: %v", bottle)
		}
		if _, present := bottle["photo"]; present {
			t.Fatalf("embedded image data leaked into public view: %v", bottle)
		}
	}
}

func TestPublicShareViewHidesValuesByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)
	_, cookie := stack.seedUser(t, "owner@example.com")

	created := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/bottles", `{"name":"Priced","marketValue":50,"price":45}`)
	if created.Code != http.StatusOK {
		t.Fatalf("seed upsert failed: %d", created.Code)
	}
	generated := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/share/generate", "")
	var generatedPayload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(generated.Body.Bytes(), &generatedPayload); err != nil {
		t.Fatalf("failed to decode generate response: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/share/"+generatedPayload.Token, http.NoBody)
	request.Header.Set("Accept", "application/json")
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)

	var view struct {
		ShowValues     bool             `json:"showValues"`
		Bottles        []map[string]any `json:"bottles"`
		EstimatedValue float64          `json:"estimatedValue"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if view.ShowValues {
		t.Fatalf("expected values hidden by default")
	}
	if view.EstimatedValue != 0 {
		t.Fatalf("expected no estimated value, got %v", view.EstimatedValue)
	}
	for _, bottle := range view.Bottles {
		if _, present := bottle["marketValue"]; present {
			t.Fatalf("market value leaked: %v", bottle)
		}
		if _, present := bottle["price"]; present {
			t.Fatalf("price leaked: %v", bottle)
		}
	}
}

func TestPublicShareViewRendersHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)
	_, cookie := stack.seedUser(t, "owner@example.com")

	created := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/bottles", `{"name":"Shown","type":"red"}`)
	if created.Code != http.StatusOK {
		t.Fatalf("seed upsert failed: %d", created.Code)
	}
	generated := postJSON(t, stack.handler, cookie, http.MethodPost, "/api/share/generate", "")
	var generatedPayload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(generated.Body.Bytes(), &generatedPayload); err != nil {
		t.Fatalf("failed to decode generate response: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/share/"+generatedPayload.Token, http.NoBody)
	request.Header.Set("Accept", "text/html")
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected HTML view success, got %d", recorder.Code)
	}
	if contentType := recorder.Header().Get("Content-Type"); !strings.Contains(contentType, "text/html") {
		t.Fatalf("expected html content type, got %q", contentType)
	}
	if body := recorder.Body.String(); !strings.Contains(body, "Test Owner") {
		t.Fatalf("expected owner name in rendered page")
	}
}

func TestPublicShareViewUnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, nil)

	request := httptest.NewRequest(http.MethodGet, "/share/never-issued", http.NoBody)
	request.Header.Set("Accept", "application/json")
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", recorder.Code)
	}
}

func TestImageSearchHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, &stubSearcher{urls: []string{"https://img.example/a.jpg"}})
	_, cookie := stack.seedUser(t, "owner@example.com")

	response := postJSON(t, stack.handler, cookie, http.MethodGet, "/api/images/search?q=margaux", "")
	if response.Code != http.StatusOK {
		t.Fatalf("expected search success, got %d", response.Code)
	}
	var payload struct {
		OK      bool     `json:"ok"`
		Results []string `json:"results"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode search response: %v", err)
	}
	if !payload.OK || len(payload.Results) != 1 {
		t.Fatalf("unexpected search payload %+v", payload)
	}

	missing := postJSON(t, stack.handler, cookie, http.MethodGet, "/api/images/search", "")
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", missing.Code)
	}
}

func TestImageSearchUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := newTestStack(t, &stubOAuthProvider{}, &stubSearcher{err: errors.New("upstream down")})
	_, cookie := stack.seedUser(t, "owner@example.com")

	response := postJSON(t, stack.handler, cookie, http.MethodGet, "/api/images/search?q=margaux", "")
	if response.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on provider failure, got %d", response.Code)
	}
}
