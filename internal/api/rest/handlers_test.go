package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/match"
	"github.com/fortuna/crease/internal/publisher"
	"github.com/fortuna/crease/internal/scheduler"
)

const detailURL = "https://www.cricbuzz.com/live-cricket-scores/12345/ind-vs-aus"

type fakeController struct {
	mu        sync.Mutex
	target    string
	refreshes int
}

func (f *fakeController) Select(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = u
}

func (f *fakeController) Refresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeController) Target() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

func (f *fakeController) GetStatus() scheduler.Status {
	return scheduler.Status{Target: f.Target(), Listing: scheduler.LoopStatus{State: scheduler.StateSleeping}}
}

func newTestServer(t *testing.T) (http.Handler, *fakeController, *publisher.Snapshot) {
	t.Helper()
	controller := &fakeController{}
	snapshot := publisher.NewSnapshot()
	handler, err := NewHandler(controller, snapshot, TooltipConfig{MaxItems: 3, MaxLength: 250}, cricbuzz.BaseURL)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return NewServer("127.0.0.1", "0", handler, nil).Handler(), controller, snapshot
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON %q", method, path, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHealthCheck(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec, body := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("got %d %v", rec.Code, body)
	}
}

func TestGetMatches(t *testing.T) {
	h, _, snapshot := newTestServer(t)

	_, body := do(t, h, http.MethodGet, "/api/v1/matches", "")
	if body["ready"] != false {
		t.Errorf("expected not ready before first listing, got %v", body)
	}

	snapshot.OnListingUpdated(context.Background(), []match.MatchSummary{
		{Title: "India vs Australia", ScoreText: "IND 180/5 (20)", DetailURL: detailURL},
	})
	rec, body := do(t, h, http.MethodGet, "/api/v1/matches", "")
	if rec.Code != http.StatusOK || body["ready"] != true {
		t.Fatalf("got %d %v", rec.Code, body)
	}
	matches := body["matches"].([]interface{})
	if len(matches) != 1 {
		t.Fatalf("matches = %v", matches)
	}
	if matches[0].(map[string]interface{})["detail_url"] != detailURL {
		t.Errorf("match = %v", matches[0])
	}
}

func TestGetTooltip(t *testing.T) {
	h, _, snapshot := newTestServer(t)

	_, body := do(t, h, http.MethodGet, "/api/v1/tooltip", "")
	if body["text"] != "Fetching matches..." {
		t.Errorf("text = %v", body["text"])
	}

	snapshot.OnListingUpdated(context.Background(), []match.MatchSummary{{Title: "India vs Australia", ScoreText: "IND 180/5"}})
	_, body = do(t, h, http.MethodGet, "/api/v1/tooltip", "")
	if body["text"] != "India vs Australia: IND 180/5" {
		t.Errorf("text = %v", body["text"])
	}
}

func TestSelectMatch(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		target string
	}{
		{"valid match url", `{"url":"` + detailURL + `"}`, http.StatusOK, detailURL},
		{"empty clears", `{"url":""}`, http.StatusOK, ""},
		{"other host", `{"url":"https://example.com/live-cricket-scores/1"}`, http.StatusBadRequest, "unchanged"},
		{"not a match page", `{"url":"https://www.cricbuzz.com/cricket-news"}`, http.StatusBadRequest, "unchanged"},
		{"bad json", `{"url":`, http.StatusBadRequest, "unchanged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, controller, _ := newTestServer(t)
			controller.target = "unchanged"

			rec, _ := do(t, h, http.MethodPost, "/api/v1/select", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := controller.Target(); got != tt.target {
				t.Errorf("target = %q, want %q", got, tt.target)
			}
		})
	}
}

func TestGetSelected(t *testing.T) {
	h, controller, snapshot := newTestServer(t)

	rec, _ := do(t, h, http.MethodGet, "/api/v1/selected", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("no selection: status = %d", rec.Code)
	}

	controller.Select(detailURL)
	rec, body := do(t, h, http.MethodGet, "/api/v1/selected", "")
	if rec.Code != http.StatusAccepted || body["status"] != "pending" {
		t.Errorf("pending: got %d %v", rec.Code, body)
	}

	snapshot.OnDetailUpdated(context.Background(), match.MatchDetail{
		DetailURL:    detailURL,
		Title:        "India vs Australia",
		PrimaryScore: "IND 180/5 (20.0) CRR: 9.00",
		Status:       "Innings Break",
	})

	rec, body = do(t, h, http.MethodGet, "/api/v1/selected", "")
	if rec.Code != http.StatusOK || body["primary_score"] != "IND 180/5 (20.0) CRR: 9.00" {
		t.Errorf("json view: got %d %v", rec.Code, body)
	}

	_, body = do(t, h, http.MethodGet, "/api/v1/selected?view=minimized", "")
	if body["text"] != "IND 180/5 (20.0) CRR: 9.00" {
		t.Errorf("minimized = %v", body["text"])
	}

	_, body = do(t, h, http.MethodGet, "/api/v1/selected?view=text", "")
	if text, _ := body["text"].(string); !strings.Contains(text, "Innings Break") {
		t.Errorf("text view = %v", body["text"])
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/selected?view=xml", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown view: status = %d", rec.Code)
	}
}

func TestRefreshAndStatus(t *testing.T) {
	h, controller, snapshot := newTestServer(t)

	rec, _ := do(t, h, http.MethodPost, "/api/v1/refresh", "")
	if rec.Code != http.StatusAccepted || controller.refreshes != 1 {
		t.Errorf("refresh: status %d refreshes %d", rec.Code, controller.refreshes)
	}

	snapshot.OnFetchError(context.Background(), match.FetchFailure{Loop: "listing", Kind: "timeout"})
	_, body := do(t, h, http.MethodGet, "/api/v1/status", "")
	sched := body["scheduler"].(map[string]interface{})
	if sched["listing"].(map[string]interface{})["state"] != "sleeping" {
		t.Errorf("scheduler = %v", sched)
	}
	if body["last_error"].(map[string]interface{})["kind"] != "timeout" {
		t.Errorf("last_error = %v", body["last_error"])
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/select", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
