package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/match"
)

const (
	homepage = "https://www.cricbuzz.com/"
	matchA   = "https://www.cricbuzz.com/live-cricket-scores/1/a-vs-b"
	matchB   = "https://www.cricbuzz.com/live-cricket-scores/2/c-vs-d"
	waitTime = 2 * time.Second
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   map[string]int
	started chan string
	// ignoreCancel makes gated fetches deaf to context cancellation.
	ignoreCancel bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			homepage: "listing",
			matchA:   "detail A",
			matchB:   "detail B",
		},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		calls:   map[string]int{},
		started: make(chan string, 64),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	gate := f.gates[pageURL]
	page := f.pages[pageURL]
	err := f.errs[pageURL]
	f.calls[pageURL]++
	f.mu.Unlock()

	select {
	case f.started <- pageURL:
	default:
	}

	if gate != nil {
		if f.ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return page, err
}

func (f *fakeFetcher) callCount(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageURL]
}

type fakeListing struct{}

func (fakeListing) Extract(markup string) []match.MatchSummary {
	return []match.MatchSummary{{Title: markup}}
}

type fakeDetail struct{}

func (fakeDetail) Extract(markup string) (match.MatchDetail, error) {
	if markup == "" {
		return match.MatchDetail{}, cricbuzz.ErrNoMatchData
	}
	return match.MatchDetail{Title: markup, Status: "live"}, nil
}

type recordingSink struct {
	listings chan []match.MatchSummary
	details  chan match.MatchDetail
	failures chan match.FetchFailure
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		listings: make(chan []match.MatchSummary, 32),
		details:  make(chan match.MatchDetail, 32),
		failures: make(chan match.FetchFailure, 32),
	}
}

func (s *recordingSink) OnListingUpdated(ctx context.Context, summaries []match.MatchSummary) {
	s.listings <- summaries
}

func (s *recordingSink) OnDetailUpdated(ctx context.Context, detail match.MatchDetail) {
	s.details <- detail
}

func (s *recordingSink) OnFetchError(ctx context.Context, failure match.FetchFailure) {
	s.failures <- failure
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTime):
		var zero T
		t.Fatalf("timed out waiting for %s", what)
		return zero
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.HomepageURL = homepage
	cfg.ListingInterval = time.Hour
	cfg.DetailInterval = time.Hour
	cfg.IdleInterval = time.Hour
	cfg.ShutdownGrace = time.Second
	return cfg
}

func startOrchestrator(t *testing.T, fetcher *fakeFetcher, sink *recordingSink, cfg *Config) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(fetcher, fakeListing{}, fakeDetail{}, sink, cfg, nil)
	o.Start(context.Background())
	t.Cleanup(func() { o.Stop() })
	return o
}

func TestListingPollsImmediatelyAndOnRefresh(t *testing.T) {
	fetcher := newFakeFetcher()
	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	first := waitFor(t, sink.listings, "initial listing")
	if len(first) != 1 || first[0].Title != "listing" {
		t.Fatalf("unexpected listing %#v", first)
	}

	o.Refresh()
	waitFor(t, sink.listings, "refreshed listing")

	if n := fetcher.callCount(homepage); n != 2 {
		t.Errorf("homepage fetched %d times, want 2", n)
	}
}

func TestSelectWakesIdleDetailLoop(t *testing.T) {
	fetcher := newFakeFetcher()
	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	waitFor(t, sink.listings, "initial listing")
	o.Select(matchA)

	detail := waitFor(t, sink.details, "detail after select")
	if detail.DetailURL != matchA || detail.Title != "detail A" {
		t.Errorf("unexpected detail %+v", detail)
	}
	if detail.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestStaleDetailIsDiscarded(t *testing.T) {
	fetcher := newFakeFetcher()
	gateA := make(chan struct{})
	fetcher.gates[matchA] = gateA

	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	o.Select(matchA)
	for url := range fetcher.started {
		if url == matchA {
			break
		}
	}

	o.Select(matchB)
	close(gateA)

	detail := waitFor(t, sink.details, "detail for new target")
	if detail.DetailURL != matchB {
		t.Fatalf("published detail for %s, want %s", detail.DetailURL, matchB)
	}

	select {
	case d := <-sink.details:
		t.Fatalf("unexpected extra detail for %s", d.DetailURL)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFetchErrorIsReportedAndCounted(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errs[matchA] = &cricbuzz.FetchError{Kind: cricbuzz.KindHTTPStatus, URL: matchA, StatusCode: 503}

	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	o.Select(matchA)
	failure := waitFor(t, sink.failures, "fetch failure")
	if failure.Loop != LoopDetail || failure.Kind != string(cricbuzz.KindHTTPStatus) || failure.URL != matchA {
		t.Errorf("unexpected failure %+v", failure)
	}

	o.Select(matchA)
	waitFor(t, sink.failures, "second fetch failure")

	status := o.GetStatus()
	if status.Detail.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", status.Detail.ConsecutiveErrors)
	}
	if status.Target != matchA {
		t.Errorf("Target = %q", status.Target)
	}
}

func TestExtractionFailureIsReported(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages[matchA] = ""

	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	o.Select(matchA)
	failure := waitFor(t, sink.failures, "extraction failure")
	if failure.Kind != match.FailureExtraction {
		t.Errorf("Kind = %q, want %q", failure.Kind, match.FailureExtraction)
	}
}

func TestClearingTargetStopsDetailPolling(t *testing.T) {
	fetcher := newFakeFetcher()
	sink := newRecordingSink()
	o := startOrchestrator(t, fetcher, sink, testConfig())

	o.Select(matchA)
	waitFor(t, sink.details, "detail")

	o.Select("")
	time.Sleep(50 * time.Millisecond)
	if n := fetcher.callCount(matchA); n != 1 {
		t.Errorf("match fetched %d times after clearing target, want 1", n)
	}
	if o.GetStatus().Detail.State != StateSleeping {
		t.Errorf("detail loop state = %s, want sleeping", o.GetStatus().Detail.State)
	}
}

func TestStopEndsLoops(t *testing.T) {
	fetcher := newFakeFetcher()
	sink := newRecordingSink()
	o := NewOrchestrator(fetcher, fakeListing{}, fakeDetail{}, sink, testConfig(), nil)
	o.Start(context.Background())
	waitFor(t, sink.listings, "initial listing")

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	status := o.GetStatus()
	if status.Listing.State != StateStopped || status.Detail.State != StateStopped {
		t.Errorf("states = %s/%s, want stopped", status.Listing.State, status.Detail.State)
	}
}

func TestStopGivesUpAfterGrace(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.ignoreCancel = true
	gate := make(chan struct{})
	fetcher.gates[homepage] = gate
	defer close(gate)

	cfg := testConfig()
	cfg.ShutdownGrace = 50 * time.Millisecond

	o := NewOrchestrator(fetcher, fakeListing{}, fakeDetail{}, newRecordingSink(), cfg, nil)
	o.Start(context.Background())
	waitFor(t, fetcher.started, "listing fetch")

	if err := o.Stop(); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Stop() error = %v, want ErrShutdownTimeout", err)
	}
}
