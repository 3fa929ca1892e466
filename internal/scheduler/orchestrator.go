package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/match"
	"github.com/fortuna/crease/internal/metrics"
)

// ErrShutdownTimeout is returned by Stop when a loop outlives the grace period
var ErrShutdownTimeout = errors.New("scheduler loops did not stop within grace period")

// Loop names, also used as metric and event labels
const (
	LoopListing = "listing"
	LoopDetail  = "detail"
)

// maxConsecutiveErrors before failures are logged at error level
const maxConsecutiveErrors = 5

// Config holds scheduler configuration
type Config struct {
	HomepageURL     string        // Default: https://www.cricbuzz.com/
	ListingInterval time.Duration // Default: 120s
	DetailInterval  time.Duration // Default: 15s
	IdleInterval    time.Duration // Default: 120s, detail loop with no target
	ListingTimeout  time.Duration // Default: 20s
	DetailTimeout   time.Duration // Default: 15s
	ShutdownGrace   time.Duration // Default: 2s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		HomepageURL:     cricbuzz.BaseURL,
		ListingInterval: 120 * time.Second,
		DetailInterval:  15 * time.Second,
		IdleInterval:    120 * time.Second,
		ListingTimeout:  20 * time.Second,
		DetailTimeout:   15 * time.Second,
		ShutdownGrace:   2 * time.Second,
	}
}

// ListingParser turns homepage markup into summaries.
type ListingParser interface {
	Extract(markup string) []match.MatchSummary
}

// DetailParser turns a match page into a detail record.
type DetailParser interface {
	Extract(markup string) (match.MatchDetail, error)
}

// Sink receives poll results. Implementations must not block for long; the
// dispatcher queues and hands results to the UI side.
type Sink interface {
	OnListingUpdated(ctx context.Context, summaries []match.MatchSummary)
	OnDetailUpdated(ctx context.Context, detail match.MatchDetail)
	OnFetchError(ctx context.Context, failure match.FetchFailure)
}

// Orchestrator runs the slow listing loop and the fast detail loop.
type Orchestrator struct {
	config  *Config
	fetcher cricbuzz.Fetcher
	listing ListingParser
	detail  DetailParser
	sink    Sink
	logger  *slog.Logger

	mu     sync.Mutex
	target string
	loops  map[string]*loopStatus

	wakeListing chan struct{}
	wakeDetail  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(fetcher cricbuzz.Fetcher, listing ListingParser, detail DetailParser, sink Sink, config *Config, logger *slog.Logger) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		config:  config,
		fetcher: fetcher,
		listing: listing,
		detail:  detail,
		sink:    sink,
		logger:  logger.With("component", "scheduler"),
		loops: map[string]*loopStatus{
			LoopListing: {state: StateIdle},
			LoopDetail:  {state: StateIdle},
		},
		wakeListing: make(chan struct{}, 1),
		wakeDetail:  make(chan struct{}, 1),
	}
}

// Start launches both loops and returns immediately. Each loop fetches once
// right away.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("scheduler starting",
		"listing_interval", o.config.ListingInterval,
		"detail_interval", o.config.DetailInterval,
		"idle_interval", o.config.IdleInterval)

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		o.runListingLoop(ctx)
	}()
	go func() {
		defer o.wg.Done()
		o.runDetailLoop(ctx)
	}()
}

// Stop cancels both loops and waits up to the grace period for them to exit.
// A loop stuck past the grace period is abandoned, not killed.
func (o *Orchestrator) Stop() error {
	o.logger.Info("stopping scheduler")
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("scheduler stopped")
		return nil
	case <-time.After(o.config.ShutdownGrace):
		o.logger.Warn("scheduler loops still running after grace period", "grace", o.config.ShutdownGrace)
		return ErrShutdownTimeout
	}
}

// Select retargets the detail loop. An empty URL clears the target. Any
// detail sleep in progress ends immediately.
func (o *Orchestrator) Select(detailURL string) {
	o.mu.Lock()
	previous := o.target
	o.target = detailURL
	o.mu.Unlock()

	if previous != detailURL {
		o.logger.Info("detail target changed", "url", detailURL, "previous", previous)
	}
	signal(o.wakeDetail)
}

// Refresh ends the listing loop's current sleep so it polls now.
func (o *Orchestrator) Refresh() {
	o.logger.Debug("listing refresh requested")
	signal(o.wakeListing)
}

// Target returns the URL the detail loop is polling, or "".
func (o *Orchestrator) Target() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// IsCurrent reports whether detailURL is still the selected match.
func (o *Orchestrator) IsCurrent(detailURL string) bool {
	return o.Target() == detailURL
}

// signal is a coalescing, non-blocking wake-up.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

// runListingLoop polls the homepage
func (o *Orchestrator) runListingLoop(ctx context.Context) {
	defer o.setState(LoopListing, StateStopped, 0)
	o.logger.Info("listing loop started", "url", o.config.HomepageURL)

	for ctx.Err() == nil {
		drain(o.wakeListing)
		o.pollListing(ctx)

		if !o.sleep(ctx, LoopListing, o.config.ListingInterval, o.wakeListing) {
			break
		}
	}
	o.logger.Info("listing loop stopped")
}

// runDetailLoop polls the selected match. The target is read fresh each cycle;
// a result fetched for a target that has since changed is thrown away and the
// loop goes straight round again for the new one.
func (o *Orchestrator) runDetailLoop(ctx context.Context) {
	defer o.setState(LoopDetail, StateStopped, 0)
	o.logger.Info("detail loop started")

	for ctx.Err() == nil {
		// Drain before reading the target so a Select landing after this
		// point still wakes the next sleep.
		drain(o.wakeDetail)
		target := o.Target()

		if target == "" {
			if !o.sleep(ctx, LoopDetail, o.config.IdleInterval, o.wakeDetail) {
				break
			}
			continue
		}

		if stale := o.pollDetail(ctx, target); stale {
			continue
		}

		if !o.sleep(ctx, LoopDetail, o.config.DetailInterval, o.wakeDetail) {
			break
		}
	}
	o.logger.Info("detail loop stopped")
}

// sleep waits for d, an early wake-up, or cancellation. It returns false when
// the loop should exit.
func (o *Orchestrator) sleep(ctx context.Context, loop string, d time.Duration, wake <-chan struct{}) bool {
	o.setState(loop, StateSleeping, d)
	defer o.setState(loop, StateIdle, 0)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-wake:
		return true
	case <-timer.C:
		return true
	}
}

func (o *Orchestrator) pollListing(ctx context.Context) {
	homepage := o.config.HomepageURL
	o.setState(LoopListing, StateFetching, 0)

	start := time.Now()
	markup, err := o.fetcher.Fetch(ctx, homepage, o.config.ListingTimeout)
	metrics.FetchDuration.WithLabelValues(LoopListing).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.recordFailure(ctx, LoopListing, homepage, err)
		return
	}

	// Extraction never fails; an empty listing is a valid "no matches" state.
	summaries := o.listing.Extract(markup)
	o.recordSuccess(LoopListing)
	o.logger.Info("listing updated", "matches", len(summaries))
	o.sink.OnListingUpdated(ctx, summaries)
}

// pollDetail fetches and publishes one detail cycle. It reports whether the
// result was discarded because the target moved.
func (o *Orchestrator) pollDetail(ctx context.Context, target string) bool {
	o.setState(LoopDetail, StateFetching, 0)

	start := time.Now()
	markup, err := o.fetcher.Fetch(ctx, target, o.config.DetailTimeout)
	metrics.FetchDuration.WithLabelValues(LoopDetail).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil {
		return false
	}

	if !o.IsCurrent(target) {
		o.discard(target)
		return true
	}
	if err != nil {
		o.recordFailure(ctx, LoopDetail, target, err)
		return false
	}

	detail, err := o.detail.Extract(markup)
	if err != nil {
		o.recordFailure(ctx, LoopDetail, target, err)
		return false
	}

	if !o.IsCurrent(target) {
		o.discard(target)
		return true
	}

	detail.DetailURL = target
	detail.FetchedAt = time.Now()
	o.recordSuccess(LoopDetail)
	o.logger.Debug("detail updated", "url", target, "status", detail.Status)
	o.sink.OnDetailUpdated(ctx, detail)
	return false
}

func (o *Orchestrator) discard(target string) {
	metrics.DetailDiscarded.Inc()
	metrics.FetchTotal.WithLabelValues(LoopDetail, "discarded").Inc()
	o.logger.Debug("discarding detail for previous target", "url", target)
}

func (o *Orchestrator) recordSuccess(loop string) {
	metrics.FetchTotal.WithLabelValues(loop, "success").Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.loops[loop]
	st.consecutiveErrors = 0
	st.lastError = ""
	st.lastSuccess = time.Now()
}

func (o *Orchestrator) recordFailure(ctx context.Context, loop, pageURL string, err error) {
	failure := match.FetchFailure{
		Loop:    loop,
		URL:     pageURL,
		Kind:    failureKind(err),
		Message: err.Error(),
		At:      time.Now(),
	}
	metrics.FetchTotal.WithLabelValues(loop, failure.Kind).Inc()

	o.mu.Lock()
	st := o.loops[loop]
	st.consecutiveErrors++
	st.lastError = failure.Message
	consecutive := st.consecutiveErrors
	o.mu.Unlock()

	if consecutive >= maxConsecutiveErrors {
		o.logger.Error("poll failing repeatedly", "loop", loop, "url", pageURL, "kind", failure.Kind,
			"consecutive_errors", consecutive, "error", err)
	} else {
		o.logger.Warn("poll failed", "loop", loop, "url", pageURL, "kind", failure.Kind,
			"consecutive_errors", consecutive, "error", err)
	}

	o.sink.OnFetchError(ctx, failure)
}

func failureKind(err error) string {
	var fe *cricbuzz.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return match.FailureExtraction
}
