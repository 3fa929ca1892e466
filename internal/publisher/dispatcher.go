// Package publisher carries poll results from the scheduler goroutines to the
// UI-facing listeners.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fortuna/crease/internal/match"
	"github.com/fortuna/crease/internal/metrics"
)

// DefaultQueueSize bounds how far the pollers can run ahead of the listeners
const DefaultQueueSize = 64

// EventType labels an Event
type EventType string

const (
	EventListing EventType = "listing"
	EventDetail  EventType = "detail"
	EventError   EventType = "error"
)

// Event is one poll result in flight.
type Event struct {
	Type    EventType
	Listing []match.MatchSummary
	Detail  match.MatchDetail
	Failure match.FetchFailure
	At      time.Time
}

// Listener is the UI collaborator contract. Calls arrive on the dispatcher's
// single consumer goroutine, one at a time and in publication order.
type Listener interface {
	OnListingUpdated(ctx context.Context, summaries []match.MatchSummary)
	OnDetailUpdated(ctx context.Context, detail match.MatchDetail)
	OnFetchError(ctx context.Context, failure match.FetchFailure)
}

// Dispatcher queues events from any goroutine and delivers them to listeners
// from one. It satisfies Listener itself, so the scheduler publishes into it
// directly.
type Dispatcher struct {
	queue  chan Event
	logger *slog.Logger

	mu        sync.RWMutex
	listeners []Listener
	isCurrent func(detailURL string) bool
}

// NewDispatcher creates a Dispatcher with the given queue size
func NewDispatcher(queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  make(chan Event, queueSize),
		logger: logger.With("component", "dispatcher"),
	}
}

// AddListener registers a listener for all subsequent events
func (d *Dispatcher) AddListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// SetDetailGuard installs a check run just before a detail is delivered.
// Details whose URL fails it are dropped, closing the window between the
// scheduler's own staleness check and delivery.
func (d *Dispatcher) SetDetailGuard(isCurrent func(detailURL string) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isCurrent = isCurrent
}

// OnListingUpdated queues a listing
func (d *Dispatcher) OnListingUpdated(ctx context.Context, summaries []match.MatchSummary) {
	d.enqueue(ctx, Event{Type: EventListing, Listing: summaries, At: time.Now()})
}

// OnDetailUpdated queues a detail
func (d *Dispatcher) OnDetailUpdated(ctx context.Context, detail match.MatchDetail) {
	d.enqueue(ctx, Event{Type: EventDetail, Detail: detail, At: time.Now()})
}

// OnFetchError queues a failure notice
func (d *Dispatcher) OnFetchError(ctx context.Context, failure match.FetchFailure) {
	d.enqueue(ctx, Event{Type: EventError, Failure: failure, At: time.Now()})
}

// enqueue blocks while the queue is full so no result is silently lost;
// only cancellation drops an event.
func (d *Dispatcher) enqueue(ctx context.Context, ev Event) {
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		metrics.EventsDropped.WithLabelValues(string(ev.Type), "cancelled").Inc()
	}
}

// Run delivers queued events until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", "pending", len(d.queue))
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	isCurrent := d.isCurrent
	d.mu.RUnlock()

	if ev.Type == EventDetail && isCurrent != nil && !isCurrent(ev.Detail.DetailURL) {
		metrics.EventsDropped.WithLabelValues(string(ev.Type), "stale").Inc()
		d.logger.Debug("dropping stale detail", "url", ev.Detail.DetailURL)
		return
	}

	for _, l := range listeners {
		d.deliverTo(ctx, l, ev)
	}
}

// deliverTo isolates listeners from each other: a panic in one is logged and
// the rest still receive the event.
func (d *Dispatcher) deliverTo(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("listener panicked", "event", ev.Type, "panic", rec)
		}
	}()

	switch ev.Type {
	case EventListing:
		l.OnListingUpdated(ctx, ev.Listing)
	case EventDetail:
		l.OnDetailUpdated(ctx, ev.Detail)
	case EventError:
		l.OnFetchError(ctx, ev.Failure)
	}
}
