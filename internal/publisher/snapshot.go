package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/fortuna/crease/internal/match"
)

// Snapshot keeps the last good listing and detail for readers that poll,
// such as the REST API. Failures are recorded without clearing either.
type Snapshot struct {
	mu          sync.RWMutex
	listing     []match.MatchSummary
	listingAt   time.Time
	detail      *match.MatchDetail
	lastFailure *match.FetchFailure
}

// NewSnapshot creates an empty Snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// OnListingUpdated replaces the listing wholesale
func (s *Snapshot) OnListingUpdated(ctx context.Context, summaries []match.MatchSummary) {
	listing := make([]match.MatchSummary, len(summaries))
	copy(listing, summaries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing = listing
	s.listingAt = time.Now()
}

// OnDetailUpdated replaces the detail
func (s *Snapshot) OnDetailUpdated(ctx context.Context, detail match.MatchDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = &detail
}

// OnFetchError records the failure
func (s *Snapshot) OnFetchError(ctx context.Context, failure match.FetchFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFailure = &failure
}

// Listing returns the current listing and when it arrived. ok is false before
// the first listing.
func (s *Snapshot) Listing() (summaries []match.MatchSummary, updatedAt time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listing == nil {
		return nil, time.Time{}, false
	}
	out := make([]match.MatchSummary, len(s.listing))
	copy(out, s.listing)
	return out, s.listingAt, true
}

// Detail returns the last detail delivered for detailURL.
func (s *Snapshot) Detail(detailURL string) (match.MatchDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detail == nil || s.detail.DetailURL != detailURL {
		return match.MatchDetail{}, false
	}
	return *s.detail, true
}

// LastFailure returns the most recent failure, if any
func (s *Snapshot) LastFailure() (match.FetchFailure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFailure == nil {
		return match.FetchFailure{}, false
	}
	return *s.lastFailure, true
}
