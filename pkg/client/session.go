package client

import (
	"sync"
	"time"
)

// SessionStats is a point-in-time snapshot of a session record.
type SessionStats struct {
	Attempted int
	Succeeded int
	Failed    int
	Blocked   int
	Elapsed   time.Duration
	// EarliestExpiry is the soonest payload expiry seen across the session.
	// Data assembled from the session is only coherent until then. Zero when
	// no expiring payload was seen.
	EarliestExpiry time.Time
}

// SessionRecord accumulates request outcomes across a batch of calls, most
// usefully around a fan-out. Outcomes only count between Start and Stop;
// requests outside the recording window pass through unrecorded. All methods
// are safe for concurrent use.
type SessionRecord struct {
	mu        sync.Mutex
	stats     SessionStats
	startedAt time.Time
	running   bool
}

// Start begins (or resumes) timing the session.
func (s *SessionRecord) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.startedAt = time.Now()
		s.running = true
	}
}

// Stop freezes the elapsed time.
func (s *SessionRecord) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stats.Elapsed += time.Since(s.startedAt)
		s.running = false
	}
}

// Clear resets the record to zero.
func (s *SessionRecord) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = SessionStats{}
	s.running = false
}

// RecordSuccess counts a succeeded request and folds its payload expiry into
// the earliest-expiry watermark.
func (s *SessionRecord) RecordSuccess(expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stats.Attempted++
	s.stats.Succeeded++
	if !expires.IsZero() {
		if s.stats.EarliestExpiry.IsZero() || expires.Before(s.stats.EarliestExpiry) {
			s.stats.EarliestExpiry = expires
		}
	}
}

// RecordFailure counts a request that exhausted its retries.
func (s *SessionRecord) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stats.Attempted++
	s.stats.Failed++
}

// RecordBlocked counts a request rejected by admission.
func (s *SessionRecord) RecordBlocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stats.Attempted++
	s.stats.Blocked++
}

// Snapshot returns the current counters. A running session reports elapsed
// time up to now.
func (s *SessionRecord) Snapshot() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	if s.running {
		out.Elapsed += time.Since(s.startedAt)
	}
	return out
}
