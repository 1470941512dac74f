// Package poll implements the status polling loop the CLI uses to follow
// a submission through grading. A session queries once immediately, then
// repeats on a fixed interval until the submission reaches a terminal
// status, the server rate-limits the client, the attempt cap is reached,
// or the caller stops it.
package poll

import (
	"context"
	"sync"
	"time"

	"gradehub/internal/submission/model"
	appErr "gradehub/pkg/errors"
)

const (
	// DefaultInterval is the delay between status queries.
	DefaultInterval = 30 * time.Second
	// DefaultMaxAttempts caps the total number of queries, the immediate
	// first one included.
	DefaultMaxAttempts = 10
)

// StatusFunc fetches the current status projection of a submission.
type StatusFunc func(ctx context.Context, submissionID string) (model.StatusProjection, error)

// Config tunes a polling session. Zero values select the defaults.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// StopReason says why a session ended.
type StopReason string

const (
	// StopTerminal: the submission reached completed or failed.
	StopTerminal StopReason = "terminal"
	// StopRateLimited: the server answered with a rate limit rejection.
	StopRateLimited StopReason = "rate_limited"
	// StopExhausted: the attempt cap was reached without a terminal status.
	StopExhausted StopReason = "exhausted"
	// StopManual: the caller stopped the session or its context ended.
	StopManual StopReason = "stopped"
)

// Event is one observation from a polling session. Exactly one of Status
// and Err is set on query events; the final event has Done true and
// carries the stop reason.
type Event struct {
	Attempt int
	Status  *model.StatusProjection
	Err     error
	Done    bool
	Reason  StopReason
}

// Session is a single polling run for one submission.
type Session struct {
	events chan Event
	done   chan struct{}
	stopCh chan struct{}
	once   sync.Once
}

// Events returns the event stream. The channel is buffered for the whole
// run and closed after the final Done event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session has fully finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop ends the session. Safe to call more than once and after the
// session has already finished.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *Session) run(ctx context.Context, submissionID string, fetch StatusFunc, cfg Config) {
	defer close(s.done)
	defer close(s.events)

	attempts := 0
	query := func() (bool, StopReason) {
		attempts++
		proj, err := fetch(ctx, submissionID)
		if err != nil {
			s.events <- Event{Attempt: attempts, Err: err}
			if appErr.Is(err, appErr.TooManyRequests) {
				return true, StopRateLimited
			}
			// Transient failures are surfaced but do not end the loop.
			return false, ""
		}
		s.events <- Event{Attempt: attempts, Status: &proj}
		if proj.Status.Terminal() {
			return true, StopTerminal
		}
		return false, ""
	}
	finish := func(reason StopReason) {
		s.events <- Event{Attempt: attempts, Done: true, Reason: reason}
	}

	if stop, reason := query(); stop {
		finish(reason)
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			finish(StopManual)
			return
		case <-s.stopCh:
			finish(StopManual)
			return
		case <-ticker.C:
			if attempts >= cfg.MaxAttempts {
				finish(StopExhausted)
				return
			}
			if stop, reason := query(); stop {
				finish(reason)
				return
			}
		}
	}
}

// Watcher runs at most one polling session at a time. Starting a new
// watch stops the previous session and waits for it to finish first.
type Watcher struct {
	mu     sync.Mutex
	active *Session
}

// NewWatcher creates an empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Watch starts a polling session for the submission and returns it.
func (w *Watcher) Watch(ctx context.Context, submissionID string, fetch StatusFunc, cfg Config) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	w.mu.Lock()
	prev := w.active
	w.mu.Unlock()
	if prev != nil {
		prev.Stop()
		<-prev.Done()
	}

	// Each attempt emits at most one event plus one final Done event, so
	// a buffer of MaxAttempts+1 means sends never block.
	s := &Session{
		events: make(chan Event, cfg.MaxAttempts+1),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}

	w.mu.Lock()
	w.active = s
	w.mu.Unlock()

	go s.run(ctx, submissionID, fetch, cfg)
	return s
}

// Stop ends the active session, if any, and waits for it to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	active := w.active
	w.mu.Unlock()
	if active != nil {
		active.Stop()
		<-active.Done()
	}
}
