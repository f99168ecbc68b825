package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rollcall/internal/session"
)

// State is the scanning workflow's lifecycle position.
type State string

const (
	StateAwaitingSession State = "awaiting_session"
	StateGated           State = "gated"
	StateScanning        State = "scanning"
	StateProcessing      State = "processing"
	StateStopped         State = "stopped"
	StateFailed          State = "failed"
)

// Fatal workflow errors. Per-scan failures never surface through these; they
// keep the workflow scanning.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session already ended")
	ErrSessionNotStarted = errors.New("session not started yet")
)

// SessionDirectory looks up the session being scanned.
type SessionDirectory interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Workflow runs the scanning state machine for one session: fetch, gate on
// the session window, then process decoded payloads one at a time until the
// context is cancelled.
type Workflow struct {
	dir         SessionDirectory
	proc        *Processor
	src         Source
	displayHold time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	status   string
	inflight bool
	onStatus func(status string)
}

// Option tweaks workflow construction.
type Option func(*Workflow)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithDisplayHold sets how long a scan verdict stays on screen before the
// status returns to scanning.
func WithDisplayHold(d time.Duration) Option {
	return func(w *Workflow) { w.displayHold = d }
}

// WithStatusFunc registers a callback invoked on every status change.
func WithStatusFunc(fn func(status string)) Option {
	return func(w *Workflow) { w.onStatus = fn }
}

// New creates a workflow.
func New(dir SessionDirectory, proc *Processor, src Source, opts ...Option) *Workflow {
	w := &Workflow{
		dir:         dir,
		proc:        proc,
		src:         src,
		displayHold: 2 * time.Second,
		now:         time.Now,
		state:       StateAwaitingSession,
		status:      "initializing",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Status returns the human-readable status line.
func (w *Workflow) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run executes the workflow until ctx is cancelled or a fatal error occurs.
// In-flight writes are not cancelled on exit; they complete or fail on their
// own after the operator has navigated away.
func (w *Workflow) Run(ctx context.Context, sessionID, instructorID string) error {
	w.set(StateAwaitingSession, "initializing")

	sess, err := w.dir.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			w.set(StateFailed, "error: session not found")
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		w.set(StateFailed, "error: session lookup failed")
		return fmt.Errorf("fetch session %s: %w", sessionID, err)
	}

	w.set(StateGated, "initializing")
	switch sess.PhaseAt(w.now()) {
	case session.PhaseEnded:
		w.set(StateFailed, "error: session ended at "+sess.EndTime)
		return fmt.Errorf("%w: ended %s %s", ErrSessionEnded, sess.Date, sess.EndTime)
	case session.PhaseNotStarted:
		w.set(StateFailed, "error: session starts at "+sess.StartTime)
		return fmt.Errorf("%w: starts %s %s", ErrSessionNotStarted, sess.Date, sess.StartTime)
	}

	w.set(StateScanning, "scanning")
	err = w.src.Start(ctx,
		func(text string) { w.handleDecode(ctx, sess, instructorID, text) },
		func(srcErr error) { w.set(StateFailed, "error: scanner hardware: "+srcErr.Error()) },
	)
	if err != nil {
		w.set(StateFailed, "error: scanner hardware: "+err.Error())
		return fmt.Errorf("start source: %w", err)
	}

	<-ctx.Done()
	_ = w.src.Stop()
	w.set(StateStopped, "stopped")
	return nil
}

// handleDecode processes one decoded payload. Decodes arriving while a scan
// is in flight are discarded; one scan at a time.
func (w *Workflow) handleDecode(ctx context.Context, sess *session.Session, instructorID, text string) {
	w.mu.Lock()
	if w.state != StateScanning || w.inflight {
		w.mu.Unlock()
		return
	}
	w.inflight = true
	w.state = StateProcessing
	w.setStatusLocked("delivering")
	w.mu.Unlock()

	res, err := w.proc.Process(ctx, sess, instructorID, text)

	var verdict string
	switch {
	case err != nil:
		verdict = "error: check-in failed, rescan"
	case res.Outcome == OutcomeDuplicate:
		verdict = "already-verified:" + res.Subject.DisplayName
	default:
		verdict = "verified:" + res.Subject.DisplayName
	}

	w.mu.Lock()
	w.setStatusLocked(verdict)
	w.mu.Unlock()

	// Hold the verdict on screen briefly before resuming.
	select {
	case <-time.After(w.displayHold):
	case <-ctx.Done():
	}

	w.mu.Lock()
	w.inflight = false
	if w.state == StateProcessing {
		w.state = StateScanning
		w.setStatusLocked("scanning")
	}
	w.mu.Unlock()
}

func (w *Workflow) set(state State, status string) {
	w.mu.Lock()
	w.state = state
	w.setStatusLocked(status)
	w.mu.Unlock()
}

// setStatusLocked requires w.mu held. The callback runs under the lock, so it
// must not call back into the workflow.
func (w *Workflow) setStatusLocked(status string) {
	w.status = status
	if w.onStatus != nil {
		w.onStatus(status)
	}
}
