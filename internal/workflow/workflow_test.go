package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/session"
)

type fakeDirectory struct {
	sessions map[string]*session.Session
}

func (f *fakeDirectory) Get(ctx context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

type statusLog struct {
	mu      sync.Mutex
	entries []string
}

func (s *statusLog) record(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, status)
}

func (s *statusLog) has(status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e == status {
			return true
		}
	}
	return false
}

func fixedClock(day, clock string) func() time.Time {
	ts, err := time.Parse("2006-01-02 15:04", day+" "+clock)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func newTestProcessor() (*Processor, *fakeRecorder, *fakeNotifier) {
	recorder := newFakeRecorder()
	notifier := &fakeNotifier{}
	return NewProcessor(recorder, &fakeDeliverer{}, notifier, nil), recorder, notifier
}

// Scanning an active session records attendance, delivers files, notifies,
// and a rescan of the same payload yields "already verified" with no new
// side effects.
func TestWorkflowScanAndRescan(t *testing.T) {
	sess := activeSession()
	dir := &fakeDirectory{sessions: map[string]*session.Session{"S1": sess}}
	proc, recorder, notifier := newTestProcessor()
	src := NewChannelSource()
	statuses := &statusLog{}

	wf := New(dir, proc, src,
		WithClock(fixedClock("2026-03-10", "09:15")),
		WithDisplayHold(0),
		WithStatusFunc(statuses.record),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wf.Run(ctx, "S1", "inst_9") }()

	require.Eventually(t, func() bool { return wf.State() == StateScanning }, time.Second, time.Millisecond)

	payload := `{"id":"stu_1","name":"Amina K."}`
	src.Emit(payload)
	require.Eventually(t, func() bool { return statuses.has("verified:Amina K.") }, time.Second, time.Millisecond)

	src.Emit(payload)
	require.Eventually(t, func() bool { return statuses.has("already-verified:Amina K.") }, time.Second, time.Millisecond)

	require.Len(t, recorder.records, 1)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []int{2}, notifier.count)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, wf.State())
	assert.Equal(t, "stopped", wf.Status())
}

// A session dated yesterday never reaches the scanning state.
func TestWorkflowRejectsEndedSession(t *testing.T) {
	sess := &session.Session{
		ID: "S2", Name: "Old Lecture", Date: "2026-03-09",
		StartTime: "09:00", EndTime: "10:00",
	}
	dir := &fakeDirectory{sessions: map[string]*session.Session{"S2": sess}}
	proc, recorder, _ := newTestProcessor()

	wf := New(dir, proc, NewChannelSource(), WithClock(fixedClock("2026-03-10", "09:15")))

	err := wf.Run(context.Background(), "S2", "inst_9")
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, StateFailed, wf.State())
	assert.Empty(t, recorder.records)
}

func TestWorkflowRejectsUpcomingSession(t *testing.T) {
	sess := &session.Session{
		ID: "S3", Name: "Afternoon Lab", Date: "2026-03-10",
		StartTime: "14:00", EndTime: "16:00",
	}
	dir := &fakeDirectory{sessions: map[string]*session.Session{"S3": sess}}
	proc, _, _ := newTestProcessor()

	wf := New(dir, proc, NewChannelSource(), WithClock(fixedClock("2026-03-10", "09:15")))

	err := wf.Run(context.Background(), "S3", "inst_9")
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	assert.Equal(t, StateFailed, wf.State())
	assert.Contains(t, wf.Status(), "14:00")
}

func TestWorkflowSessionNotFound(t *testing.T) {
	dir := &fakeDirectory{sessions: map[string]*session.Session{}}
	proc, _, _ := newTestProcessor()

	wf := New(dir, proc, NewChannelSource(), WithClock(fixedClock("2026-03-10", "09:15")))

	err := wf.Run(context.Background(), "missing", "inst_9")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, StateFailed, wf.State())
}

// Frames decoded while a scan is in flight are discarded.
func TestWorkflowSingleInFlightScan(t *testing.T) {
	sess := activeSession()
	dir := &fakeDirectory{sessions: map[string]*session.Session{"S1": sess}}

	recorder := newFakeRecorder()
	notifier := &fakeNotifier{}
	proc := NewProcessor(recorder, &fakeDeliverer{}, notifier, nil)
	src := NewChannelSource()

	// A long display hold keeps the first scan in flight.
	wf := New(dir, proc, src,
		WithClock(fixedClock("2026-03-10", "09:15")),
		WithDisplayHold(time.Minute),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- wf.Run(ctx, "S1", "inst_9") }()

	require.Eventually(t, func() bool { return wf.State() == StateScanning }, time.Second, time.Millisecond)

	src.Emit(`{"id":"stu_1","name":"Amina K."}`)
	require.Eventually(t, func() bool { return wf.State() == StateProcessing }, time.Second, time.Millisecond)

	// Decoded while the first scan is still in flight; must be dropped.
	wf.handleDecode(ctx, sess, "inst_9", `{"id":"stu_2","name":"Bilal"}`)

	recorder.mu.Lock()
	got := len(recorder.records)
	recorder.mu.Unlock()
	assert.Equal(t, 1, got)

	cancel()
	require.NoError(t, <-done)
}
