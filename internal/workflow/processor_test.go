package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/checkin"
	"rollcall/internal/materials"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/session"
)

// -------- test fakes --------

type fakeRecorder struct {
	mu      sync.Mutex
	created map[string]bool
	err     error
	records []checkin.Record
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{created: map[string]bool{}}
}

func (f *fakeRecorder) Record(ctx context.Context, rec checkin.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.created[rec.ID] {
		return false, nil
	}
	f.created[rec.ID] = true
	f.records = append(f.records, rec)
	return true, nil
}

type fakeDeliverer struct {
	mu      sync.Mutex
	calls   int
	results []materials.Result
}

func (f *fakeDeliverer) Deliver(ctx context.Context, subjectID string, sess *session.Session, instructorID string) []materials.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.results != nil {
		return f.results
	}
	out := make([]materials.Result, len(sess.Attachments))
	for i, att := range sess.Attachments {
		out[i].FileName = att.FileName
	}
	return out
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notify.Notification
	count []int
	err   error
}

func (f *fakeNotifier) CheckInRecorded(ctx context.Context, subjectID, sessionID, sessionName string, delivered, failed int) (notify.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return notify.Notification{}, f.err
	}
	n := notify.Notification{SubjectID: subjectID, Category: notify.CategoryAttendance}
	f.sent = append(f.sent, n)
	f.count = append(f.count, delivered)
	return n, nil
}

func activeSession() *session.Session {
	return &session.Session{
		ID: "S1", Name: "Algebra II", Date: "2026-03-10",
		StartTime: "09:00", EndTime: "10:00",
		Attachments: []session.Attachment{
			{FileName: "A.pdf", Payload: []byte("aaa")},
			{FileName: "B.pdf", Payload: []byte("bbb")},
		},
	}
}

func TestProcessVerified(t *testing.T) {
	recorder := newFakeRecorder()
	deliverer := &fakeDeliverer{}
	notifier := &fakeNotifier{}
	events := queue.NewInMemory(4)
	proc := NewProcessor(recorder, deliverer, notifier, events)

	res, err := proc.Process(context.Background(), activeSession(), "inst_9", `{"id":"stu_1","name":"Amina K."}`)
	require.NoError(t, err)

	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, "stu_1", res.Subject.SubjectID)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 0, res.Failed)

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, "stu_1:S1:2026-03-10", rec.ID)
	assert.Equal(t, "2026-03-10", rec.SessionDate, "date is copied from the session, not re-derived")
	assert.Equal(t, "inst_9", rec.InstructorID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []int{2}, notifier.count)

	msgs, err := events.Consume(context.Background())
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.TypeCheckin, msg.Type)
	evt, err := queue.DecodeCheckin(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "S1", evt.SessionID)
	assert.Equal(t, 2, evt.Delivered)
}

// A duplicate scan records nothing, delivers nothing, and notifies nobody.
func TestProcessDuplicate(t *testing.T) {
	recorder := newFakeRecorder()
	deliverer := &fakeDeliverer{}
	notifier := &fakeNotifier{}
	proc := NewProcessor(recorder, deliverer, notifier, nil)

	payload := `{"id":"stu_1","name":"Amina K."}`
	_, err := proc.Process(context.Background(), activeSession(), "inst_9", payload)
	require.NoError(t, err)

	res, err := proc.Process(context.Background(), activeSession(), "inst_9", payload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Len(t, recorder.records, 1)
	assert.Equal(t, 1, deliverer.calls)
	assert.Len(t, notifier.sent, 1)
}

func TestProcessRecorderError(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.err = errors.New("db down")
	deliverer := &fakeDeliverer{}
	notifier := &fakeNotifier{}
	proc := NewProcessor(recorder, deliverer, notifier, nil)

	_, err := proc.Process(context.Background(), activeSession(), "inst_9", `{"id":"stu_1","name":"A"}`)
	require.Error(t, err)
	assert.Equal(t, 0, deliverer.calls, "delivery must not run before attendance is durable")
	assert.Empty(t, notifier.sent)
}

// Partial delivery failure still notifies, with the accurate count.
func TestProcessPartialDelivery(t *testing.T) {
	recorder := newFakeRecorder()
	deliverer := &fakeDeliverer{results: []materials.Result{
		{FileName: "A.pdf"},
		{FileName: "B.pdf", Err: errors.New("write timeout")},
	}}
	notifier := &fakeNotifier{}
	proc := NewProcessor(recorder, deliverer, notifier, nil)

	res, err := proc.Process(context.Background(), activeSession(), "inst_9", `{"id":"stu_1","name":"A"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int{1}, notifier.count)
}

// Malformed payloads still check in under the synthesized identity.
func TestProcessFallbackIdentity(t *testing.T) {
	recorder := newFakeRecorder()
	proc := NewProcessor(recorder, &fakeDeliverer{}, &fakeNotifier{}, nil)

	res, err := proc.Process(context.Background(), activeSession(), "inst_9", "badge-7781-xyz")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, "badge-7781-xyz", res.Subject.SubjectID)
	assert.Equal(t, "Student badge-", res.Subject.DisplayName)
}
