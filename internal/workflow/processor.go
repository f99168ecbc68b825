// Package workflow drives the QR check-in pipeline: decode a scanned payload,
// guard against double recording, append the attendance record, fan the
// session files out to the subject, and notify their inbox.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rollcall/internal/checkin"
	"rollcall/internal/materials"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/scan"
	"rollcall/internal/session"
)

var scansProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_scans_total",
	Help: "Processed scans by outcome.",
}, []string{"outcome"})

// Outcome is the terminal status of one processed scan.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeDuplicate Outcome = "duplicate"
)

// Result summarizes one processed scan.
type Result struct {
	Outcome   Outcome       `json:"outcome"`
	Subject   scan.Identity `json:"subject"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
}

// Recorder admits attendance records, reporting whether one was created.
type Recorder interface {
	Record(ctx context.Context, rec checkin.Record) (bool, error)
}

// Deliverer fans session attachments out to a subject.
type Deliverer interface {
	Deliver(ctx context.Context, subjectID string, sess *session.Session, instructorID string) []materials.Result
}

// Notifier appends the check-in summary to the subject's inbox.
type Notifier interface {
	CheckInRecorded(ctx context.Context, subjectID, sessionID, sessionName string, delivered, failed int) (notify.Notification, error)
}

// Processor runs the per-scan pipeline. It is stateless across scans; the
// caller supplies the session each scan belongs to.
type Processor struct {
	recorder  Recorder
	deliverer Deliverer
	notifier  Notifier
	events    queue.Queue
}

// NewProcessor wires the pipeline. events may be nil when no live dashboard
// feed is configured.
func NewProcessor(recorder Recorder, deliverer Deliverer, notifier Notifier, events queue.Queue) *Processor {
	return &Processor{recorder: recorder, deliverer: deliverer, notifier: notifier, events: events}
}

// Process handles one decoded payload against an active session. The
// attendance record is written before any delivery is attempted; delivery and
// notification are bonus effects of a successful check-in. Duplicate scans
// return OutcomeDuplicate with no further side effects.
func (p *Processor) Process(ctx context.Context, sess *session.Session, instructorID, raw string) (Result, error) {
	id := scan.Decode(raw)

	created, err := p.recorder.Record(ctx, checkin.Record{
		ID:           checkin.RecordID(id.SubjectID, sess.ID, sess.Date),
		SubjectID:    id.SubjectID,
		SubjectName:  id.DisplayName,
		InstructorID: instructorID,
		SessionID:    sess.ID,
		SessionName:  sess.Name,
		SessionDate:  sess.Date,
	})
	if err != nil {
		scansProcessed.WithLabelValues("error").Inc()
		return Result{Subject: id}, fmt.Errorf("record attendance: %w", err)
	}
	if !created {
		scansProcessed.WithLabelValues("duplicate").Inc()
		return Result{Outcome: OutcomeDuplicate, Subject: id}, nil
	}

	results := p.deliverer.Deliver(ctx, id.SubjectID, sess, instructorID)
	delivered := materials.Delivered(results)
	failed := len(results) - delivered
	for _, r := range results {
		if r.Err != nil {
			log.Printf("deliver %s to %s failed: %v", r.FileName, id.SubjectID, r.Err)
		}
	}

	if _, err := p.notifier.CheckInRecorded(ctx, id.SubjectID, sess.ID, sess.Name, delivered, failed); err != nil {
		scansProcessed.WithLabelValues("error").Inc()
		return Result{Subject: id, Delivered: delivered, Failed: failed}, fmt.Errorf("notify: %w", err)
	}

	if p.events != nil {
		evt := queue.CheckinEvent{
			SessionID:   sess.ID,
			SessionName: sess.Name,
			SubjectID:   id.SubjectID,
			SubjectName: id.DisplayName,
			Delivered:   delivered,
			At:          time.Now().UTC(),
		}
		if err := queue.PublishCheckin(ctx, p.events, evt); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	scansProcessed.WithLabelValues("verified").Inc()
	return Result{Outcome: OutcomeVerified, Subject: id, Delivered: delivered, Failed: failed}, nil
}
