package materials

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rollcall/internal/session"
)

// Store is the persistence surface the fan-out needs.
type Store interface {
	Upsert(ctx context.Context, g Grant) error
}

// Result reports the outcome of delivering one attachment.
type Result struct {
	FileName string
	Err      error
}

// Delivered counts the successful results.
func Delivered(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Fanout delivers every attachment of a session to a subject's materials.
type Fanout struct {
	store Store
}

// NewFanout creates a fan-out backed by a store.
func NewFanout(store Store) *Fanout {
	return &Fanout{store: store}
}

// Deliver upserts one grant per attachment in parallel. Each delivery is
// independent: a failed attachment does not roll back the others, and the
// returned slice carries a result per attachment, in attachment order, so
// callers can report partial failures. Rerunning a delivery overwrites the
// existing grants rather than duplicating them.
func (f *Fanout) Deliver(ctx context.Context, subjectID string, sess *session.Session, instructorID string) []Result {
	results := make([]Result, len(sess.Attachments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, att := range sess.Attachments {
		i, att := i, att
		results[i].FileName = att.FileName
		g.Go(func() error {
			results[i].Err = f.store.Upsert(gctx, Grant{
				Key:          GrantKey(subjectID, sess.ID, att.FileName),
				SubjectID:    subjectID,
				SessionID:    sess.ID,
				FileName:     att.FileName,
				Payload:      att.Payload,
				InstructorID: instructorID,
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}
