package notify

import (
	"context"
	"fmt"
)

// CategoryAttendance tags check-in notifications in the inbox.
const CategoryAttendance = "attendance"

// Store is the persistence surface the notifier needs.
type Store interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
}

// Notifier writes the single inbox entry summarizing a check-in.
type Notifier struct {
	store Store
}

// NewNotifier creates a notifier backed by a store.
func NewNotifier(store Store) *Notifier {
	return &Notifier{store: store}
}

// CheckInRecorded appends one unread notification stating how many session
// files were delivered. Zero is a valid count; failed deliveries are called
// out so the subject knows to ask for a rescan.
func (n *Notifier) CheckInRecorded(ctx context.Context, subjectID, sessionID, sessionName string, delivered, failed int) (Notification, error) {
	body := fmt.Sprintf("Checked in to %s. %d session files delivered.", sessionName, delivered)
	if failed > 0 {
		body = fmt.Sprintf("Checked in to %s. %d session files delivered, %d failed.", sessionName, delivered, failed)
	}
	return n.store.Insert(ctx, Notification{
		SubjectID: subjectID,
		Title:     "Attendance recorded",
		Body:      body,
		Category:  CategoryAttendance,
		Link:      "/sessions/" + sessionID,
	})
}
