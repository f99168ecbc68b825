package queue

import (
	"context"
	"encoding/json"
	"time"
)

// TypeCheckin labels messages carrying a CheckinEvent body.
const TypeCheckin = "checkin"

// CheckinEvent is the wire body published after a successful check-in.
// Dashboard consumers key live counters off SessionID.
type CheckinEvent struct {
	SessionID   string    `json:"session_id"`
	SessionName string    `json:"session_name"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Delivered   int       `json:"delivered"`
	At          time.Time `json:"at"`
}

// PublishCheckin marshals and enqueues a check-in event.
func PublishCheckin(ctx context.Context, q Queue, evt CheckinEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.Publish(ctx, Message{Type: TypeCheckin, Body: body})
}

// DecodeCheckin parses a checkin message body.
func DecodeCheckin(body []byte) (CheckinEvent, error) {
	var evt CheckinEvent
	err := json.Unmarshal(body, &evt)
	return evt, err
}
