package session

import "time"

// Session is a scheduled class or exam meeting with a fixed time window.
// Date is "2006-01-02"; StartTime and EndTime are "15:04" wall-clock strings.
type Session struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Date        string       `json:"date"`
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	Room        string       `json:"room"`
	Category    string       `json:"category"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file bound to a session for distribution to attendees.
// Payloads are embedded and immutable once attached.
type Attachment struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	FileName       string    `json:"file_name"`
	Payload        []byte    `json:"-"`
	InstructorName string    `json:"instructor_name"`
	CreatedAt      time.Time `json:"created_at"`
}
