package session

import "time"

// Phase classifies a session relative to an instant.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// Classify reports whether a session window is upcoming, open, or closed at
// the given instant. Start is inclusive, end is exclusive. Dates and times are
// compared as "2006-01-02" / "15:04" strings, where lexicographic order equals
// chronological order, so the function is total over arbitrary inputs.
func Classify(date, start, end string, now time.Time) Phase {
	today := now.Format("2006-01-02")
	if date < today {
		return PhaseEnded
	}
	if date > today {
		return PhaseNotStarted
	}
	tod := now.Format("15:04")
	if tod < start {
		return PhaseNotStarted
	}
	if tod >= end {
		return PhaseEnded
	}
	return PhaseActive
}

// PhaseAt classifies this session at the given instant.
func (s *Session) PhaseAt(now time.Time) Phase {
	return Classify(s.Date, s.StartTime, s.EndTime, now)
}
