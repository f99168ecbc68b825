package checkin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is one attendance entry. ID is deterministic over the
// (subject, session, date) triple so rescans collapse into conflicts
// instead of duplicate rows.
type Record struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	SubjectName  string    `json:"subject_name"`
	InstructorID string    `json:"instructor_id"`
	SessionID    string    `json:"session_id"`
	SessionName  string    `json:"session_name"`
	SessionDate  string    `json:"session_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordID builds the deterministic primary key for a triple.
func RecordID(subjectID, sessionID, date string) string {
	return fmt.Sprintf("%s:%s:%s", subjectID, sessionID, date)
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Exists reports whether a record already exists for the exact triple.
func (r *Repository) Exists(ctx context.Context, subjectID, sessionID, date string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE subject_id = $1 AND session_id = $2 AND session_date = $3
		)
	`, subjectID, sessionID, date)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Insert writes a record under its deterministic id. The insert is
// conflict-safe: a concurrent scan that won the race leaves created false
// rather than producing a second row for the same triple.
func (r *Repository) Insert(ctx context.Context, rec Record) (created bool, err error) {
	if rec.ID == "" {
		rec.ID = RecordID(rec.SubjectID, rec.SessionID, rec.SessionDate)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, subject_id, subject_name, instructor_id, session_id, session_name, session_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (subject_id, session_id, session_date) DO NOTHING
	`, rec.ID, rec.SubjectID, rec.SubjectName, rec.InstructorID, rec.SessionID, rec.SessionName, rec.SessionDate)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBySession returns records for one session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, subject_name, instructor_id, session_id, session_name, session_date, created_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.SubjectName, &rec.InstructorID, &rec.SessionID, &rec.SessionName, &rec.SessionDate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
