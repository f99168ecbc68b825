package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session exists for the requested id.
var ErrNotFound = errors.New("session not found")

// Repository persists sessions and their attachments in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns a session with its attachments loaded, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, session_date, start_time, end_time, room, category, created_at
		FROM sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.Name, &s.Date, &s.StartTime, &s.EndTime, &s.Room, &s.Category, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, file_name, payload, instructor_name, created_at
		FROM attachments WHERE session_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.SessionID, &a.FileName, &a.Payload, &a.InstructorName, &a.CreatedAt); err != nil {
			return nil, err
		}
		s.Attachments = append(s.Attachments, a)
	}
	return &s, rows.Err()
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, name, session_date, start_time, end_time, room, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, s.ID, s.Name, s.Date, s.StartTime, s.EndTime, s.Room, s.Category)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// AddAttachment binds a file to a session.
func (r *Repository) AddAttachment(ctx context.Context, a Attachment) (Attachment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, session_id, file_name, payload, instructor_name)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, a.ID, a.SessionID, a.FileName, a.Payload, a.InstructorName)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attachment{}, err
	}
	return a, nil
}
