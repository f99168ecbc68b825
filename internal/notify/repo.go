package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification is one inbox entry for a subject.
type Notification struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Read      bool      `json:"read"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists notifications in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a notification. New notifications are unread.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.Read = false
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, subject_id, title, body, category, read, link)
		VALUES ($1,$2,$3,$4,$5,FALSE,$6)
		RETURNING created_at
	`, n.ID, n.SubjectID, n.Title, n.Body, n.Category, n.Link)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// ListBySubject returns a subject's inbox, newest first.
func (r *Repository) ListBySubject(ctx context.Context, subjectID string) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, title, body, category, read, link, created_at
		FROM notifications
		WHERE subject_id = $1
		ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.Title, &n.Body, &n.Category, &n.Read, &n.Link, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkRead flips the read flag.
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}
