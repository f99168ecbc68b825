package materials

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Grant is a delivered-file record giving a subject access to one session
// attachment. Key is deterministic so redelivery overwrites instead of
// duplicating.
type Grant struct {
	Key          string    `json:"key"`
	SubjectID    string    `json:"subject_id"`
	SessionID    string    `json:"session_id"`
	FileName     string    `json:"file_name"`
	Payload      []byte    `json:"-"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// GrantKey builds the composite key for a delivery. The file name is reduced
// to its alphanumeric characters so the key survives renames of punctuation
// and stays a stable upsert target.
func GrantKey(subjectID, sessionID, fileName string) string {
	return fmt.Sprintf("%s:%s:%s", subjectID, sessionID, sanitize(fileName))
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Repository persists material grants in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates or replaces the grant under its deterministic key.
func (r *Repository) Upsert(ctx context.Context, g Grant) error {
	if g.Key == "" {
		g.Key = GrantKey(g.SubjectID, g.SessionID, g.FileName)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO material_grants (grant_key, subject_id, session_id, file_name, payload, instructor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (grant_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			instructor_id = EXCLUDED.instructor_id,
			created_at = NOW()
	`, g.Key, g.SubjectID, g.SessionID, g.FileName, g.Payload, g.InstructorID)
	return err
}

// ListBySubject returns grant metadata for one subject, newest first.
// Payloads are not loaded.
func (r *Repository) ListBySubject(ctx context.Context, subjectID string) ([]Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT grant_key, subject_id, session_id, file_name, instructor_id, created_at
		FROM material_grants
		WHERE subject_id = $1
		ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Key, &g.SubjectID, &g.SessionID, &g.FileName, &g.InstructorID, &g.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
