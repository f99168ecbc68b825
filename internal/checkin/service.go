package checkin

import (
	"context"
	"errors"
)

// Store is the persistence surface the service needs.
type Store interface {
	Exists(ctx context.Context, subjectID, sessionID, date string) (bool, error)
	Insert(ctx context.Context, rec Record) (bool, error)
}

// Service coordinates the duplicate guard and the attendance write.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record admits one attendance entry for the record's triple. It returns
// created=false when the subject was already recorded for that session and
// date, whether detected by the read guard or by losing the insert race.
func (s *Service) Record(ctx context.Context, rec Record) (created bool, err error) {
	if rec.SubjectID == "" || rec.SessionID == "" || rec.SessionDate == "" {
		return false, errors.New("subject, session and date required")
	}
	exists, err := s.store.Exists(ctx, rec.SubjectID, rec.SessionID, rec.SessionDate)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return s.store.Insert(ctx, rec)
}
