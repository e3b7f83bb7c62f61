package progress

import (
	"context"
	"strconv"
	"sync"

	"github.com/p-n-ai/pai-progress/internal/apperr"
)

// Store persists year progress records and their profile summary copy.
type Store interface {
	// GetYearProgress returns apperr.ErrNotFound when the student has no record for the year.
	GetYearProgress(ctx context.Context, studentID string, year int) (YearProgress, error)
	// WriteYearProgress atomically writes yp and its profile summary if the persisted
	// version still equals expectedVersion, otherwise it returns apperr.ErrVersionConflict.
	// The stored record gets version expectedVersion+1.
	WriteYearProgress(ctx context.Context, yp YearProgress, expectedVersion int64) error
	GetProfileSummary(ctx context.Context, studentID string, year int) (ProfileSummary, error)
}

type recordKey struct {
	studentID string
	year      int
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records   map[recordKey]YearProgress
	summaries map[recordKey]ProfileSummary
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[recordKey]YearProgress),
		summaries: make(map[recordKey]ProfileSummary),
	}
}

func (s *MemoryStore) GetYearProgress(_ context.Context, studentID string, year int) (YearProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	yp, ok := s.records[recordKey{studentID, year}]
	if !ok {
		return YearProgress{}, apperr.NotFound("year progress", studentID+"/"+strconv.Itoa(year))
	}
	return yp.Clone(), nil
}

func (s *MemoryStore) WriteYearProgress(_ context.Context, yp YearProgress, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{yp.StudentID, yp.Year}
	current, ok := s.records[key]
	if (ok && current.Version != expectedVersion) || (!ok && expectedVersion != 0) {
		return apperr.ErrVersionConflict
	}

	stored := yp.Clone()
	stored.Version = expectedVersion + 1
	s.records[key] = stored
	s.summaries[key] = stored.ProfileSummary()
	return nil
}

func (s *MemoryStore) GetProfileSummary(_ context.Context, studentID string, year int) (ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.summaries[recordKey{studentID, year}]
	if !ok {
		return ProfileSummary{}, apperr.NotFound("profile summary", studentID+"/"+strconv.Itoa(year))
	}
	return ps, nil
}
