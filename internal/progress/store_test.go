package progress_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, progress.NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := progress.NewMemoryStore()

	yp := progress.NewYearProgress("s1", 1)
	yp.Attempts["y1-m1"] = attemptFor("y1-m1", 80)
	if err := s.WriteYearProgress(ctx, yp, 0); err != nil {
		t.Fatalf("WriteYearProgress() error = %v", err)
	}

	yp.Attempts["y1-m2"] = attemptFor("y1-m2", 80)
	got, _ := s.GetYearProgress(ctx, "s1", 1)
	got.Attempts["y1-m3"] = attemptFor("y1-m3", 80)

	again, _ := s.GetYearProgress(ctx, "s1", 1)
	if len(again.Attempts) != 1 {
		t.Errorf("stored record was mutated through a caller copy: %d attempts", len(again.Attempts))
	}
}

// testStoreContract checks the behaviour every Store implementation must share.
// studentID is unique per call so the same backend can be reused.
func testStoreContract(t *testing.T, s progress.Store) {
	t.Helper()
	ctx := context.Background()
	student := "student-" + t.Name()

	t.Run("missing record", func(t *testing.T) {
		if _, err := s.GetYearProgress(ctx, student, 1); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetYearProgress() error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetProfileSummary(ctx, student, 1); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetProfileSummary() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("create and update", func(t *testing.T) {
		yp := progress.NewYearProgress(student, 1)
		yp.TotalModules = 2
		yp.Attempts["y1-m1"] = attemptFor("y1-m1", 80)
		yp.Summary = progress.Summarize(yp.Attempts, 2)
		yp.UpdatedAt = testTime

		if err := s.WriteYearProgress(ctx, yp, 0); err != nil {
			t.Fatalf("create: WriteYearProgress() error = %v", err)
		}

		got, err := s.GetYearProgress(ctx, student, 1)
		if err != nil {
			t.Fatalf("GetYearProgress() error = %v", err)
		}
		if got.Version != 1 {
			t.Errorf("Version = %d, want 1", got.Version)
		}
		if a := got.Attempts["y1-m1"]; a.Percentage != 80 || a.Answers[1] != 1 || !a.CompletedAt.Equal(testTime) {
			t.Errorf("attempt round trip = %+v", a)
		}

		ps, err := s.GetProfileSummary(ctx, student, 1)
		if err != nil {
			t.Fatalf("GetProfileSummary() error = %v", err)
		}
		if ps.Summary != got.Summary || ps.Version != 1 || ps.TotalModules != 2 {
			t.Errorf("profile summary = %+v, record summary = %+v", ps, got.Summary)
		}

		got.Attempts["y1-m2"] = attemptFor("y1-m2", 100)
		got.Summary = progress.Summarize(got.Attempts, 2)
		completed := testTime
		got.CompletedAt = &completed
		if err := s.WriteYearProgress(ctx, got, 1); err != nil {
			t.Fatalf("update: WriteYearProgress() error = %v", err)
		}

		ps, _ = s.GetProfileSummary(ctx, student, 1)
		if !ps.Summary.IsYearComplete || ps.Summary.CompletedCount != 2 || ps.Version != 2 {
			t.Errorf("profile summary after update = %+v", ps)
		}
		final, _ := s.GetYearProgress(ctx, student, 1)
		if final.CompletedAt == nil || !final.CompletedAt.Equal(testTime) {
			t.Errorf("CompletedAt = %v", final.CompletedAt)
		}
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		yp := progress.NewYearProgress(student, 2)
		yp.TotalModules = 1
		if err := s.WriteYearProgress(ctx, yp, 0); err != nil {
			t.Fatalf("WriteYearProgress() error = %v", err)
		}

		if err := s.WriteYearProgress(ctx, yp, 0); !errors.Is(err, apperr.ErrVersionConflict) {
			t.Errorf("second create error = %v, want ErrVersionConflict", err)
		}
		if err := s.WriteYearProgress(ctx, yp, 7); !errors.Is(err, apperr.ErrVersionConflict) {
			t.Errorf("wrong version error = %v, want ErrVersionConflict", err)
		}

		got, _ := s.GetYearProgress(ctx, student, 2)
		if got.Version != 1 {
			t.Errorf("Version after rejected writes = %d, want 1", got.Version)
		}
	})

	t.Run("update of missing record conflicts", func(t *testing.T) {
		yp := progress.NewYearProgress(student, 3)
		if err := s.WriteYearProgress(ctx, yp, 4); !errors.Is(err, apperr.ErrVersionConflict) {
			t.Errorf("WriteYearProgress() error = %v, want ErrVersionConflict", err)
		}
	})
}
