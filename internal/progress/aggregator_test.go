package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

func newAggregator(t *testing.T, store progress.Store, retake progress.RetakePolicy) *progress.Aggregator {
	t.Helper()
	return progress.NewAggregator(progress.AggregatorConfig{
		Modules: newCatalog(t, yearModules(1, 3), yearModules(2, 2)),
		Store:   store,
		Retake:  retake,
		Now:     func() time.Time { return testTime },
	})
}

func TestAggregator_Reconcile(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), "")

	yp, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 80))
	require.NoError(t, err)
	assert.Equal(t, int64(1), yp.Version)
	assert.Equal(t, 3, yp.TotalModules)
	assert.Equal(t, 1, yp.Summary.CompletedCount)
	assert.Equal(t, 1, yp.Summary.ApprovedCount)
	assert.Equal(t, 1, yp.Attempts["y1-m1"].Year)
	assert.Nil(t, yp.CompletedAt)

	yp, err = agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m2", 40))
	require.NoError(t, err)
	assert.Equal(t, progress.Summary{
		CompletedCount:    2,
		ApprovedCount:     1,
		AveragePercentage: 60,
		BestPercentage:    80,
		WorstPercentage:   40,
	}, yp.Summary)

	ps, err := agg.Store().GetProfileSummary(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, yp.Summary, ps.Summary, "profile summary copy must match the record")
	assert.Equal(t, yp.Version, ps.Version)
}

func TestAggregator_Reconcile_Errors(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), "")

	_, err := agg.Reconcile(ctx, "s1", 9, attemptFor("y1-m1", 80))
	assert.ErrorIs(t, err, apperr.ErrNotFound, "unknown year")

	_, err = agg.Reconcile(ctx, "s1", 1, attemptFor("y2-m1", 80))
	assert.ErrorIs(t, err, apperr.ErrNotFound, "module of another year")

	_, err = agg.Reconcile(ctx, "", 1, attemptFor("y1-m1", 80))
	assert.True(t, apperr.IsValidation(err), "missing student id: %v", err)

	_, err = agg.Store().GetYearProgress(ctx, "s1", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "rejected reconciles must not write")
}

func TestAggregator_DuplicateAttempt(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), progress.RetakeSingle)

	_, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 40))
	require.NoError(t, err)

	_, err = agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 100))
	require.ErrorIs(t, err, apperr.ErrDuplicateAttempt)

	yp, err := agg.Store().GetYearProgress(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 40, yp.Attempts["y1-m1"].Percentage)
	assert.Equal(t, int64(1), yp.Version)
}

func TestAggregator_RetakeOverwrite(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), progress.RetakeOverwrite)

	_, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 40))
	require.NoError(t, err)
	yp, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 100))
	require.NoError(t, err)

	assert.Equal(t, 1, yp.Summary.CompletedCount)
	assert.Equal(t, 1, yp.Summary.ApprovedCount)
	assert.Equal(t, 100, yp.Summary.AveragePercentage)
}

func TestAggregator_YearCompletion(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), progress.RetakeOverwrite)

	_, err := agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m1", 90))
	require.NoError(t, err)
	yp, err := agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m2", 10))
	require.NoError(t, err)

	assert.True(t, yp.Summary.IsYearComplete)
	require.NotNil(t, yp.CompletedAt)
	assert.True(t, yp.CompletedInLastWrite())

	// Later writes keep the completion flag and its timestamp.
	later := testTime.Add(time.Hour)
	agg = progress.NewAggregator(progress.AggregatorConfig{
		Modules: newCatalog(t, yearModules(1, 3), yearModules(2, 2)),
		Store:   agg.Store(),
		Retake:  progress.RetakeOverwrite,
		Now:     func() time.Time { return later },
	})
	yp, err = agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m2", 95))
	require.NoError(t, err)
	assert.True(t, yp.Summary.IsYearComplete)
	assert.True(t, yp.CompletedAt.Equal(testTime))
	assert.False(t, yp.CompletedInLastWrite())
}

func TestAggregator_YearCompletion_ReportedOnce(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), progress.RetakeOverwrite)

	// The clock does not move between writes.
	_, err := agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m1", 90))
	require.NoError(t, err)
	yp, err := agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m2", 10))
	require.NoError(t, err)
	require.True(t, yp.CompletedInLastWrite())

	yp, err = agg.Reconcile(ctx, "s1", 2, attemptFor("y2-m2", 95))
	require.NoError(t, err)
	assert.True(t, yp.Summary.IsYearComplete)
	assert.True(t, yp.CompletedAt.Equal(yp.UpdatedAt))
	assert.False(t, yp.CompletedInLastWrite())

	stored, err := agg.Store().GetYearProgress(ctx, "s1", 2)
	require.NoError(t, err)
	assert.False(t, stored.CompletedInLastWrite())
}

func TestAggregator_IgnoresAttemptsOutsideCatalog(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()

	// y1-m9 was removed from the catalog after it was attempted.
	yp := progress.NewYearProgress("s1", 1)
	yp.Attempts["y1-m1"] = attemptFor("y1-m1", 80)
	yp.Attempts["y1-m9"] = attemptFor("y1-m9", 100)
	require.NoError(t, store.WriteYearProgress(ctx, yp, 0))

	agg := newAggregator(t, store, "")
	got, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m2", 40))
	require.NoError(t, err)

	assert.Contains(t, got.Attempts, "y1-m9", "attempt stays on the record")
	assert.Equal(t, progress.Summary{
		CompletedCount:    2,
		ApprovedCount:     1,
		AveragePercentage: 60,
		BestPercentage:    80,
		WorstPercentage:   40,
	}, got.Summary)
	assert.False(t, got.Summary.IsYearComplete)
	assert.Nil(t, got.CompletedAt)
}

func TestAggregator_CompletionIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()

	// A record completed under a smaller catalog stays complete after the year grows.
	completed := testTime
	yp := progress.NewYearProgress("s1", 1)
	yp.TotalModules = 1
	yp.Attempts["y1-m1"] = attemptFor("y1-m1", 80)
	yp.Summary = progress.Summarize(yp.Attempts, 1)
	yp.CompletedAt = &completed
	require.NoError(t, store.WriteYearProgress(ctx, yp, 0))

	agg := newAggregator(t, store, "")
	got, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m2", 80))
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalModules)
	assert.True(t, got.Summary.IsYearComplete)
}

func TestAggregator_SummaryConsistency(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), progress.RetakeOverwrite)

	sequence := []progress.Attempt{
		attemptFor("y1-m2", 20), attemptFor("y1-m1", 100), attemptFor("y1-m2", 70),
		attemptFor("y1-m3", 0), attemptFor("y1-m1", 60),
	}
	wasComplete := false
	for _, a := range sequence {
		yp, err := agg.Reconcile(ctx, "s1", 1, a)
		require.NoError(t, err)

		assert.Equal(t, len(yp.Attempts), yp.Summary.CompletedCount)
		assert.LessOrEqual(t, yp.Summary.ApprovedCount, yp.Summary.CompletedCount)
		assert.Equal(t, progress.Summarize(yp.Attempts, yp.TotalModules).ApprovedCount, yp.Summary.ApprovedCount)
		if wasComplete {
			assert.True(t, yp.Summary.IsYearComplete)
		}
		wasComplete = yp.Summary.IsYearComplete
	}
	assert.True(t, wasComplete)
}

func TestAggregator_Import(t *testing.T) {
	ctx := context.Background()
	agg := newAggregator(t, progress.NewMemoryStore(), "")

	_, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 90))
	require.NoError(t, err)

	yp, err := agg.Import(ctx, "s1", 1, []progress.Attempt{attemptFor("y1-m1", 10), attemptFor("y1-m2", 50)})
	require.NoError(t, err)
	assert.Equal(t, 90, yp.Attempts["y1-m1"].Percentage, "existing attempts win")
	assert.Equal(t, 2, yp.Summary.CompletedCount)

	again, err := agg.Import(ctx, "s1", 1, []progress.Attempt{attemptFor("y1-m2", 50)})
	require.NoError(t, err)
	assert.Equal(t, yp.Version, again.Version, "no-op import must not write")

	_, err = agg.Import(ctx, "s1", 1, []progress.Attempt{attemptFor("y2-m1", 50)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// conflictingStore fails the first n writes with a version conflict.
type conflictingStore struct {
	*progress.MemoryStore
	mu        sync.Mutex
	conflicts int
	writes    int
}

func (s *conflictingStore) WriteYearProgress(ctx context.Context, yp progress.YearProgress, expected int64) error {
	s.mu.Lock()
	s.writes++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return apperr.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.MemoryStore.WriteYearProgress(ctx, yp, expected)
}

func TestAggregator_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()

	store := &conflictingStore{MemoryStore: progress.NewMemoryStore(), conflicts: 2}
	agg := newAggregator(t, store, "")
	_, err := agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 80))
	require.NoError(t, err)
	assert.Equal(t, 3, store.writes)

	store = &conflictingStore{MemoryStore: progress.NewMemoryStore(), conflicts: 100}
	agg = newAggregator(t, store, "")
	_, err = agg.Reconcile(ctx, "s1", 1, attemptFor("y1-m1", 80))
	assert.ErrorIs(t, err, apperr.ErrVersionConflict)
	assert.Equal(t, 4, store.writes, "one write plus three retries")
}

type failingStore struct {
	*progress.MemoryStore
}

func (failingStore) WriteYearProgress(context.Context, progress.YearProgress, int64) error {
	return apperr.Storage("write year progress", errors.New("connection reset"))
}

func TestAggregator_StorageErrorSurfaces(t *testing.T) {
	agg := newAggregator(t, failingStore{progress.NewMemoryStore()}, "")

	_, err := agg.Reconcile(context.Background(), "s1", 1, attemptFor("y1-m1", 80))
	assert.True(t, apperr.IsStorage(err), "error = %v", err)
}

func TestAggregator_ConcurrentReconcile(t *testing.T) {
	testConcurrentReconcile(t, progress.NewMemoryStore())
}

// testConcurrentReconcile submits the same module from several goroutines:
// exactly one attempt is persisted and every other caller gets a duplicate error.
func testConcurrentReconcile(t *testing.T, store progress.Store) {
	t.Helper()
	ctx := context.Background()
	agg := progress.NewAggregator(progress.AggregatorConfig{
		Modules:    newCatalog(t, yearModules(1, 3)),
		Store:      store,
		MaxRetries: 10,
	})

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Reconcile(ctx, "race", 1, attemptFor("y1-m1", 80))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrDuplicateAttempt):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dupes)

	yp, err := store.GetYearProgress(ctx, "race", 1)
	require.NoError(t, err)
	assert.Len(t, yp.Attempts, 1)
	assert.Equal(t, int64(1), yp.Version)
}
