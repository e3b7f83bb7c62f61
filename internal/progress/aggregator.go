package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
)

// RetakePolicy decides what happens when a module already has an attempt.
type RetakePolicy string

const (
	// RetakeSingle rejects a second attempt with apperr.ErrDuplicateAttempt.
	RetakeSingle RetakePolicy = "single"
	// RetakeOverwrite replaces the previous attempt.
	RetakeOverwrite RetakePolicy = "overwrite"
)

const defaultMaxRetries = 3

// AggregatorConfig holds dependencies for the aggregator.
type AggregatorConfig struct {
	Modules    catalog.ModuleStore
	Store      Store
	Retake     RetakePolicy     // default RetakeSingle
	MaxRetries int              // re-reads after a version conflict (default 3)
	Metrics    *metrics.Metrics // optional
	Now        func() time.Time // default time.Now
}

// Aggregator applies attempts to a student's year progress and persists the
// record and its summary copy in one write.
type Aggregator struct {
	modules    catalog.ModuleStore
	store      Store
	retake     RetakePolicy
	maxRetries int
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAggregator creates a new aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	retake := cfg.Retake
	if retake == "" {
		retake = RetakeSingle
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		modules:    cfg.Modules,
		store:      store,
		retake:     retake,
		maxRetries: maxRetries,
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// Store returns the progress store the aggregator writes to.
func (a *Aggregator) Store() Store {
	return a.store
}

// Reconcile records attempt for the student's year and returns the persisted record.
func (a *Aggregator) Reconcile(ctx context.Context, studentID string, year int, attempt Attempt) (YearProgress, error) {
	if studentID == "" || attempt.ModuleID == "" {
		return YearProgress{}, apperr.NewValidationError("invalid attempt",
			apperr.FieldError{Field: "student_id/module_id", Error: "required"})
	}

	modules, err := a.modules.GetModulesByYear(ctx, year)
	if err != nil {
		return YearProgress{}, fmt.Errorf("reconcile: %w", err)
	}
	if !containsModule(modules, attempt.ModuleID) {
		return YearProgress{}, fmt.Errorf("reconcile: year %d: %w", year, apperr.NotFound("module", attempt.ModuleID))
	}
	attempt.Year = year

	yp, err := a.update(ctx, studentID, year, modules, func(yp *YearProgress) (bool, error) {
		if _, exists := yp.Attempts[attempt.ModuleID]; exists && a.retake != RetakeOverwrite {
			return false, fmt.Errorf("module %s: %w", attempt.ModuleID, apperr.ErrDuplicateAttempt)
		}
		yp.Attempts[attempt.ModuleID] = attempt.clone()
		return true, nil
	})
	if err != nil {
		return YearProgress{}, fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("attempt reconciled",
		"student_id", studentID,
		"year", year,
		"module_id", attempt.ModuleID,
		"percentage", attempt.Percentage,
		"approved", attempt.Approved,
		"completed", yp.Summary.CompletedCount,
		"total", yp.TotalModules,
	)
	return yp, nil
}

// Import merges a batch of attempts into the student's year progress in one write.
// Attempts for modules that already have one are skipped.
func (a *Aggregator) Import(ctx context.Context, studentID string, year int, attempts []Attempt) (YearProgress, error) {
	modules, err := a.modules.GetModulesByYear(ctx, year)
	if err != nil {
		return YearProgress{}, fmt.Errorf("import: %w", err)
	}
	for _, att := range attempts {
		if !containsModule(modules, att.ModuleID) {
			return YearProgress{}, fmt.Errorf("import: year %d: %w", year, apperr.NotFound("module", att.ModuleID))
		}
	}

	yp, err := a.update(ctx, studentID, year, modules, func(yp *YearProgress) (bool, error) {
		changed := false
		for _, att := range attempts {
			if _, exists := yp.Attempts[att.ModuleID]; exists {
				continue
			}
			att.Year = year
			yp.Attempts[att.ModuleID] = att.clone()
			changed = true
		}
		return changed || yp.Version == 0, nil
	})
	if err != nil {
		return YearProgress{}, fmt.Errorf("import: %w", err)
	}
	return yp, nil
}

// update reads the record, applies mutate, recomputes the summary and writes it
// back, retrying from a fresh read when another writer got there first.
func (a *Aggregator) update(ctx context.Context, studentID string, year int, modules []catalog.Module,
	mutate func(*YearProgress) (bool, error)) (YearProgress, error) {
	for try := 0; ; try++ {
		yp, err := a.store.GetYearProgress(ctx, studentID, year)
		if errors.Is(err, apperr.ErrNotFound) {
			yp = NewYearProgress(studentID, year)
		} else if err != nil {
			return YearProgress{}, fmt.Errorf("reading year progress: %w", err)
		}
		if yp.Attempts == nil {
			yp.Attempts = make(map[string]Attempt)
		}
		expected := yp.Version

		changed, err := mutate(&yp)
		if err != nil {
			return YearProgress{}, err
		}
		if !changed {
			return yp, nil
		}

		now := a.now()
		yp.TotalModules = len(modules)
		yp.Summary = Summarize(InYear(yp.Attempts, modules), len(modules))
		completedNow := false
		switch {
		case yp.CompletedAt != nil:
			yp.Summary.IsYearComplete = true
		case yp.Summary.IsYearComplete:
			yp.CompletedAt = &now
			completedNow = true
		}
		yp.UpdatedAt = now

		err = a.store.WriteYearProgress(ctx, yp, expected)
		if err == nil {
			yp.Version = expected + 1
			yp.completedNow = completedNow
			if completedNow {
				a.metrics.YearCompleted()
				slog.Info("year completed", "student_id", studentID, "year", year)
			}
			return yp, nil
		}
		if !errors.Is(err, apperr.ErrVersionConflict) {
			return YearProgress{}, fmt.Errorf("writing year progress: %w", err)
		}

		a.metrics.WriteConflict()
		if try >= a.maxRetries {
			return YearProgress{}, fmt.Errorf("writing year progress after %d tries: %w", try+1, err)
		}
		slog.Warn("year progress changed concurrently, retrying",
			"student_id", studentID,
			"year", year,
			"try", try+1,
		)
	}
}

func containsModule(modules []catalog.Module, id string) bool {
	for _, m := range modules {
		if m.ID == id {
			return true
		}
	}
	return false
}
