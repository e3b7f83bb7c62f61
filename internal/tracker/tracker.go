// Package tracker is the entry point for quiz submissions: it validates a
// typed submission, grades it, records the attempt and publishes the outcome.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/scoring"
)

// Submission is a student's answers to one module quiz.
type Submission struct {
	StudentID string      `json:"student_id" validate:"required,max=128"`
	Year      int         `json:"year" validate:"required,min=1"`
	ModuleID  string      `json:"module_id" validate:"required"`
	Answers   map[int]int `json:"answers" validate:"dive,keys,min=1,endkeys,min=0"` // question id -> option id
}

// Result is the outcome of an accepted submission.
type Result struct {
	Attempt       progress.Attempt      `json:"attempt"`
	Progress      progress.YearProgress `json:"progress"`
	YearCompleted bool                  `json:"year_completed"` // the year became complete with this submission
}

// Config holds dependencies for the tracker.
type Config struct {
	Catalog    catalog.ModuleStore
	Scoring    scoring.Engine
	Aggregator *progress.Aggregator
	Events     EventLogger      // default NopEventLogger
	Metrics    *metrics.Metrics // optional
	Now        func() time.Time // default time.Now
}

// Tracker processes submissions.
type Tracker struct {
	catalog    catalog.ModuleStore
	scoring    scoring.Engine
	aggregator *progress.Aggregator
	events     EventLogger
	metrics    *metrics.Metrics
	validate   *validator.Validate
	now        func() time.Time
}

// New creates a tracker.
func New(cfg Config) *Tracker {
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		catalog:    cfg.Catalog,
		scoring:    cfg.Scoring,
		aggregator: cfg.Aggregator,
		events:     events,
		metrics:    cfg.Metrics,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        now,
	}
}

// Submit grades and records a submission.
func (t *Tracker) Submit(ctx context.Context, sub Submission) (Result, error) {
	slog.Info("processing submission",
		"student_id", sub.StudentID,
		"year", sub.Year,
		"module_id", sub.ModuleID,
		"answers", len(sub.Answers),
	)

	res, err := t.submit(ctx, sub)
	if err != nil {
		reason := rejectionReason(err)
		t.metrics.SubmissionRejected(reason)
		t.publish(ctx, Event{
			Type:      EventSubmissionRejected,
			StudentID: sub.StudentID,
			Year:      sub.Year,
			ModuleID:  sub.ModuleID,
			Reason:    reason,
		})
		if reason == "storage" {
			slog.Error("submission failed", "student_id", sub.StudentID, "module_id", sub.ModuleID, "error", err)
		} else {
			slog.Warn("submission rejected", "student_id", sub.StudentID, "module_id", sub.ModuleID, "reason", reason, "error", err)
		}
		return Result{}, err
	}

	t.metrics.AttemptRecorded(sub.Year, res.Attempt.Approved)
	summary := res.Progress.Summary
	t.publish(ctx, Event{
		Type:      EventAttemptRecorded,
		StudentID: sub.StudentID,
		Year:      sub.Year,
		ModuleID:  sub.ModuleID,
		Attempt:   &res.Attempt,
		Summary:   &summary,
	})
	if res.YearCompleted {
		t.publish(ctx, Event{
			Type:      EventYearCompleted,
			StudentID: sub.StudentID,
			Year:      sub.Year,
			Summary:   &summary,
		})
	}
	return res, nil
}

func (t *Tracker) submit(ctx context.Context, sub Submission) (Result, error) {
	if err := t.validate.Struct(sub); err != nil {
		return Result{}, validationError(err)
	}

	module, err := t.catalog.GetModule(ctx, sub.ModuleID)
	if err != nil {
		return Result{}, fmt.Errorf("submit: %w", err)
	}
	if module.Year != sub.Year {
		return Result{}, fmt.Errorf("submit: year %d: %w", sub.Year, apperr.NotFound("module", sub.ModuleID))
	}

	attempt, err := t.scoring.Grade(module, sub.Answers)
	if err != nil {
		return Result{}, fmt.Errorf("submit: %w", err)
	}

	yp, err := t.aggregator.Reconcile(ctx, sub.StudentID, sub.Year, attempt)
	if err != nil {
		return Result{}, fmt.Errorf("submit: %w", err)
	}

	return Result{
		Attempt:       yp.Attempts[attempt.ModuleID],
		Progress:      yp,
		YearCompleted: yp.CompletedInLastWrite(),
	}, nil
}

// publish hands event to the logger. A failing logger never fails a recorded submission.
func (t *Tracker) publish(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t.now()
	}
	if err := t.events.LogEvent(ctx, event); err != nil {
		slog.Error("failed to log event", "type", event.Type, "student_id", event.StudentID, "error", err)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.NewValidationError(err.Error())
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field: fe.Namespace(),
			Error: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}
	return apperr.NewValidationError("invalid submission", fields...)
}

func rejectionReason(err error) string {
	switch {
	case apperr.IsValidation(err):
		return "validation"
	case errors.Is(err, apperr.ErrDuplicateAttempt):
		return "duplicate_attempt"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrVersionConflict):
		return "conflict"
	default:
		return "storage"
	}
}
