package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

const dbTimeout = 5 * time.Second

// EventType names what happened to a submission.
type EventType string

const (
	EventAttemptRecorded    EventType = "attempt_recorded"
	EventYearCompleted      EventType = "year_completed"
	EventSubmissionRejected EventType = "submission_rejected"
)

// Event is a typed notification published for every submission outcome.
type Event struct {
	Type      EventType         `json:"type"`
	StudentID string            `json:"student_id"`
	Year      int               `json:"year"`
	ModuleID  string            `json:"module_id,omitempty"`
	Attempt   *progress.Attempt `json:"attempt,omitempty"`
	Summary   *progress.Summary `json:"summary,omitempty"`
	Reason    string            `json:"reason,omitempty"` // set on rejections
	CreatedAt time.Time         `json:"created_at"`
}

// EventLogger receives submission events.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests and the CLI.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresEventLogger inserts events into the progress_events table.
type PostgresEventLogger struct {
	db *database.DB
}

func NewPostgresEventLogger(db *database.DB) *PostgresEventLogger {
	return &PostgresEventLogger{db: db}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.db == nil || l.db.Pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.StudentID == "" {
		return fmt.Errorf("student_id is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.db.Pool.Exec(ctx,
		`INSERT INTO progress_events (event_type, student_id, year, module_id, data, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5::jsonb, $6)`,
		string(event.Type),
		event.StudentID,
		event.Year,
		event.ModuleID,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"student_id", event.StudentID,
		"year", event.Year,
		"module_id", event.ModuleID,
	)
	return nil
}
