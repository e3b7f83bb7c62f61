// Package progress derives module status from a student's attempts and keeps
// the per-year progress record and its summary copy consistent on every write.
package progress

import (
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// Attempt is one graded quiz submission for a module.
type Attempt struct {
	ID               string      `json:"id"`
	ModuleID         string      `json:"module_id"`
	Year             int         `json:"year"`
	Answers          map[int]int `json:"answers"` // question id -> option id
	Score            int         `json:"score"`
	TotalQuestions   int         `json:"total_questions"`
	Percentage       int         `json:"percentage"`
	Approved         bool        `json:"approved"`
	PassingThreshold int         `json:"passing_threshold"`
	CompletedAt      time.Time   `json:"completed_at"`
}

// Summary holds the counters derived from a year's attempts.
type Summary struct {
	CompletedCount    int  `json:"completed_count"`
	ApprovedCount     int  `json:"approved_count"`
	AveragePercentage int  `json:"average_percentage"`
	BestPercentage    int  `json:"best_percentage"`
	WorstPercentage   int  `json:"worst_percentage"`
	IsYearComplete    bool `json:"is_year_complete"`
}

// YearProgress is a student's progress record for one academic year.
// Summary is always recomputed from Attempts.
type YearProgress struct {
	StudentID    string             `json:"student_id"`
	Year         int                `json:"year"`
	TotalModules int                `json:"total_modules"`
	Attempts     map[string]Attempt `json:"attempts"` // module id -> attempt
	Summary      Summary            `json:"summary"`
	Version      int64              `json:"version"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`

	completedNow bool // set on the copy returned by the write that completed the year
}

// NewYearProgress returns an empty, never persisted record.
func NewYearProgress(studentID string, year int) YearProgress {
	return YearProgress{
		StudentID: studentID,
		Year:      year,
		Attempts:  make(map[string]Attempt),
	}
}

// Clone returns a deep copy of yp.
func (yp YearProgress) Clone() YearProgress {
	out := yp
	out.completedNow = false
	out.Attempts = make(map[string]Attempt, len(yp.Attempts))
	for id, a := range yp.Attempts {
		out.Attempts[id] = a.clone()
	}
	if yp.CompletedAt != nil {
		t := *yp.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// CompletedInLastWrite reports whether the year became complete in the write
// that produced yp. Records read back from a store always report false.
func (yp YearProgress) CompletedInLastWrite() bool {
	return yp.completedNow
}

// ProfileSummary returns the denormalized summary copy of yp.
func (yp YearProgress) ProfileSummary() ProfileSummary {
	return ProfileSummary{
		StudentID:    yp.StudentID,
		Year:         yp.Year,
		TotalModules: yp.TotalModules,
		Summary:      yp.Summary,
		Version:      yp.Version,
		UpdatedAt:    yp.UpdatedAt,
	}
}

func (a Attempt) clone() Attempt {
	if a.Answers == nil {
		return a
	}
	answers := make(map[int]int, len(a.Answers))
	for q, o := range a.Answers {
		answers[q] = o
	}
	a.Answers = answers
	return a
}

// ProfileSummary is the per-year summary stored beside the student profile.
// It is written in the same atomic operation as the YearProgress it mirrors.
type ProfileSummary struct {
	StudentID    string    `json:"student_id"`
	Year         int       `json:"year"`
	TotalModules int       `json:"total_modules"`
	Summary      Summary   `json:"summary"`
	Version      int64     `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// State is the derived status of a module.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateApproved   State = "approved"
	StateFailed     State = "failed"
)

// Label returns the display label of the state.
func (s State) Label() string {
	switch s {
	case StateApproved:
		return "Approved"
	case StateFailed:
		return "Failed"
	case StateInProgress:
		return "In progress"
	case StatePending:
		return "Pending"
	default:
		return string(s)
	}
}

// ModuleStatus is the derived view of one module. It is never persisted.
type ModuleStatus struct {
	ModuleID                 string             `json:"module_id"`
	Order                    int                `json:"order"`
	Title                    string             `json:"title"`
	Icon                     string             `json:"icon,omitempty"`
	Difficulty               catalog.Difficulty `json:"difficulty"`
	EstimatedDurationMinutes int                `json:"estimated_duration_minutes,omitempty"`
	State                    State              `json:"state"`
	ProgressPercent          int                `json:"progress_percent"`
	Attempt                  *Attempt           `json:"attempt,omitempty"`
}
