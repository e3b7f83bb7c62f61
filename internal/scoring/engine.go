// Package scoring grades quiz answers against a module's question bank.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

// DefaultPassingThreshold is the minimum percentage that approves a module
// when the module does not set its own passing score.
const DefaultPassingThreshold = 70

// Engine grades submissions. The zero value is ready to use.
type Engine struct {
	PassingThreshold int              // default DefaultPassingThreshold
	Now              func() time.Time // default time.Now
	NewID            func() string    // default uuid.NewString
}

// Threshold returns the passing threshold that applies to m.
func (e Engine) Threshold(m catalog.Module) int {
	if m.PassingScore > 0 {
		return m.PassingScore
	}
	if e.PassingThreshold > 0 {
		return e.PassingThreshold
	}
	return DefaultPassingThreshold
}

// Grade scores answers (question id -> option id) against m.
// Unanswered questions count as incorrect. Answers naming an unknown question,
// or an option outside its question, are rejected with a ValidationError.
func (e Engine) Grade(m catalog.Module, answers map[int]int) (progress.Attempt, error) {
	if len(m.Questions) == 0 {
		return progress.Attempt{}, apperr.NewValidationError("module has no questions",
			apperr.FieldError{Field: "module_id", Error: m.ID})
	}
	if fields := checkAnswers(m, answers); len(fields) > 0 {
		return progress.Attempt{}, apperr.NewValidationError("invalid answers", fields...)
	}

	score := 0
	for _, q := range m.Questions {
		optID, answered := answers[q.ID]
		if !answered {
			continue
		}
		if opt, _ := q.Option(optID); opt.Correct {
			score++
		}
	}

	total := len(m.Questions)
	percentage := progress.RoundPercent(score, total)
	threshold := e.Threshold(m)

	kept := make(map[int]int, len(answers))
	for q, o := range answers {
		kept[q] = o
	}

	return progress.Attempt{
		ID:               e.newID(),
		ModuleID:         m.ID,
		Year:             m.Year,
		Answers:          kept,
		Score:            score,
		TotalQuestions:   total,
		Percentage:       percentage,
		Approved:         percentage >= threshold,
		PassingThreshold: threshold,
		CompletedAt:      e.now(),
	}, nil
}

func checkAnswers(m catalog.Module, answers map[int]int) []apperr.FieldError {
	qids := make([]int, 0, len(answers))
	for qid := range answers {
		qids = append(qids, qid)
	}
	sort.Ints(qids)

	var fields []apperr.FieldError
	for _, qid := range qids {
		field := fmt.Sprintf("answers.%d", qid)
		q, ok := m.Question(qid)
		if !ok {
			fields = append(fields, apperr.FieldError{Field: field, Error: "unknown question"})
			continue
		}
		if _, ok := q.Option(answers[qid]); !ok {
			fields = append(fields, apperr.FieldError{Field: field, Error: fmt.Sprintf("unknown option %d", answers[qid])})
		}
	}
	return fields
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
