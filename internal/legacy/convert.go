package legacy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/scoring"
)

// attemptNamespace seeds deterministic attempt ids so re-running a migration
// produces the same attempts.
var attemptNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pai-progress/legacy-attempt"))

// Report describes what a conversion did with one student's export.
type Report struct {
	StudentID    string
	Years        []YearReport
	UnknownYears []string // year keys that are not parseable or not in the catalog
}

// YearReport is the conversion result for one year.
type YearReport struct {
	Year               int
	Attempts           []progress.Attempt
	Matched            map[string]string // legacy test key -> module id
	Unmatched          []string
	Duplicates         []string // tests matching a module that already had an attempt
	ApprovalMismatches []string
	CounterMismatches  []string
	Summary            progress.Summary // derived from Attempts
}

// Clean reports whether the year converted without anything to review.
func (y YearReport) Clean() bool {
	return len(y.Unmatched) == 0 && len(y.Duplicates) == 0 &&
		len(y.ApprovalMismatches) == 0 && len(y.CounterMismatches) == 0
}

// Converter turns legacy exports into attempts.
type Converter struct {
	Modules catalog.ModuleStore
	Scoring scoring.Engine
	Now     func() time.Time // completion time for tests without a timestamp; default time.Now
}

// Convert derives attempts from the detailed legacy documents. The profile
// counters are only compared against the derived summary, never trusted.
func (c Converter) Convert(ctx context.Context, e Export) (Report, error) {
	rep := Report{StudentID: e.StudentID}
	if e.StudentID == "" {
		return rep, apperr.NewValidationError("invalid export",
			apperr.FieldError{Field: "student_id", Error: "required"})
	}

	docs := make(map[int]YearDocument)
	counters := make(map[int]ProfileCounters)
	for key, doc := range e.Progress {
		year, ok := ParseYearKey(key)
		if !ok {
			rep.UnknownYears = append(rep.UnknownYears, key)
			continue
		}
		docs[year] = doc
	}
	for key, pc := range e.Profile {
		year, ok := ParseYearKey(key)
		if !ok {
			rep.UnknownYears = append(rep.UnknownYears, key)
			continue
		}
		counters[year] = pc
	}

	years := make([]int, 0, len(docs)+len(counters))
	seen := make(map[int]bool)
	for y := range docs {
		years = append(years, y)
		seen[y] = true
	}
	for y := range counters {
		if !seen[y] {
			years = append(years, y)
		}
	}
	sort.Ints(years)

	for _, year := range years {
		modules, err := c.Modules.GetModulesByYear(ctx, year)
		if errors.Is(err, apperr.ErrNotFound) {
			rep.UnknownYears = append(rep.UnknownYears, fmt.Sprintf("%d", year))
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("converting year %d: %w", year, err)
		}
		yr := c.convertYear(e.StudentID, year, modules, docs[year])
		pc, hasCounters := counters[year]
		yr.CounterMismatches = compareCounters(yr.Summary, docs[year], pc, hasCounters)
		rep.Years = append(rep.Years, yr)
	}
	sort.Strings(rep.UnknownYears)
	return rep, nil
}

func (c Converter) convertYear(studentID string, year int, modules []catalog.Module, doc YearDocument) YearReport {
	yr := YearReport{Year: year, Matched: make(map[string]string)}
	matcher := NewMatcher(modules)

	keys := make([]string, 0, len(doc.Tests))
	for k := range doc.Tests {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Earliest test per module wins, the same as a first attempt would.
	type candidate struct {
		key     string
		attempt progress.Attempt
	}
	byModule := make(map[string]candidate)
	for _, key := range keys {
		t := doc.Tests[key]
		mod, _, ok := matcher.Match(key, t)
		if !ok {
			yr.Unmatched = append(yr.Unmatched, key)
			continue
		}
		yr.Matched[key] = mod.ID

		att, mismatch := c.attempt(studentID, year, key, mod, t)
		if mismatch != "" {
			yr.ApprovalMismatches = append(yr.ApprovalMismatches, mismatch)
		}
		prev, exists := byModule[mod.ID]
		switch {
		case !exists:
			byModule[mod.ID] = candidate{key: key, attempt: att}
		case att.CompletedAt.Before(prev.attempt.CompletedAt):
			yr.Duplicates = append(yr.Duplicates, prev.key)
			byModule[mod.ID] = candidate{key: key, attempt: att}
		default:
			yr.Duplicates = append(yr.Duplicates, key)
		}
	}

	attempts := make(map[string]progress.Attempt, len(byModule))
	for id, cand := range byModule {
		attempts[id] = cand.attempt
		yr.Attempts = append(yr.Attempts, cand.attempt)
	}
	sort.Slice(yr.Attempts, func(i, j int) bool { return yr.Attempts[i].ModuleID < yr.Attempts[j].ModuleID })
	sort.Strings(yr.Duplicates)
	yr.Summary = progress.Summarize(attempts, len(modules))
	return yr
}

// attempt builds an attempt from a legacy test. It returns a note when the
// stored approval flag disagrees with the threshold.
func (c Converter) attempt(studentID string, year int, key string, m catalog.Module, t Test) (progress.Attempt, string) {
	total := t.TotalQuestions
	if total <= 0 {
		total = t.MaxScore
	}
	if total <= 0 {
		total = len(m.Questions)
	}

	var pct, score int
	switch {
	case t.Percentage != nil:
		pct = int(math.Round(*t.Percentage))
		if t.Score != nil {
			score = *t.Score
		} else {
			score = int(math.Round(float64(pct) * float64(total) / 100))
		}
	case t.Score != nil:
		score = *t.Score
		pct = progress.RoundPercent(score, total)
	}
	pct = min(max(pct, 0), 100)
	score = min(max(score, 0), total)

	threshold := c.Scoring.Threshold(m)
	approved := pct >= threshold

	completedAt, ok := t.completedAt()
	if !ok {
		completedAt = c.now()
	}

	att := progress.Attempt{
		ID:               uuid.NewSHA1(attemptNamespace, []byte(strings.Join([]string{studentID, fmt.Sprint(year), key}, "/"))).String(),
		ModuleID:         m.ID,
		Year:             year,
		Answers:          answers(m, t),
		Score:            score,
		TotalQuestions:   total,
		Percentage:       pct,
		Approved:         approved,
		PassingThreshold: threshold,
		CompletedAt:      completedAt,
	}

	var mismatch string
	if t.Approved != nil && *t.Approved != approved {
		mismatch = fmt.Sprintf("%s: stored aprobado=%t, %d%% against threshold %d gives %t",
			key, *t.Approved, pct, threshold, approved)
	}
	return att, mismatch
}

// answers keeps the legacy answers that name a real question and option.
func answers(m catalog.Module, t Test) map[int]int {
	out := make(map[int]int)
	for qKey, q := range t.Questions {
		var qID int
		if _, err := fmt.Sscanf(strings.ToLower(qKey), "q%d", &qID); err != nil {
			continue
		}
		question, ok := m.Question(qID)
		if !ok {
			continue
		}
		if _, ok := question.Option(int(q.UserAnswer)); ok {
			out[qID] = int(q.UserAnswer)
		}
	}
	return out
}

func compareCounters(s progress.Summary, doc YearDocument, pc ProfileCounters, hasCounters bool) []string {
	var out []string
	check := func(name string, stored, derived int) {
		if stored != derived {
			out = append(out, fmt.Sprintf("%s=%d, derived %d", name, stored, derived))
		}
	}
	if hasCounters {
		check("progreso.nivelesCompletados", pc.CompletedLevels, s.CompletedCount)
		check("progreso.nivelesAprobados", pc.ApprovedLevels, s.ApprovedCount)
		if pc.Completed != s.IsYearComplete {
			out = append(out, fmt.Sprintf("progreso.completado=%t, derived %t", pc.Completed, s.IsYearComplete))
		}
	}
	if len(doc.Tests) > 0 || doc.TestsCompleted > 0 {
		check("progress.testsCompletados", doc.TestsCompleted, s.CompletedCount)
		check("progress.testsAprobados", doc.TestsApproved, s.ApprovedCount)
	}
	if doc.Resume != nil {
		check("progress.resumen.testsCompletados", doc.Resume.TestsCompleted, s.CompletedCount)
		if doc.Resume.Completed != s.IsYearComplete {
			out = append(out, fmt.Sprintf("progress.resumen.completado=%t, derived %t", doc.Resume.Completed, s.IsYearComplete))
		}
	}
	return out
}

func (c Converter) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
