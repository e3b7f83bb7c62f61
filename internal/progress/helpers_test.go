package progress_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

var testTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// yearModules returns n modules m1..mN of year with one question each.
func yearModules(year, n int) []catalog.Module {
	modules := make([]catalog.Module, 0, n)
	for i := 1; i <= n; i++ {
		modules = append(modules, catalog.Module{
			ID:         fmt.Sprintf("y%d-m%d", year, i),
			Year:       year,
			Order:      i,
			Title:      fmt.Sprintf("Module %d", i),
			Difficulty: catalog.DifficultyBasic,
			Questions: []catalog.Question{{
				ID:   1,
				Text: "Q",
				Options: []catalog.Option{
					{ID: 0, Text: "no"},
					{ID: 1, Text: "yes", Correct: true},
				},
			}},
		})
	}
	return modules
}

func newCatalog(t *testing.T, modules ...[]catalog.Module) *catalog.Loader {
	t.Helper()
	var all []catalog.Module
	for _, m := range modules {
		all = append(all, m...)
	}
	c, err := catalog.FromModules(all)
	if err != nil {
		t.Fatalf("FromModules() error = %v", err)
	}
	return c
}

func attemptFor(moduleID string, percentage int) progress.Attempt {
	return progress.Attempt{
		ID:               "att-" + moduleID,
		ModuleID:         moduleID,
		Answers:          map[int]int{1: 1},
		Score:            percentage / 20,
		TotalQuestions:   5,
		Percentage:       percentage,
		Approved:         percentage >= 70,
		PassingThreshold: 70,
		CompletedAt:      testTime,
	}
}
