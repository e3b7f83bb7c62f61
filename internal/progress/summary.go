package progress

import (
	"math"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// Summarize recomputes the summary of a year from its attempts.
// totalModules is the number of modules in the year; attempts are expected to
// belong to those modules (see InYear).
func Summarize(attempts map[string]Attempt, totalModules int) Summary {
	s := Summary{CompletedCount: len(attempts)}
	if len(attempts) == 0 {
		return s
	}

	sum := 0
	s.WorstPercentage = 100
	for _, a := range attempts {
		if a.Approved {
			s.ApprovedCount++
		}
		sum += a.Percentage
		s.BestPercentage = max(s.BestPercentage, a.Percentage)
		s.WorstPercentage = min(s.WorstPercentage, a.Percentage)
	}
	s.AveragePercentage = int(math.Round(float64(sum) / float64(len(attempts))))
	s.IsYearComplete = totalModules > 0 && s.CompletedCount == totalModules
	return s
}

// RoundPercent returns 100*part/whole rounded half away from zero; 0 when whole is 0.
func RoundPercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}

// InYear returns the attempts whose module is one of modules. Attempts for
// modules dropped from the catalog stay on the record but are not counted.
func InYear(attempts map[string]Attempt, modules []catalog.Module) map[string]Attempt {
	out := make(map[string]Attempt, len(attempts))
	for _, m := range modules {
		if a, ok := attempts[m.ID]; ok {
			out[m.ID] = a
		}
	}
	return out
}
