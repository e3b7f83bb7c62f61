// Package dashboard assembles the per-year dashboard view from the catalog and a progress record.
package dashboard

import (
	"sort"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

const (
	maxNextUp            = 3
	maxRecentlyCompleted = 4
)

// Stats are the dashboard counters, derived from the resolved module list.
type Stats struct {
	Total             int  `json:"total"`
	Completed         int  `json:"completed"`
	Approved          int  `json:"approved"`
	Failed            int  `json:"failed"`
	InProgress        int  `json:"in_progress"`
	Pending           int  `json:"pending"`
	NotStarted        int  `json:"not_started"`
	AveragePercentage int  `json:"average_percentage"`
	BestPercentage    int  `json:"best_percentage"`
	WorstPercentage   int  `json:"worst_percentage"`
	IsYearComplete    bool `json:"is_year_complete"`
}

// View is everything a dashboard renders for one student and year.
type View struct {
	Year                   int                     `json:"year"`
	YearTitle              string                  `json:"year_title"`
	Modules                []progress.ModuleStatus `json:"modules"`
	NextUp                 []progress.ModuleStatus `json:"next_up"`
	RecentlyCompleted      []progress.ModuleStatus `json:"recently_completed"`
	Stats                  Stats                   `json:"stats"`
	ProgressPercent        int                     `json:"progress_percent"`
	CanDownloadCertificate bool                    `json:"can_download_certificate"`
}

// Assemble builds the view for year from its modules and the student's record.
// Counters come from the attempt map, never from the stored summary.
func Assemble(year catalog.YearInfo, modules []catalog.Module, yp progress.YearProgress, r *progress.Resolver) View {
	statuses := r.Resolve(modules, yp)

	// Attempts for modules outside the year do not count.
	attempts := make(map[string]progress.Attempt, len(statuses))
	for _, st := range statuses {
		if st.Attempt != nil {
			attempts[st.ModuleID] = *st.Attempt
		}
	}
	sum := progress.Summarize(attempts, len(statuses))
	if yp.CompletedAt != nil {
		sum.IsYearComplete = true
	}

	stats := Stats{
		Total:             len(statuses),
		Completed:         sum.CompletedCount,
		Approved:          sum.ApprovedCount,
		AveragePercentage: sum.AveragePercentage,
		BestPercentage:    sum.BestPercentage,
		WorstPercentage:   sum.WorstPercentage,
		IsYearComplete:    sum.IsYearComplete,
	}
	for _, st := range statuses {
		switch st.State {
		case progress.StateFailed:
			stats.Failed++
		case progress.StateInProgress:
			stats.InProgress++
		case progress.StatePending:
			stats.Pending++
		}
	}
	stats.NotStarted = stats.Total - stats.Completed - stats.InProgress

	return View{
		Year:                   year.Year,
		YearTitle:              year.Title,
		Modules:                statuses,
		NextUp:                 nextUp(statuses),
		RecentlyCompleted:      recentlyCompleted(statuses),
		Stats:                  stats,
		ProgressPercent:        progress.RoundPercent(stats.Completed, stats.Total),
		CanDownloadCertificate: stats.IsYearComplete,
	}
}

// nextUp lists the module in progress followed by the reachable pending
// modules in order. A pending module is reachable when it was skipped, i.e. it
// sits below the highest attempted module; later ones are still gated.
func nextUp(statuses []progress.ModuleStatus) []progress.ModuleStatus {
	highest := 0
	for _, st := range statuses {
		if st.Attempt != nil && st.Order > highest {
			highest = st.Order
		}
	}

	var out []progress.ModuleStatus
	for _, st := range statuses {
		if st.State == progress.StateInProgress {
			out = append(out, st)
		}
	}
	for _, st := range statuses {
		if len(out) >= maxNextUp {
			break
		}
		if st.State == progress.StatePending && st.Order < highest {
			out = append(out, st)
		}
	}
	if len(out) > maxNextUp {
		out = out[:maxNextUp]
	}
	return out
}

// recentlyCompleted lists attempted modules, most recent attempt first.
func recentlyCompleted(statuses []progress.ModuleStatus) []progress.ModuleStatus {
	var out []progress.ModuleStatus
	for _, st := range statuses {
		if st.Attempt != nil {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Attempt.CompletedAt, out[j].Attempt.CompletedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Order > out[j].Order
	})
	if len(out) > maxRecentlyCompleted {
		out = out[:maxRecentlyCompleted]
	}
	return out
}
