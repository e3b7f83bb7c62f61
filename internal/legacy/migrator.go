package legacy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

// Migrator converts legacy exports and writes them through the aggregator.
type Migrator struct {
	converter  Converter
	aggregator *progress.Aggregator
	dryRun     bool
}

// NewMigrator creates a migrator. With dryRun set nothing is written.
func NewMigrator(c Converter, agg *progress.Aggregator, dryRun bool) *Migrator {
	return &Migrator{converter: c, aggregator: agg, dryRun: dryRun}
}

// Run converts one export and imports every year that produced attempts.
// Attempts already present in the store are kept.
func (m *Migrator) Run(ctx context.Context, e Export) (Report, error) {
	rep, err := m.converter.Convert(ctx, e)
	if err != nil {
		return rep, fmt.Errorf("migrating %s: %w", e.StudentID, err)
	}

	for _, yr := range rep.Years {
		if !yr.Clean() {
			slog.Warn("legacy year needs review",
				"student_id", rep.StudentID,
				"year", yr.Year,
				"unmatched", yr.Unmatched,
				"duplicates", yr.Duplicates,
				"approval_mismatches", len(yr.ApprovalMismatches),
				"counter_mismatches", yr.CounterMismatches,
			)
		}
		if m.dryRun || len(yr.Attempts) == 0 {
			continue
		}
		yp, err := m.aggregator.Import(ctx, rep.StudentID, yr.Year, yr.Attempts)
		if err != nil {
			return rep, fmt.Errorf("migrating %s year %d: %w", rep.StudentID, yr.Year, err)
		}
		slog.Info("legacy year imported",
			"student_id", rep.StudentID,
			"year", yr.Year,
			"attempts", len(yr.Attempts),
			"completed", yp.Summary.CompletedCount,
			"version", yp.Version,
		)
	}
	return rep, nil
}
