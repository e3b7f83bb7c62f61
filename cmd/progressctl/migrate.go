package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/legacy"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <export.json>",
		Short: "Import progress from a legacy export",
		Long:  "Converts legacy per-student exports (a JSON object or array) into attempts and imports them. Attempts already recorded are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			exports, err := legacy.DecodeExports(f)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if !dryRun {
				warnIfEphemeral(cmd, a)
			}

			m := legacy.NewMigrator(legacy.Converter{Modules: a.Catalog, Scoring: a.Scoring}, a.Aggregator, dryRun)

			out := cmd.OutOrStdout()
			review := 0
			for _, e := range exports {
				rep, err := m.Run(cmd.Context(), e)
				if err != nil {
					return err
				}
				printReport(cmd, rep)
				for _, yr := range rep.Years {
					if !yr.Clean() {
						review++
					}
				}
			}

			verb := "imported"
			if dryRun {
				verb = "checked"
			}
			fmt.Fprintf(out, "%d students %s, %d years need review\n", len(exports), verb, review)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Convert and report without writing")
	return cmd
}

func printReport(cmd *cobra.Command, rep legacy.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", rep.StudentID)
	for _, key := range rep.UnknownYears {
		fmt.Fprintf(out, "  unknown year %q skipped\n", key)
	}
	for _, yr := range rep.Years {
		fmt.Fprintf(out, "  year %d: %d attempts, %d completed, %d approved\n",
			yr.Year, len(yr.Attempts), yr.Summary.CompletedCount, yr.Summary.ApprovedCount)
		for _, key := range yr.Unmatched {
			fmt.Fprintf(out, "    unmatched test %q\n", key)
		}
		for _, key := range yr.Duplicates {
			fmt.Fprintf(out, "    duplicate test %q ignored\n", key)
		}
		for _, msg := range yr.ApprovalMismatches {
			fmt.Fprintf(out, "    approval: %s\n", msg)
		}
		for _, msg := range yr.CounterMismatches {
			fmt.Fprintf(out, "    counter: %s\n", msg)
		}
	}
}
