package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show a student's dashboard for one year",
		RunE: func(cmd *cobra.Command, args []string) error {
			student, _ := cmd.Flags().GetString("student")
			year, _ := cmd.Flags().GetInt("year")
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.Dashboard.Dashboard(cmd.Context(), student, year)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printView(cmd, view)
			return nil
		},
	}
	cmd.Flags().String("student", "", "Student ID")
	cmd.Flags().Int("year", 1, "Academic year")
	cmd.Flags().Bool("json", false, "Print the view as JSON")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func printView(cmd *cobra.Command, v dashboard.View) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d%% complete\n", v.YearTitle, v.ProgressPercent)
	fmt.Fprintf(out, "%-5s  %-16s  %-40s  %-12s  %s\n", "Order", "ID", "Title", "State", "Score")
	fmt.Fprintln(out, strings.Repeat("─", 90))
	for _, m := range v.Modules {
		score := "-"
		if m.Attempt != nil {
			score = fmt.Sprintf("%d%%", m.Attempt.Percentage)
		}
		fmt.Fprintf(out, "%-5d  %-16s  %-40s  %-12s  %s\n", m.Order, m.ModuleID, m.Title, m.State.Label(), score)
	}

	s := v.Stats
	fmt.Fprintf(out, "\ncompleted %d/%d, approved %d, failed %d, average %d%% (best %d%%, worst %d%%)\n",
		s.Completed, s.Total, s.Approved, s.Failed, s.AveragePercentage, s.BestPercentage, s.WorstPercentage)

	if len(v.NextUp) > 0 {
		ids := make([]string, 0, len(v.NextUp))
		for _, m := range v.NextUp {
			ids = append(ids, m.ModuleID)
		}
		fmt.Fprintf(out, "next up: %s\n", strings.Join(ids, ", "))
	}
	if v.CanDownloadCertificate {
		fmt.Fprintln(out, "certificate available")
	}
}

func newYearsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "years",
		Short: "Show which years a student can access",
		RunE: func(cmd *cobra.Command, args []string) error {
			student, _ := cmd.Flags().GetString("student")

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			years, err := a.Dashboard.Years(cmd.Context(), student)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, y := range years {
				state := "locked"
				switch {
				case y.Complete:
					state = "complete"
				case y.Unlocked:
					state = "unlocked"
				}
				fmt.Fprintf(out, "%d  %-30s  %s\n", y.Year, y.Title, state)
			}
			return nil
		},
	}
	cmd.Flags().String("student", "", "Student ID")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}
