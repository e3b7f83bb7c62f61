package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/report"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write student dashboards to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			students, _ := cmd.Flags().GetStringSlice("students")
			year, _ := cmd.Flags().GetInt("year")
			path, _ := cmd.Flags().GetString("out")

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var years []int
			if year != 0 {
				years = []int{year}
			} else {
				for _, y := range a.Catalog.Years() {
					years = append(years, y.Year)
				}
			}

			var rows []report.Row
			for _, student := range students {
				for _, y := range years {
					view, err := a.Dashboard.Dashboard(cmd.Context(), student, y)
					if err != nil {
						return err
					}
					rows = append(rows, report.RowFromView(student, view))
				}
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := report.WriteWorkbook(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), path)
			return nil
		},
	}
	cmd.Flags().StringSlice("students", nil, "Student IDs (comma separated)")
	cmd.Flags().Int("year", 0, "Only export this year")
	cmd.Flags().String("out", "progress.xlsx", "Output file")
	_ = cmd.MarkFlagRequired("students")
	return cmd
}
