package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List modules (optionally for one year)",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			years := a.Catalog.Years()
			if year != 0 {
				years = []catalog.YearInfo{{Year: year, Title: a.Catalog.YearTitle(year)}}
			}

			out := cmd.OutOrStdout()
			total := 0
			for _, y := range years {
				modules, err := a.Catalog.GetModulesByYear(cmd.Context(), y.Year)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s (year %d)\n", y.Title, y.Year)
				fmt.Fprintf(out, "%-5s  %-16s  %-40s  %-12s  %9s  %7s\n",
					"Order", "ID", "Title", "Difficulty", "Questions", "Passing")
				fmt.Fprintln(out, strings.Repeat("─", 100))
				for _, m := range modules {
					title := m.Title
					if len([]rune(title)) > 40 {
						title = string([]rune(title)[:37]) + "..."
					}
					fmt.Fprintf(out, "%-5d  %-16s  %-40s  %-12s  %9d  %6d%%\n",
						m.Order, m.ID, title, m.Difficulty.DisplayName(), len(m.Questions), a.Scoring.Threshold(m))
				}
				fmt.Fprintln(out)
				total += len(modules)
			}

			fmt.Fprintf(out, "%d modules\n", total)
			return nil
		},
	}
	cmd.Flags().Int("year", 0, "Only list modules of this year")
	return cmd
}
