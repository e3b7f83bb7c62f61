package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/tracker"
)

func newGradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grade",
		Short:   "Grade a quiz submission and record the attempt",
		Example: "  progressctl grade --student s1 --year 1 --module 1ro_modulo_1 --answers 1=1,2=0,3=1,4=1,5=1",
		RunE: func(cmd *cobra.Command, args []string) error {
			student, _ := cmd.Flags().GetString("student")
			year, _ := cmd.Flags().GetInt("year")
			moduleID, _ := cmd.Flags().GetString("module")
			raw, _ := cmd.Flags().GetStringToInt("answers")

			answers := make(map[int]int, len(raw))
			for q, opt := range raw {
				id, err := strconv.Atoi(q)
				if err != nil {
					return fmt.Errorf("question id %q is not a number", q)
				}
				answers[id] = opt
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			warnIfEphemeral(cmd, a)

			res, err := a.Tracker.Submit(cmd.Context(), tracker.Submission{
				StudentID: student,
				Year:      year,
				ModuleID:  moduleID,
				Answers:   answers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outcome := "failed"
			if res.Attempt.Approved {
				outcome = "approved"
			}
			fmt.Fprintf(out, "%s: %d/%d (%d%%) %s, threshold %d%%\n",
				res.Attempt.ModuleID, res.Attempt.Score, res.Attempt.TotalQuestions,
				res.Attempt.Percentage, outcome, res.Attempt.PassingThreshold)

			s := res.Progress.Summary
			fmt.Fprintf(out, "year %d: %d/%d completed, %d approved, average %d%%\n",
				year, s.CompletedCount, res.Progress.TotalModules, s.ApprovedCount, s.AveragePercentage)
			if res.YearCompleted {
				fmt.Fprintf(out, "year %d completed\n", year)
			}
			return nil
		},
	}
	cmd.Flags().String("student", "", "Student ID")
	cmd.Flags().Int("year", 0, "Academic year")
	cmd.Flags().String("module", "", "Module ID")
	cmd.Flags().StringToInt("answers", nil, "Answers as question=option pairs")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}
