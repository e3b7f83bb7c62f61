// Package report exports dashboard data as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-progress/internal/dashboard"
)

const summarySheet = "Summary"

// Row is one student's standing in one year.
type Row struct {
	StudentID       string
	Year            int
	YearTitle       string
	Stats           dashboard.Stats
	ProgressPercent int
	Modules         []ModuleCell // in module order
}

// ModuleCell is the state of one module in a row.
type ModuleCell struct {
	Title      string
	Label      string
	Percentage int
	Attempted  bool
}

func (c ModuleCell) String() string {
	if !c.Attempted {
		return c.Label
	}
	return fmt.Sprintf("%s (%d%%)", c.Label, c.Percentage)
}

// RowFromView flattens a dashboard view into a report row.
func RowFromView(studentID string, v dashboard.View) Row {
	row := Row{
		StudentID:       studentID,
		Year:            v.Year,
		YearTitle:       v.YearTitle,
		Stats:           v.Stats,
		ProgressPercent: v.ProgressPercent,
	}
	for _, m := range v.Modules {
		cell := ModuleCell{Title: m.Title, Label: m.State.Label()}
		if m.Attempt != nil {
			cell.Attempted = true
			cell.Percentage = m.Attempt.Percentage
		}
		row.Modules = append(row.Modules, cell)
	}
	return row
}

// SheetName returns the sheet holding a year's rows.
func SheetName(year int) string {
	return fmt.Sprintf("Year %d", year)
}

// WriteWorkbook writes one sheet per year plus a summary sheet to w.
func WriteWorkbook(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	byYear := make(map[int][]Row)
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	summary := [][]any{{"Year", "Title", "Students", "Years complete", "Average progress %", "Average score %"}}
	for _, year := range years {
		yearRows := byYear[year]
		sort.Slice(yearRows, func(i, j int) bool { return yearRows[i].StudentID < yearRows[j].StudentID })

		if err := writeYearSheet(f, SheetName(year), yearRows); err != nil {
			return err
		}
		if err := f.SetRowStyle(SheetName(year), 1, 1, header); err != nil {
			return fmt.Errorf("styling %s: %w", SheetName(year), err)
		}
		summary = append(summary, summaryRow(yearRows))
	}

	if err := setRows(f, summarySheet, summary); err != nil {
		return err
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, header); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeYearSheet(f *excelize.File, sheet string, rows []Row) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}

	head := []any{"Student", "Completed", "Approved", "Average %", "Best %", "Worst %", "Progress %", "Complete"}
	titles := moduleTitles(rows)
	for _, title := range titles {
		head = append(head, title)
	}
	data := [][]any{head}
	for _, r := range rows {
		line := []any{
			r.StudentID,
			r.Stats.Completed,
			r.Stats.Approved,
			r.Stats.AveragePercentage,
			r.Stats.BestPercentage,
			r.Stats.WorstPercentage,
			r.ProgressPercent,
			yesNo(r.Stats.IsYearComplete),
		}
		cells := make(map[string]string, len(r.Modules))
		for _, m := range r.Modules {
			cells[m.Title] = m.String()
		}
		for _, title := range titles {
			line = append(line, cells[title])
		}
		data = append(data, line)
	}
	return setRows(f, sheet, data)
}

// moduleTitles returns the module columns of a year sheet: the longest row's
// titles in order, followed by any title only other rows carry.
func moduleTitles(rows []Row) []string {
	longest := rows[0]
	for _, r := range rows[1:] {
		if len(r.Modules) > len(longest.Modules) {
			longest = r
		}
	}
	var titles []string
	seen := make(map[string]bool)
	for _, r := range append([]Row{longest}, rows...) {
		for _, m := range r.Modules {
			if !seen[m.Title] {
				seen[m.Title] = true
				titles = append(titles, m.Title)
			}
		}
	}
	return titles
}

func summaryRow(rows []Row) []any {
	var complete, progressSum, scoreSum, scored int
	for _, r := range rows {
		if r.Stats.IsYearComplete {
			complete++
		}
		progressSum += r.ProgressPercent
		if r.Stats.Completed > 0 {
			scoreSum += r.Stats.AveragePercentage
			scored++
		}
	}
	return []any{
		rows[0].Year,
		rows[0].YearTitle,
		len(rows),
		complete,
		mean(progressSum, len(rows)),
		mean(scoreSum, scored),
	}
}

func setRows(f *excelize.File, sheet string, data [][]any) error {
	for i, line := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func mean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
