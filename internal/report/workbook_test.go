package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/dashboard"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/report"
)

func twoModules() []catalog.Module {
	mod := func(id string, order int) catalog.Module {
		return catalog.Module{
			ID: id, Year: 1, Order: order, Title: "Module " + id,
			Questions: []catalog.Question{{ID: 1, Text: "Q", Options: []catalog.Option{{ID: 1, Text: "a", Correct: true}}}},
		}
	}
	return []catalog.Module{mod("a", 1), mod("b", 2)}
}

func TestRowFromView(t *testing.T) {
	yp := progress.NewYearProgress("s1", 1)
	yp.Attempts["a"] = progress.Attempt{
		ModuleID: "a", Year: 1, Score: 4, TotalQuestions: 5, Percentage: 80, Approved: true,
		PassingThreshold: 70, CompletedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	v := dashboard.Assemble(catalog.YearInfo{Year: 1, Title: "First"}, twoModules(), yp,
		progress.NewResolver(progress.ResolverConfig{}))

	row := report.RowFromView("s1", v)
	assert.Equal(t, "s1", row.StudentID)
	assert.Equal(t, "First", row.YearTitle)
	assert.Equal(t, 1, row.Stats.Completed)
	require.Len(t, row.Modules, 2)
	assert.Equal(t, "Approved (80%)", row.Modules[0].String())
	assert.Equal(t, "In progress", row.Modules[1].String())
}

func TestWriteWorkbook(t *testing.T) {
	cells := []report.ModuleCell{
		{Title: "Intro", Label: "Approved", Percentage: 90, Attempted: true},
		{Title: "Redes", Label: "Failed", Percentage: 40, Attempted: true},
	}
	rows := []report.Row{
		{StudentID: "s2", Year: 1, YearTitle: "First", ProgressPercent: 100, Modules: cells,
			Stats: dashboard.Stats{Total: 2, Completed: 2, Approved: 1, AveragePercentage: 65, BestPercentage: 90, WorstPercentage: 40, IsYearComplete: true}},
		{StudentID: "s1", Year: 1, YearTitle: "First", ProgressPercent: 50, Modules: cells[:1],
			Stats: dashboard.Stats{Total: 2, Completed: 1, Approved: 1, AveragePercentage: 90, BestPercentage: 90, WorstPercentage: 90}},
		{StudentID: "s1", Year: 2, YearTitle: "Second", Stats: dashboard.Stats{Total: 8}},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteWorkbook(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Year 1", "Year 2"}, f.GetSheetList())

	year1, err := f.GetRows(report.SheetName(1))
	require.NoError(t, err)
	require.Len(t, year1, 3)
	assert.Equal(t, []string{"Student", "Completed", "Approved", "Average %", "Best %", "Worst %", "Progress %", "Complete", "Intro", "Redes"}, year1[0])
	assert.Equal(t, []string{"s1", "1", "1", "90", "90", "90", "50", "no", "Approved (90%)"}, year1[1], "rows are sorted by student")
	assert.Equal(t, []string{"s2", "2", "1", "65", "90", "40", "100", "yes", "Approved (90%)", "Failed (40%)"}, year1[2])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"1", "First", "2", "1", "75", "78"}, summary[1])
	assert.Equal(t, []string{"2", "Second", "1", "0", "0", "0"}, summary[2])
}

func TestWriteWorkbook_ColumnsFollowTitles(t *testing.T) {
	rows := []report.Row{
		{StudentID: "a1", Year: 1, Modules: []report.ModuleCell{
			{Title: "Redes", Label: "Failed", Percentage: 40, Attempted: true},
		}},
		{StudentID: "b2", Year: 1, Modules: []report.ModuleCell{
			{Title: "Intro", Label: "Approved", Percentage: 90, Attempted: true},
			{Title: "Redes", Label: "In progress"},
			{Title: "Datos", Label: "Locked"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteWorkbook(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	year1, err := f.GetRows(report.SheetName(1))
	require.NoError(t, err)
	require.Len(t, year1, 3)
	assert.Equal(t, []string{"Intro", "Redes", "Datos"}, year1[0][8:])
	assert.Equal(t, []string{"", "Failed (40%)"}, year1[1][8:])
	assert.Equal(t, []string{"Approved (90%)", "In progress", "Locked"}, year1[2][8:])
}

func TestWriteWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteWorkbook(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary"}, f.GetSheetList())
}
