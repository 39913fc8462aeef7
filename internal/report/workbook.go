package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/narastore/narastore/internal/rfp"
)

const (
	SheetRFPs  = "RFPs"
	SheetTodos = "Todos"
)

// WriteWorkbook exports RFPs and todos as an XLSX workbook with one sheet
// each.
func WriteWorkbook(w io.Writer, rfps []rfp.RFP, todos []rfp.Todo) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	titles := make(map[string]string, len(rfps))
	rfpRows := make([][]any, 0, len(rfps))
	for _, r := range rfps {
		titles[r.ID] = r.Title
		var project, budget, period string
		if a := r.StructuredAnalysis; a != nil {
			project, budget, period = a.Summary.ProjectName, a.Summary.Budget, a.Summary.Period
		}
		rfpRows = append(rfpRows, []any{
			r.ID, r.Title, r.AnalysisDate, string(r.Status),
			project, budget, period, r.PageCount, r.SizeBytes,
			r.CreatedAt.Format(time.RFC3339),
		})
	}

	todoRows := make([][]any, 0, len(todos))
	for _, t := range todos {
		todoRows = append(todoRows, []any{
			t.ID, t.RFPID, titles[t.RFPID], t.Text, t.Completed, t.CreatedAt.Format(time.RFC3339),
		})
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetRFPs, []any{"ID", "Title", "Analysis Date", "Status", "Project", "Budget", "Period", "Pages", "Size (bytes)", "Created At"}, rfpRows},
		{SheetTodos, []any{"ID", "RFP ID", "RFP Title", "Text", "Completed", "Created At"}, todoRows},
	}

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}
		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return fmt.Errorf("writing %s header: %w", s.name, err)
		}
		last, _ := excelize.CoordinatesToCellName(len(s.header), 1)
		if err := f.SetCellStyle(s.name, "A1", last, bold); err != nil {
			return fmt.Errorf("styling %s header: %w", s.name, err)
		}
		for j, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, j+2)
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", s.name, j+2, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(SheetRFPs); err == nil {
		f.SetActiveSheet(index)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
