// Package report renders analysis reports and spreadsheet exports.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/narastore/narastore/internal/rfp"
)

// Filename is the download name for an RFP's PDF report.
func Filename(title string) string {
	title = strings.NewReplacer("/", "_", "\\", "_", "\"", "").Replace(strings.TrimSpace(title))
	if title == "" {
		title = "rfp"
	}
	return title + "_분석리포트.pdf"
}

// Renderer draws A4 PDF reports. The built-in PDF fonts cannot draw Hangul,
// so Korean text only renders when FontPath points at a UTF-8 TrueType font.
type Renderer struct {
	FontPath string
}

const family = "report"

// Unicode reports whether the renderer can draw non-Latin text.
func (rd Renderer) Unicode() bool { return rd.FontPath != "" }

// RenderPDF writes the report for r and its todos to w. Long content flows
// across as many pages as needed.
func (rd Renderer) RenderPDF(w io.Writer, r rfp.RFP, todos []rfp.Todo) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 18)

	font := "Arial"
	text := pdf.UnicodeTranslatorFromDescriptor("")
	if rd.FontPath != "" {
		pdf.AddUTF8Font(family, "", rd.FontPath)
		pdf.AddUTF8Font(family, "B", rd.FontPath)
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("loading report font: %w", err)
		}
		font = family
		text = func(s string) string { return s }
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(font, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	heading := func(s string) {
		pdf.Ln(4)
		pdf.SetFillColor(230, 236, 245)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(font, "B", 12)
		pdf.CellFormat(0, 8, text(s), "", 1, "L", true, 0, "")
		pdf.Ln(2)
	}
	field := func(label, value string) {
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(35, 6, text(label), "", 0, "L", false, 0, "")
		pdf.SetFont(font, "", 10)
		pdf.MultiCell(0, 6, text(value), "", "L", false)
	}
	bullets := func(items []string) {
		pdf.SetFont(font, "", 10)
		if len(items) == 0 {
			pdf.MultiCell(0, 6, text("-"), "", "L", false)
			return
		}
		for _, it := range items {
			pdf.MultiCell(0, 6, text("• "+it), "", "L", false)
		}
	}

	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 12, text(r.Title), "", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	field("Analysis date", r.AnalysisDate)
	field("Status", string(r.Status))
	if r.PageCount > 0 {
		field("Pages", fmt.Sprintf("%d", r.PageCount))
	}

	a := r.StructuredAnalysis
	if a == nil {
		heading("Analysis")
		pdf.SetFont(font, "", 10)
		body := r.Analysis
		if r.Summary != "" {
			body = r.Summary + "\n" + body
		}
		pdf.MultiCell(0, 6, text(body), "", "L", false)
	} else {
		heading("Summary")
		field("Project", a.Summary.ProjectName)
		field("Period", a.Summary.Period)
		field("Budget", a.Summary.Budget)
		field("Requirements", fmt.Sprintf("%d", max(a.Summary.TotalRequirementsCount, a.Requirements.ItemCount())))
		pdf.Ln(1)
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, 6, text("Expected effects"), "", 1, "L", false, 0, "")
		bullets(a.Summary.ExpectedEffects)

		heading("Requirements")
		for _, c := range a.Requirements {
			pdf.SetFont(font, "B", 10)
			pdf.CellFormat(0, 6, text(fmt.Sprintf("%s (%d)", c.Category, len(c.Items))), "", 1, "L", false, 0, "")
			bullets(c.Items)
			pdf.Ln(1)
		}

		heading("Strategy")
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, 6, text("Win strategy"), "", 1, "L", false, 0, "")
		bullets(a.Strategy.WinStrategy)
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, 6, text("References"), "", 1, "L", false, 0, "")
		bullets(a.Strategy.References)

		if len(a.ResourceRequirements) > 0 {
			heading("Resources")
			for _, rr := range a.ResourceRequirements {
				pdf.SetFont(font, "B", 10)
				pdf.CellFormat(0, 6, text(fmt.Sprintf("%s x%d", rr.Role, rr.Count)), "", 1, "L", false, 0, "")
				pdf.SetFont(font, "", 10)
				pdf.MultiCell(0, 6, text(strings.Join(rr.RequiredSkills, ", ")), "", "L", false)
				if rr.Reason != "" {
					pdf.MultiCell(0, 6, text(rr.Reason), "", "L", false)
				}
			}
		}
	}

	heading("To-do")
	pdf.SetFont(font, "", 10)
	if len(todos) == 0 {
		pdf.MultiCell(0, 6, text("-"), "", "L", false)
	}
	for _, t := range todos {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		pdf.MultiCell(0, 6, text(mark+" "+t.Text), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
