package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"go-leaf-inspector/pkg/models"

	"github.com/go-pdf/fpdf"
)

// ReportTitle heads the PDF report.
const ReportTitle = "Laporan Hasil Deteksi Jagung"

// PDFHeader is the column row of the PDF report.
var PDFHeader = []string{"ID", "Filename", "Result", "Model", "Date", "Confidence"}

var pdfWidths = []float64{14, 60, 28, 28, 40, 25}

// PDFRows renders records as report rows, newest id first. Confidence is a
// percentage with two decimals, or "-" when unknown.
func PDFRows(records []*models.PredictionRecord) [][]string {
	sorted := append([]*models.PredictionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	rows := make([][]string, 0, len(sorted))
	for _, rec := range sorted {
		confidence := "-"
		if rec.Confidence != nil {
			confidence = fmt.Sprintf("%.2f%%", *rec.Confidence*100)
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Filename,
			rec.Result,
			rec.ModelUsed,
			rec.PredictionDate,
			confidence,
		})
	}
	return rows
}

// WritePDF writes the prediction report: a title and one grid table with a
// gray header row.
func WritePDF(w io.Writer, records []*models.PredictionRecord) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(ReportTitle, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, ReportTitle, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	pdf.SetFont("Helvetica", "B", 12)
	for i, h := range PDFHeader {
		pdf.CellFormat(pdfWidths[i], 10, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range PDFRows(records) {
		for i, cell := range row {
			pdf.CellFormat(pdfWidths[i], 7, fit(pdf, tr(cell), pdfWidths[i]-2), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

// fit shortens s with a trailing ellipsis until it is at most width wide.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > width {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
