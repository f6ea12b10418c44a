package services

import (
	"bytes"
	"fmt"
	"strings"

	"astroconnect_go_backend/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// ReportService renders a generated Kundali into a downloadable PDF.
type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

func (s *ReportService) KundaliReport(birth models.BirthDetails, chart models.KundaliChart) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Kundali Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Kundali Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Prepared for %s", birth.Name), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Born %s at %s, %s", birth.DateOfBirth, birth.TimeOfBirth, birth.BirthPlace), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	writeField := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 7, value, "", "L", false)
	}

	writeField("Sun Sign", chart.SunSign)
	writeField("Moon Sign", chart.MoonSign)
	writeField("Ascendant", chart.Ascendant)
	writeField("Nakshatra", chart.Nakshatra)
	writeField("Rashi", chart.Rashi)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Personality", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, chart.Personality, "", "L", false)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Strengths", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "- "+strings.Join(chart.Strengths, "\n- "), "", "L", false)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Challenges", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "- "+strings.Join(chart.Challenges, "\n- "), "", "L", false)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Lucky Elements", "", 1, "L", false, 0, "")
	writeField("Number", chart.LuckyElements.Number)
	writeField("Color", chart.LuckyElements.Color)
	writeField("Day", chart.LuckyElements.Day)
	writeField("Gemstone", chart.LuckyElements.Gemstone)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render kundali report: %w", err)
	}
	return buf.Bytes(), nil
}
