package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
	"github.com/yeremiapane/restaurant-dashboard/models"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"

	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

var analyticsHeaders = []string{"Date", "Bookings", "Covers", "Cancellations", "No-shows"}

var guestHeaders = []string{"Name", "Phone", "Email", "Bookings", "Visits", "Covers", "No-shows", "Cancellations", "First booking", "Last visit"}

func analyticsRows(report *AnalyticsReport) [][]interface{} {
	rows := make([][]interface{}, 0, len(report.Days)+1)
	for _, d := range report.Days {
		rows = append(rows, []interface{}{d.Date, d.Bookings, d.Covers, d.Cancellations, d.NoShows})
	}
	rows = append(rows, []interface{}{"Total", report.Totals.Bookings, report.Totals.Covers, report.Totals.Cancellations, report.Totals.NoShows})
	return rows
}

func guestRows(guests []GuestProfile) [][]interface{} {
	rows := make([][]interface{}, 0, len(guests))
	for _, g := range guests {
		rows = append(rows, []interface{}{
			g.Name, g.Phone, g.Email, g.Bookings, g.Visits, g.Covers, g.NoShows, g.Cancellations, g.FirstBooking, g.LastVisit,
		})
	}
	return rows
}

// WriteAnalytics encodes the report as csv or xlsx.
func WriteAnalytics(w io.Writer, format string, report *AnalyticsReport) error {
	if format == ExportFormatXLSX {
		return writeXLSX(w, "Analytics", analyticsHeaders, []float64{14, 12, 12, 16, 12}, analyticsRows(report))
	}
	return writeCSV(w, analyticsHeaders, analyticsRows(report))
}

func WriteGuests(w io.Writer, format string, guests []GuestProfile) error {
	if format == ExportFormatXLSX {
		return writeXLSX(w, "Guests", guestHeaders, []float64{24, 18, 28, 10, 10, 10, 10, 14, 22, 22}, guestRows(guests))
	}
	return writeCSV(w, guestHeaders, guestRows(guests))
}

func writeCSV(w io.Writer, headers []string, rows [][]interface{}) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, v := range row {
			record[i] = csvValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func writeXLSX(w io.Writer, sheetName string, headers []string, widths []float64, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteDaySheet renders the printable list of a day's bookings.
func WriteDaySheet(w io.Writer, tenant *models.Tenant, date string, bookings []models.Booking) error {
	loc := tenant.Location()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s bookings %s", tenant.Name, date), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(tenant.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Bookings for %s (%s)", date, loc.String()), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{20, 20, 22, 50, 14, 30, 34}
	headers := []string{"Time", "Until", "Table", "Guest", "Pax", "Phone", "Status"}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 243, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	covers := 0
	for _, b := range bookings {
		cells := []string{
			b.StartAt.In(loc).Format("15:04"),
			b.EndAt.In(loc).Format("15:04"),
			b.Table.Name,
			b.GuestName,
			strconv.Itoa(b.PartySize),
			b.GuestPhone,
			b.Status,
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, tr(truncate(c, 28)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		if b.SpecialRequests != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, tr("  "+b.SpecialRequests), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
		}
		if b.Status != models.BookingStatusNoShow {
			covers += b.PartySize
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%d bookings, %d covers", len(bookings), covers), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 6, "Generated "+time.Now().In(loc).Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")

	return pdf.Output(w)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
