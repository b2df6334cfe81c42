package statement

import (
	"bytes"
	"fmt"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/phpdave11/gofpdf"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Statement"

var columns = []string{"Date", "Booking", "Area", "Status", "Gross (R)", "Payout (R)", "Refund (R)", "Fee (R)"}

func rands(c domain.Cents) float64 {
	return float64(c) / 100
}

// XLSX renders the statement as a single-sheet workbook.
func (s *Statement) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("error removing default sheet: %v", err)
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Income statement: %s - %s", s.From, s.To))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	f.MergeCell(sheetName, "A1", lastCol+"1")
	if style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err == nil {
		f.SetCellStyle(sheetName, "A1", "A1", style)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating style: %v", err)
	}
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, cell, name)
		f.SetCellStyle(sheetName, cell, cell, header)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("error creating style: %v", err)
	}

	row := 3
	for _, l := range s.Lines {
		values := []interface{}{
			l.ScheduledDate, l.BookingID.String(), l.Area, string(l.BookingStatus),
			rands(l.Gross), rands(l.Payout), rands(l.Refund), rands(l.Fee),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("error writing row %d: %v", row, err)
		}
		row++
	}

	totals := []interface{}{
		"Total", fmt.Sprintf("%d jobs", s.Totals.Jobs), "", "",
		rands(s.Totals.Gross), rands(s.Totals.Payout), rands(s.Totals.Refunds), rands(s.Totals.Fees),
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheetName, cell, &totals); err != nil {
		return nil, fmt.Errorf("error writing totals: %v", err)
	}
	f.SetCellStyle(sheetName, cell, lastCol+fmt.Sprint(row), header)

	first, _ := excelize.CoordinatesToCellName(5, 3)
	last, _ := excelize.CoordinatesToCellName(len(columns), row)
	f.SetCellStyle(sheetName, first, last, money)

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "B", 38)
	f.SetColWidth(sheetName, "C", "C", 28)
	f.SetColWidth(sheetName, "D", lastCol, 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %v", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the statement as an A4 document.
func (s *Statement) PDF() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Income Statement", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INCOME STATEMENT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Period    : "+s.From+" to "+s.To)
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated : "+s.GeneratedAt.In(domain.Location).Format("2006-01-02 15:04"))
	pdf.Ln(10)

	widths := []float64{22, 52, 28, 22, 22, 22, 22}
	headers := []string{"Date", "Area", "Status", "Gross", "Payout", "Refund", "Fee"}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, l := range s.Lines {
		cells := []string{
			l.ScheduledDate, l.Area, string(l.BookingStatus),
			l.Gross.String(), l.Payout.String(), l.Refund.String(), l.Fee.String(),
		}
		for i, c := range cells {
			align := "L"
			if i >= 3 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(s.Lines) == 0 {
		pdf.CellFormat(190, 6, "No settled jobs in this period.", "1", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Jobs: %d", s.Totals.Jobs))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Total payout: "+s.Totals.Payout.String())
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Refunded to clients: "+s.Totals.Refunds.String())
	pdf.Ln(6)
	pdf.Cell(0, 6, "Platform fees: "+s.Totals.Fees.String())
	pdf.Ln(6)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
