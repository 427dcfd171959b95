package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// SheetName is the worksheet holding the roster.
const SheetName = "Attendance"

const headerFill = "4472C4"

// statusFills tints body rows by registration status.
var statusFills = map[model.Status]string{
	model.StatusAttended:   "C6EFCE",
	model.StatusConfirmed:  "DDEBF7",
	model.StatusWaitlisted: "FFEB9C",
	model.StatusCancelled:  "FFC7CE",
}

// WriteXLSX writes rows as a single-sheet workbook with a bold white-on-blue
// header and status-tinted body rows.
func WriteXLSX(w io.Writer, rows []model.RegistrationRow, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	tints := make(map[model.Status]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("%s style: %w", status, err)
		}
		tints[status] = id
	}

	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}

	if err := writeRow(f, 1, Columns, last, header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := writeRow(f, i+2, record(r, loc), last, tints[r.Status]); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetName, "A", last, 20); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, n int, values []string, lastCol string, style int) error {
	first, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, first, &values); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	if style == 0 {
		return nil
	}
	if err := f.SetCellStyle(SheetName, first, fmt.Sprintf("%s%d", lastCol, n), style); err != nil {
		return fmt.Errorf("style row %d: %w", n, err)
	}
	return nil
}
