package httpapi

import (
	"bytes"
	"fmt"

	"hik-access-bridge/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	reportSheet   = "Sync"
	summarySheet  = "Summary"
	reportTimeFmt = "2006-01-02 15:04:05"
)

// SyncReportHeader item sheet columns.
var SyncReportHeader = []string{"Employee No", "Name", "Status", "Error"}

var syncReportWidths = []float64{18, 34, 12, 60}

// GenerateSyncReport renders a reconciliation outcome as an .xlsx workbook: one row per
// roster item plus a summary sheet with the tally.
func GenerateSyncReport(outcome models.SyncOutcome) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is explicit on every path

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range SyncReportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(reportSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(reportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(reportSheet, name, name, syncReportWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, item := range outcome.Items {
		row := i + 2
		values := []any{item.EmployeeNo, item.Name, string(item.Status), item.Error}
		for col, v := range values {
			if v == "" {
				continue
			}
			if err := setCellValue(f, reportSheet, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	if err := f.SetPanes(reportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := writeSummary(f, outcome); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, outcome models.SyncOutcome) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][2]any{
		{"Started", outcome.StartedAt.Format(reportTimeFmt)},
		{"Finished", outcome.FinishedAt.Format(reportTimeFmt)},
		{"Total", outcome.Total},
		{"Succeeded", outcome.Succeeded},
		{"Created", outcome.Created()},
		{"Updated", outcome.Updated()},
		{"Failed", outcome.Failed},
		{"Cancelled", outcome.Cancelled},
	}
	for i, r := range rows {
		if err := setCellValue(f, summarySheet, 1, i+1, r[0]); err != nil {
			return fmt.Errorf("failed to write summary label: %w", err)
		}
		if err := setCellValue(f, summarySheet, 2, i+1, r[1]); err != nil {
			return fmt.Errorf("failed to write summary value: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 22)
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
