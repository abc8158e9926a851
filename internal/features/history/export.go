package history

import (
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportToExcel renders the current history buffer as an xlsx workbook for
// operator download
func (e *Engine) ExportToExcel() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sync History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	columns := []string{"Provider", "Timestamp", "Duration (ms)", "Success", "Records", "Error"}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	entries := e.Entries("", historyCap)
	for rowIdx, entry := range entries {
		values := []interface{}{
			entry.Provider,
			entry.Timestamp.Format(time.DateTime),
			entry.DurationMs,
			entry.Success,
			entry.DataVolume,
			entry.ErrorMessage,
		}
		for colIdx, val := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
