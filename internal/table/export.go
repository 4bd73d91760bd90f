package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// TimeLayout is the timestamp format used by CSV and Excel exports.
const TimeLayout = time.RFC3339

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "datos"

// Header returns the export header: timestamp, station, then value columns.
func (t *Table) Header() []string {
	h := make([]string, 0, len(t.Columns)+2)
	h = append(h, TimeColumn, StationColumn)
	return append(h, t.Columns...)
}

// WriteCSV writes the table as CSV with raw column names as header.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns)+2)
	for _, r := range t.Rows {
		record[0] = r.Time.Format(TimeLayout)
		record[1] = r.Station
		for i, v := range r.Values {
			record[i+2] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the table as an Excel workbook with one sheet. label maps a
// column name to its header text; nil keeps raw names. Missing values are left blank.
func (t *Table) WriteXLSX(w io.Writer, sheet string, label func(string) string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if label == nil {
		label = func(s string) string { return s }
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(t.Columns)+2)
	for _, c := range t.Header() {
		header = append(header, label(c))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, r := range t.Rows {
		row := make([]interface{}, 0, len(r.Values)+2)
		row = append(row, r.Time.Format(TimeLayout), r.Station)
		for _, v := range r.Values {
			if math.IsNaN(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
