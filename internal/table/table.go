package table

import (
	"math"
	"sort"
	"time"
)

// Column names that precede the value columns in every export.
const (
	TimeColumn    = "timestamp"
	StationColumn = "station_name"
)

// Row is one timestamped reading of one station. Values align with Table.Columns;
// NaN marks a missing value.
type Row struct {
	Time    time.Time
	Station string
	Values  []float64
}

// Table is a time-indexed set of rows for one or more stations.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given value columns.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a row. values is copied; short slices are padded with NaN.
func (t *Table) Append(ts time.Time, station string, values []float64) {
	row := Row{Time: ts, Station: station, Values: make([]float64, len(t.Columns))}
	for i := range row.Values {
		if i < len(values) {
			row.Values[i] = values[i]
		} else {
			row.Values[i] = math.NaN()
		}
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasData reports whether column name holds at least one non-NaN value.
func (t *Table) HasData(name string) bool {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return false
	}
	for _, r := range t.Rows {
		if !math.IsNaN(r.Values[idx]) {
			return true
		}
	}
	return false
}

// SortByTime orders rows by time, keeping station order stable for equal times.
func (t *Table) SortByTime() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Time.Before(t.Rows[j].Time)
	})
}

// Stations returns station names in order of first appearance.
func (t *Table) Stations() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Rows {
		if _, ok := seen[r.Station]; ok {
			continue
		}
		seen[r.Station] = struct{}{}
		out = append(out, r.Station)
	}
	return out
}

// Concat stacks tables in order. The result has the union of columns, in
// order of first appearance; cells of absent columns are NaN.
func Concat(tables ...*Table) *Table {
	var cols []string
	index := make(map[string]int)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if _, ok := index[c]; !ok {
				index[c] = len(cols)
				cols = append(cols, c)
			}
		}
	}
	out := New(cols)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, r := range t.Rows {
			values := make([]float64, len(cols))
			for i := range values {
				values[i] = math.NaN()
			}
			for i, c := range t.Columns {
				values[index[c]] = r.Values[i]
			}
			out.Rows = append(out.Rows, Row{Time: r.Time, Station: r.Station, Values: values})
		}
	}
	return out
}

// Point is one value of a series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is the ordered points of one column for one station.
type Series struct {
	Station string
	Points  []Point
}

// Series splits column name by station, dropping NaN values. Stations with no
// values are omitted; order follows first appearance in the table.
func (t *Table) Series(name string) []Series {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	byStation := make(map[string]int)
	var out []Series
	for _, r := range t.Rows {
		v := r.Values[idx]
		if math.IsNaN(v) {
			continue
		}
		i, ok := byStation[r.Station]
		if !ok {
			i = len(out)
			byStation[r.Station] = i
			out = append(out, Series{Station: r.Station})
		}
		out[i].Points = append(out[i].Points, Point{Time: r.Time, Value: v})
	}
	return out
}

// Record is the JSON form of a row; missing values are null.
type Record struct {
	Time    time.Time           `json:"timestamp"`
	Station string              `json:"station_name"`
	Values  map[string]*float64 `json:"values"`
}

// Records returns the rows in JSON-friendly form.
func (t *Table) Records() []Record {
	out := make([]Record, 0, t.Len())
	for _, r := range t.Rows {
		rec := Record{Time: r.Time, Station: r.Station, Values: make(map[string]*float64, len(t.Columns))}
		for i, c := range t.Columns {
			if math.IsNaN(r.Values[i]) {
				rec.Values[c] = nil
				continue
			}
			v := r.Values[i]
			rec.Values[c] = &v
		}
		out = append(out, rec)
	}
	return out
}
