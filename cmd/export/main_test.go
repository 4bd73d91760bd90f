package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
)

func TestParseFlags(t *testing.T) {
	o, fs, err := parseFlags([]string{"-s", "Norte", "--station", "Sur", "-f", "weather", "--hours", "6", "--format", "XLSX", "-o", "-"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if len(o.stations) != 2 || o.family != "weather" || o.format != "xlsx" || o.out != "-" {
		t.Errorf("options = %+v", o)
	}
	if !fs.Changed("hours") {
		t.Error("hours should be marked as set")
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no station", []string{"--hours", "3"}, "--station"},
		{"format", []string{"-s", "Norte", "--format", "pdf"}, "--format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFlags(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("parseFlags() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestOptions_Values(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	lim := query.Limits{DefaultHours: 24, MaxRangeDays: 31}

	hours := options{stations: []string{"Norte"}, hours: 6}
	p, err := query.Parse(hours.values(true), now, time.UTC, "air_quality", lim)
	if err != nil {
		t.Fatalf("Parse(hours) error = %v", err)
	}
	if p.Mode != query.ModeHours || p.End.Sub(p.Start) != 6*time.Hour {
		t.Errorf("hours params = %+v", p)
	}

	dates := options{stations: []string{"Norte"}, family: "weather", startDate: "2025-06-01", endDate: "2025-06-03"}
	p, err = query.Parse(dates.values(false), now, time.UTC, "air_quality", lim)
	if err != nil {
		t.Fatalf("Parse(range) error = %v", err)
	}
	if p.Family != "weather" || p.End.Sub(p.Start) != 48*time.Hour {
		t.Errorf("range params = %+v", p)
	}

	p, err = query.Parse(options{stations: []string{"Norte"}}.values(false), now, time.UTC, "air_quality", lim)
	if err != nil {
		t.Fatalf("Parse(defaults) error = %v", err)
	}
	if p.StartDate.Format(query.DateLayout) != "2025-06-09" || p.EndDate.Format(query.DateLayout) != "2025-06-10" {
		t.Errorf("default range = %s..%s, want yesterday..today", p.StartDate.Format(query.DateLayout), p.EndDate.Format(query.DateLayout))
	}
}

func TestOutputNameAndEncode(t *testing.T) {
	tb := table.New([]string{"temperature_c"})
	tb.Append(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), "Norte", []float64{12.5})
	res := service.Result{
		Params: query.Params{End: time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)},
		Family: catalog.SensorConfig{Family: "weather"},
		Table:  tb,
	}

	if got := outputName(options{format: "csv"}, res); got != "datos_weather_20250610_0930.csv" {
		t.Errorf("outputName() = %q", got)
	}
	if got := outputName(options{format: "csv", out: "x.csv"}, res); got != "x.csv" {
		t.Errorf("outputName() with --out = %q", got)
	}

	var csvBuf bytes.Buffer
	if err := encode(&csvBuf, res, "csv", catalog.LabelsFor(catalog.LocaleEN)); err != nil {
		t.Fatalf("encode(csv) error = %v", err)
	}
	if !strings.Contains(csvBuf.String(), "Norte,12.5") {
		t.Errorf("csv = %q", csvBuf.String())
	}

	var xlsxBuf bytes.Buffer
	if err := encode(&xlsxBuf, res, "xlsx", catalog.LabelsFor(catalog.LocaleEN)); err != nil {
		t.Fatalf("encode(xlsx) error = %v", err)
	}
	if !bytes.HasPrefix(xlsxBuf.Bytes(), []byte("PK")) {
		t.Error("xlsx output is not a zip archive")
	}
}
