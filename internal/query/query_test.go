package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

var (
	santiago = time.FixedZone("CLT", -3*3600)
	now      = time.Date(2025, 6, 10, 14, 30, 15, 0, santiago)
	limits   = Limits{DefaultHours: 24, MaxHours: 168, MaxRangeDays: 31, MaxStations: 3}
)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse(url.Values{}, now, santiago, "air_quality", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Selected() {
		t.Error("Selected() = true with no stations")
	}
	if p.Family != "air_quality" || p.Mode != ModeHours || p.HoursBack != 24 {
		t.Errorf("defaults = %+v", p)
	}
	if !p.End.Equal(now) {
		t.Errorf("End = %v, want %v", p.End, now)
	}
	if got := p.End.Sub(p.Start); got != 24*time.Hour {
		t.Errorf("window = %v, want 24h", got)
	}
	if p.StartDate.Format(DateLayout) != "2025-06-09" || p.EndDate.Format(DateLayout) != "2025-06-10" {
		t.Errorf("default dates = %s..%s", p.StartDate.Format(DateLayout), p.EndDate.Format(DateLayout))
	}
}

func TestParse_StationsTrimmedAndDeduplicated(t *testing.T) {
	v := url.Values{KeyStation: {" Norte ", "", "Sur", "Norte"}}
	p, err := Parse(v, now, santiago, "air_quality", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Stations) != 2 || p.Stations[0] != "Norte" || p.Stations[1] != "Sur" {
		t.Errorf("Stations = %q, want [Norte Sur]", p.Stations)
	}
}

func TestParse_Hours(t *testing.T) {
	tests := []struct {
		name    string
		hours   string
		want    int
		wantErr error
	}{
		{"explicit", "6", 6, nil},
		{"minimum", "1", 1, nil},
		{"zero", "0", 0, ErrInvalidHours},
		{"negative", "-4", 0, ErrInvalidHours},
		{"above max", "169", 0, ErrInvalidHours},
		{"not a number", "abc", 0, ErrInvalidHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := url.Values{KeyMode: {"hours"}, KeyHours: {tt.hours}}
			p, err := Parse(v, now, santiago, "air_quality", limits)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if p.HoursBack != tt.want {
				t.Errorf("HoursBack = %d, want %d", p.HoursBack, tt.want)
			}
			if got := p.End.Sub(p.Start); got != time.Duration(tt.want)*time.Hour {
				t.Errorf("window = %v", got)
			}
		})
	}
}

func TestParse_Range(t *testing.T) {
	v := url.Values{KeyMode: {"range"}, KeyStart: {"2025-06-01"}, KeyEnd: {"2025-06-03"}}
	p, err := Parse(v, now, santiago, "weather", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	wantStart := time.Date(2025, 6, 1, 0, 0, 0, 0, santiago)
	wantEnd := time.Date(2025, 6, 3, 0, 0, 0, 0, santiago)
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Errorf("window = %v..%v, want %v..%v", p.Start, p.End, wantStart, wantEnd)
	}
}

func TestParse_RangeDefaultsToYesterdayToday(t *testing.T) {
	p, err := Parse(url.Values{KeyMode: {"range"}}, now, santiago, "weather", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.End.Sub(p.Start); got != 24*time.Hour {
		t.Errorf("window = %v, want 24h", got)
	}
	if p.End.Hour() != 0 || p.End.Day() != 10 {
		t.Errorf("End = %v, want today's midnight", p.End)
	}
}

func TestParse_RangeErrors(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    error
	}{
		{"bad start", "01/06/2025", "2025-06-03", ErrInvalidDate},
		{"bad end", "2025-06-01", "tomorrow", ErrInvalidDate},
		{"same day", "2025-06-01", "2025-06-01", ErrDateOrder},
		{"reversed", "2025-06-03", "2025-06-01", ErrDateOrder},
		{"too long", "2025-01-01", "2025-06-01", ErrRangeTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := url.Values{KeyMode: {"range"}, KeyStart: {tt.start}, KeyEnd: {tt.end}}
			_, err := Parse(v, now, santiago, "weather", limits)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidInputs(t *testing.T) {
	tests := []struct {
		name    string
		v       url.Values
		wantErr error
	}{
		{"mode", url.Values{KeyMode: {"weekly"}}, ErrInvalidMode},
		{"family", url.Values{KeyFamily: {"Air Quality!"}}, ErrInvalidFamily},
		{"too many stations", url.Values{KeyStation: {"a", "b", "c", "d"}}, ErrTooManyStations},
		{"control char", url.Values{KeyStation: {"bad\x00name"}}, ErrStationName},
		{"long name", url.Values{KeyStation: {strings.Repeat("x", 121)}}, ErrStationName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.v, now, santiago, "air_quality", limits)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParams_ValuesRoundTrip(t *testing.T) {
	in := url.Values{KeyStation: {"Norte", "Sur"}, KeyFamily: {"weather"}, KeyMode: {"range"}, KeyStart: {"2025-06-01"}, KeyEnd: {"2025-06-02"}}
	p, err := Parse(in, now, santiago, "air_quality", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	again, err := Parse(p.Values(), now, santiago, "air_quality", limits)
	if err != nil {
		t.Fatalf("Parse(Values()) error = %v", err)
	}
	if !again.Start.Equal(p.Start) || !again.End.Equal(p.End) || again.Family != p.Family || len(again.Stations) != 2 {
		t.Errorf("round trip = %+v, want %+v", again, p)
	}
	if p.Values().Get(KeyHours) != "" {
		t.Error("range params should not encode hours")
	}
}

func TestParams_Window(t *testing.T) {
	p, err := Parse(url.Values{KeyHours: {"3"}}, now, santiago, "air_quality", limits)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	start, end := p.Window()
	if !start.Equal(p.Start) || !end.Equal(p.End) || end.Sub(start) != 3*time.Hour {
		t.Errorf("Window() = %v..%v", start, end)
	}
}
