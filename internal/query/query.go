package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Mode selects how the time window is given.
type Mode string

const (
	ModeHours Mode = "hours"
	ModeRange Mode = "range"
)

// DateLayout is the format of start and end dates.
const DateLayout = "2006-01-02"

// Query string keys.
const (
	KeyStation = "station"
	KeyFamily  = "family"
	KeyMode    = "mode"
	KeyHours   = "hours"
	KeyStart   = "start"
	KeyEnd     = "end"
)

// Limits bounds user-supplied parameters.
type Limits struct {
	DefaultHours int
	MaxHours     int
	MaxRangeDays int
	MaxStations  int
}

// Params are the collected selector values of one dashboard run.
type Params struct {
	Stations  []string
	Family    string
	Mode      Mode
	HoursBack int
	StartDate time.Time
	EndDate   time.Time
	Start     time.Time
	End       time.Time
}

// Parse reads selector values. Missing values take the dashboard defaults:
// family defaultFamily, mode hours, 24 hours back (Limits.DefaultHours), and
// for range mode yesterday to today. Range dates are local midnights in loc and
// the end date itself is not included.
func Parse(v url.Values, now time.Time, loc *time.Location, defaultFamily string, lim Limits) (Params, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	stations, err := cleanStations(v[KeyStation], lim.MaxStations)
	if err != nil {
		return Params{}, err
	}

	p := Params{
		Stations: stations,
		Family:   strings.TrimSpace(v.Get(KeyFamily)),
		Mode:     Mode(strings.TrimSpace(strings.ToLower(v.Get(KeyMode)))),
	}
	if p.Family == "" {
		p.Family = defaultFamily
	}
	if !validFamily(p.Family) {
		return Params{}, ErrInvalidFamily
	}
	if p.Mode == "" {
		p.Mode = ModeHours
	}

	today := midnight(now)
	p.StartDate = today.AddDate(0, 0, -1)
	p.EndDate = today
	p.HoursBack = lim.DefaultHours
	if p.HoursBack <= 0 {
		p.HoursBack = 24
	}

	switch p.Mode {
	case ModeHours:
		if s := strings.TrimSpace(v.Get(KeyHours)); s != "" {
			h, err := strconv.Atoi(s)
			if err != nil || h < 1 || (lim.MaxHours > 0 && h > lim.MaxHours) {
				return Params{}, fmt.Errorf("%w: %q", ErrInvalidHours, s)
			}
			p.HoursBack = h
		}
		p.End = now.Truncate(time.Second)
		p.Start = p.End.Add(-time.Duration(p.HoursBack) * time.Hour)
	case ModeRange:
		if s := strings.TrimSpace(v.Get(KeyStart)); s != "" {
			d, err := time.ParseInLocation(DateLayout, s, loc)
			if err != nil {
				return Params{}, fmt.Errorf("%w: start %q", ErrInvalidDate, s)
			}
			p.StartDate = d
		}
		if s := strings.TrimSpace(v.Get(KeyEnd)); s != "" {
			d, err := time.ParseInLocation(DateLayout, s, loc)
			if err != nil {
				return Params{}, fmt.Errorf("%w: end %q", ErrInvalidDate, s)
			}
			p.EndDate = d
		}
		if !p.EndDate.After(p.StartDate) {
			return Params{}, ErrDateOrder
		}
		if lim.MaxRangeDays > 0 && p.EndDate.Sub(p.StartDate) > time.Duration(lim.MaxRangeDays)*24*time.Hour {
			return Params{}, fmt.Errorf("%w: max %d days", ErrRangeTooLong, lim.MaxRangeDays)
		}
		p.Start = p.StartDate
		p.End = p.EndDate
	default:
		return Params{}, fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}
	return p, nil
}

// Selected reports whether at least one station was chosen.
func (p Params) Selected() bool {
	return len(p.Stations) > 0
}

// Window returns the time span to fetch, [Start, End).
func (p Params) Window() (time.Time, time.Time) {
	return p.Start, p.End
}

// Values encodes p back into a query string, for export and chart links.
func (p Params) Values() url.Values {
	v := url.Values{}
	for _, s := range p.Stations {
		v.Add(KeyStation, s)
	}
	v.Set(KeyFamily, p.Family)
	v.Set(KeyMode, string(p.Mode))
	switch p.Mode {
	case ModeRange:
		v.Set(KeyStart, p.StartDate.Format(DateLayout))
		v.Set(KeyEnd, p.EndDate.Format(DateLayout))
	default:
		v.Set(KeyHours, strconv.Itoa(p.HoursBack))
	}
	return v
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
