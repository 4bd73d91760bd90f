package query

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidMode is returned for a mode other than hours or range.
var ErrInvalidMode = errors.New("mode must be hours or range")

// ErrInvalidHours is returned when hours is not an integer within bounds.
var ErrInvalidHours = errors.New("hours out of range")

// ErrInvalidDate is returned when a date is not yyyy-mm-dd.
var ErrInvalidDate = errors.New("date must be yyyy-mm-dd")

// ErrDateOrder is returned when the end date is not after the start date.
var ErrDateOrder = errors.New("end date must be after start date")

// ErrRangeTooLong is returned when the date range exceeds the configured maximum.
var ErrRangeTooLong = errors.New("date range too long")

// ErrStationName is returned for a station name that is too long or has control characters.
var ErrStationName = errors.New("invalid station name")

// ErrTooManyStations is returned when more stations are selected than allowed.
var ErrTooManyStations = errors.New("too many stations selected")

// ErrInvalidFamily is returned for a malformed family value.
var ErrInvalidFamily = errors.New("invalid sensor family")

const maxStationNameLen = 120

// cleanStations trims names, drops empties and duplicates (first wins) and
// rejects names that are too long or carry control characters.
func cleanStations(in []string, max int) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		if len([]rune(s)) > maxStationNameLen {
			return nil, ErrStationName
		}
		for _, r := range s {
			if !isAllowedStationRune(r) {
				return nil, ErrStationName
			}
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if max > 0 && len(out) > max {
		return nil, ErrTooManyStations
	}
	return out, nil
}

// isAllowedStationRune accepts any printable rune; station names are free text.
func isAllowedStationRune(r rune) bool {
	return unicode.IsPrint(r) && !unicode.IsControl(r)
}

// validFamily accepts lowercase identifiers; whether the family exists is
// decided by the catalog.
func validFamily(s string) bool {
	if s == "" || len(s) > 40 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}
