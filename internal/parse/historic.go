package parse

import (
	"errors"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/models"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
)

// ErrNoTimestamp is returned when a matching record has no usable ts field.
var ErrNoTimestamp = errors.New("record without timestamp")

const (
	timestampField = "ts"
	offsetField    = "tz_offset"
)

// Historic builds the time-indexed table of one station from a historic
// response. Only sensor blocks matching cfg's sensor pair are read. Record
// timestamps are shifted into the station's local time using the record's
// tz_offset (seconds east of UTC); when absent the station's IANA zone is used,
// then UTC. Every matching sensor contributes rows, so a station with two
// sensors of the same type yields two rows per timestamp. Rows are sorted by
// time; a sensor repeating a timestamp keeps its first record.
// Records without a ts are skipped; the returned error is non-nil only when
// every matching record lacked one.
func Historic(resp models.HistoricResponse, cfg catalog.SensorConfig, station models.Station) (*table.Table, error) {
	tb := table.New(cfg.ColumnNames())
	fallback := stationLocation(station.TimeZone)

	type sample struct{ lsid, ts int64 }
	seen := make(map[sample]struct{})
	matched, skipped := 0, 0
	for _, block := range resp.Sensors {
		if block.SensorType != cfg.SensorType || block.DataStructureType != cfg.DataStructureType {
			continue
		}
		for _, rec := range block.Data {
			matched++
			ts, ok := number(rec[timestampField])
			if !ok {
				skipped++
				continue
			}
			unix := int64(ts)
			key := sample{lsid: block.LSID, ts: unix}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			values := make([]float64, len(cfg.Columns))
			for i, col := range cfg.Columns {
				v, ok := number(rec[col.Source])
				if !ok {
					values[i] = math.NaN()
					continue
				}
				values[i] = round2(col.Convert.Apply(v))
			}
			tb.Append(localTime(unix, rec[offsetField], fallback), station.Name, values)
		}
	}
	tb.SortByTime()

	if matched > 0 && skipped == matched {
		return tb, ErrNoTimestamp
	}
	return tb, nil
}

// localTime converts a unix timestamp into the zone given by offset, or fallback.
func localTime(unix int64, offset interface{}, fallback *time.Location) time.Time {
	t := time.Unix(unix, 0)
	if off, ok := number(offset); ok {
		return t.In(time.FixedZone("", int(off)))
	}
	return t.In(fallback)
}

func stationLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// number extracts a finite float from a decoded JSON value.
func number(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
