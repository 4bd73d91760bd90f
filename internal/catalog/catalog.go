package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownFamily is returned when a family name is not part of the active variant.
	ErrUnknownFamily = errors.New("unknown sensor family")
	// ErrUnknownVariant is returned for a dashboard variant name that is not built in.
	ErrUnknownVariant = errors.New("unknown dashboard variant")
	// ErrSensorMismatch is returned when a station override pins the station to another family.
	// Callers skip the station and surface a warning.
	ErrSensorMismatch = errors.New("station does not report the selected sensor family")
)

// Conversion names the unit conversion applied to a raw API field.
type Conversion string

const (
	ConvertNone             Conversion = ""
	ConvertFahrenheitToC    Conversion = "f_to_c"
	ConvertMPHToKMH         Conversion = "mph_to_kmh"
	ConvertInchHgToHPa      Conversion = "inhg_to_hpa"
	ConvertInchToMillimetre Conversion = "in_to_mm"
)

// Apply converts v from the raw unit to the output unit.
func (c Conversion) Apply(v float64) float64 {
	switch c {
	case ConvertFahrenheitToC:
		return (v - 32) * 5 / 9
	case ConvertMPHToKMH:
		return v * 1.609344
	case ConvertInchHgToHPa:
		return v * 33.8638866667
	case ConvertInchToMillimetre:
		return v * 25.4
	default:
		return v
	}
}

// Column maps one raw record field to one output table column.
type Column struct {
	Name    string
	Source  string
	Convert Conversion
}

// SensorPair is the numeric identity the API uses for a logical sensor.
type SensorPair struct {
	SensorType        int `yaml:"sensor_type" json:"sensorType"`
	DataStructureType int `yaml:"data_structure_type" json:"dataStructureType"`
}

// SensorConfig describes how one sensor family is fetched, parsed and charted.
type SensorConfig struct {
	Family string
	SensorPair
	Columns   []Column
	Variables []string
}

// ColumnNames returns the output column names in declaration order.
func (c SensorConfig) ColumnNames() []string {
	out := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = col.Name
	}
	return out
}

// StationOverride pins a station to one family, or swaps the sensor pair
// used for some families. Both may be set.
type StationOverride struct {
	RequiredSensor string                `yaml:"required_sensor" json:"requiredSensor,omitempty"`
	Sensors        map[string]SensorPair `yaml:"sensors" json:"sensors,omitempty"`
}

// Profile is a dashboard variant: the exposed families plus the override table.
type Profile struct {
	Name      string
	Families  []string
	Overrides map[string]StationOverride
}

// Family returns the sensor config for name when the variant exposes it.
func (p Profile) Family(name string) (SensorConfig, error) {
	for _, f := range p.Families {
		if f == name {
			cfg, ok := families[name]
			if !ok {
				break
			}
			return cfg, nil
		}
	}
	return SensorConfig{}, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// DefaultFamily is the family preselected in the dashboard.
func (p Profile) DefaultFamily() string {
	if len(p.Families) == 0 {
		return ""
	}
	return p.Families[0]
}

// Resolve returns the sensor config to request for stationID. A station whose
// override requires a different family yields ErrSensorMismatch; a station
// with a replacement pair for the family gets that pair, same columns.
func (p Profile) Resolve(stationID, family string) (SensorConfig, error) {
	cfg, err := p.Family(family)
	if err != nil {
		return SensorConfig{}, err
	}
	ov, ok := p.Overrides[stationID]
	if !ok {
		return cfg, nil
	}
	if ov.RequiredSensor != "" && ov.RequiredSensor != family {
		return SensorConfig{}, fmt.Errorf("%w: station %s requires %s", ErrSensorMismatch, stationID, ov.RequiredSensor)
	}
	if pair, ok := ov.Sensors[family]; ok {
		cfg.SensorPair = pair
	}
	return cfg, nil
}

// WithOverrides returns a copy of p whose override table is extended by extra.
// Entries in extra replace built-in entries for the same station id.
func (p Profile) WithOverrides(extra map[string]StationOverride) Profile {
	merged := make(map[string]StationOverride, len(p.Overrides)+len(extra))
	for id, ov := range p.Overrides {
		merged[id] = ov
	}
	for id, ov := range extra {
		merged[id] = ov
	}
	p.Overrides = merged
	return p
}

// Variant returns the built-in profile with the given name.
func Variant(name string) (Profile, error) {
	p, ok := variants[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return p.WithOverrides(nil), nil
}

// VariantNames lists the built-in variants, sorted.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsFamily reports whether name is a known family in any variant.
func IsFamily(name string) bool {
	_, ok := families[name]
	return ok
}
