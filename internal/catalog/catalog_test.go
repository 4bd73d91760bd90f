package catalog

import (
	"errors"
	"math"
	"testing"
)

func TestVariant_Unknown(t *testing.T) {
	_, err := Variant("nope")
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("Variant(nope) error = %v, want ErrUnknownVariant", err)
	}
}

func TestVariantNames(t *testing.T) {
	got := VariantNames()
	want := []string{"air", "full", "meteo"}
	if len(got) != len(want) {
		t.Fatalf("VariantNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("VariantNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestProfile_Resolve covers the override rules: no override, replacement
// pair, required family matching and mismatching.
func TestProfile_Resolve(t *testing.T) {
	p := Profile{
		Name:     "test",
		Families: []string{FamilyAirQuality, FamilyWeather},
		Overrides: map[string]StationOverride{
			"vue":     {Sensors: map[string]SensorPair{FamilyWeather: {SensorType: 45, DataStructureType: 11}}},
			"airlink": {RequiredSensor: FamilyAirQuality},
		},
	}

	tests := []struct {
		name     string
		station  string
		family   string
		wantPair SensorPair
		wantErr  error
	}{
		{"no override", "plain", FamilyWeather, SensorPair{43, 11}, nil},
		{"replacement pair", "vue", FamilyWeather, SensorPair{45, 11}, nil},
		{"replacement other family untouched", "vue", FamilyAirQuality, SensorPair{323, 17}, nil},
		{"required family matches", "airlink", FamilyAirQuality, SensorPair{323, 17}, nil},
		{"required family differs", "airlink", FamilyWeather, SensorPair{}, ErrSensorMismatch},
		{"family not in variant", "plain", FamilyIndoor, SensorPair{}, ErrUnknownFamily},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := p.Resolve(tt.station, tt.family)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if cfg.SensorPair != tt.wantPair {
				t.Errorf("Resolve() pair = %+v, want %+v", cfg.SensorPair, tt.wantPair)
			}
			if cfg.Family != tt.family {
				t.Errorf("Resolve() family = %q, want %q", cfg.Family, tt.family)
			}
		})
	}
}

// TestProfile_Resolve_DoesNotMutateCatalog verifies a replacement pair is applied
// to a copy and the shared family table keeps its default pair.
func TestProfile_Resolve_DoesNotMutateCatalog(t *testing.T) {
	p, err := Variant("meteo")
	if err != nil {
		t.Fatalf("Variant() error = %v", err)
	}
	if _, err := p.Resolve("104208", FamilyWeather); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	cfg, err := p.Family(FamilyWeather)
	if err != nil {
		t.Fatalf("Family() error = %v", err)
	}
	if cfg.SensorType != 43 {
		t.Errorf("catalog weather sensor_type = %d, want 43", cfg.SensorType)
	}
}

func TestProfile_WithOverrides_ReplacesByID(t *testing.T) {
	p, _ := Variant("full")
	p = p.WithOverrides(map[string]StationOverride{
		"152001": {RequiredSensor: FamilyWeather},
		"999":    {RequiredSensor: FamilyIndoor},
	})
	if got := p.Overrides["152001"].RequiredSensor; got != FamilyWeather {
		t.Errorf("override 152001 = %q, want %q", got, FamilyWeather)
	}
	if _, ok := p.Overrides["999"]; !ok {
		t.Error("override 999 missing after merge")
	}

	fresh, _ := Variant("full")
	if got := fresh.Overrides["152001"].RequiredSensor; got != FamilyAirQuality {
		t.Errorf("built-in table mutated: 152001 = %q", got)
	}
}

func TestFamilies_VariablesAreColumnsAndCapped(t *testing.T) {
	for name, cfg := range families {
		if len(cfg.Variables) > MaxCharts {
			t.Errorf("%s: %d variables, max %d", name, len(cfg.Variables), MaxCharts)
		}
		cols := make(map[string]bool)
		for _, c := range cfg.ColumnNames() {
			cols[c] = true
		}
		for _, v := range cfg.Variables {
			if !cols[v] {
				t.Errorf("%s: variable %q is not a column", name, v)
			}
		}
	}
}

func TestConversion_Apply(t *testing.T) {
	tests := []struct {
		conv Conversion
		in   float64
		want float64
	}{
		{ConvertFahrenheitToC, 212, 100},
		{ConvertFahrenheitToC, 32, 0},
		{ConvertMPHToKMH, 10, 16.09344},
		{ConvertInchHgToHPa, 29.92, 1013.2075},
		{ConvertInchToMillimetre, 1, 25.4},
		{ConvertNone, 7.5, 7.5},
	}
	for _, tt := range tests {
		if got := tt.conv.Apply(tt.in); math.Abs(got-tt.want) > 0.01 {
			t.Errorf("%q.Apply(%v) = %v, want %v", tt.conv, tt.in, got, tt.want)
		}
	}
}

func TestLabelsFor(t *testing.T) {
	es := LabelsFor("es")
	if got := es.Field("temperature_c"); got != "Temperatura (°C)" {
		t.Errorf("es temperature_c = %q", got)
	}
	en := LabelsFor("en")
	if got := en.Field("station_name"); got != "Station" {
		t.Errorf("en station_name = %q", got)
	}
	if got := LabelsFor("fr").Locale; got != LocaleES {
		t.Errorf("fallback locale = %q, want es", got)
	}
	if got := en.Field("unknown_column"); got != "unknown_column" {
		t.Errorf("fallback field label = %q", got)
	}
}
