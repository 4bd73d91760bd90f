package catalog

// Family names.
const (
	FamilyAirQuality = "air_quality"
	FamilyWeather    = "weather"
	FamilyBarometer  = "barometer"
	FamilyIndoor     = "indoor"
)

// MaxCharts caps the number of charted variables per family.
const MaxCharts = 4

var families = map[string]SensorConfig{
	FamilyAirQuality: {
		Family:     FamilyAirQuality,
		SensorPair: SensorPair{SensorType: 323, DataStructureType: 17},
		Columns: []Column{
			{Name: "temperature_c", Source: "temp_avg", Convert: ConvertFahrenheitToC},
			{Name: "humidity_pct", Source: "hum_last"},
			{Name: "dew_point_c", Source: "dew_point_avg", Convert: ConvertFahrenheitToC},
			{Name: "pm25_ugm3", Source: "pm_2p5_avg"},
			{Name: "pm1_ugm3", Source: "pm_1_avg"},
			{Name: "pm10_ugm3", Source: "pm_10_avg"},
		},
		Variables: []string{"temperature_c", "humidity_pct", "pm25_ugm3", "pm1_ugm3"},
	},
	FamilyWeather: {
		Family:     FamilyWeather,
		SensorPair: SensorPair{SensorType: 43, DataStructureType: 11},
		Columns: []Column{
			{Name: "temperature_c", Source: "temp_avg", Convert: ConvertFahrenheitToC},
			{Name: "humidity_pct", Source: "hum_last"},
			{Name: "dew_point_c", Source: "dew_point_last", Convert: ConvertFahrenheitToC},
			{Name: "wind_speed_kmh", Source: "wind_speed_avg", Convert: ConvertMPHToKMH},
			{Name: "rainfall_mm", Source: "rainfall_mm"},
			{Name: "solar_rad_wm2", Source: "solar_rad_avg"},
			{Name: "uv_index", Source: "uv_index_avg"},
		},
		Variables: []string{"temperature_c", "humidity_pct", "wind_speed_kmh", "rainfall_mm"},
	},
	FamilyBarometer: {
		Family:     FamilyBarometer,
		SensorPair: SensorPair{SensorType: 242, DataStructureType: 13},
		Columns: []Column{
			{Name: "pressure_hpa", Source: "bar_sea_level", Convert: ConvertInchHgToHPa},
			{Name: "pressure_abs_hpa", Source: "bar_absolute", Convert: ConvertInchHgToHPa},
		},
		Variables: []string{"pressure_hpa", "pressure_abs_hpa"},
	},
	FamilyIndoor: {
		Family:     FamilyIndoor,
		SensorPair: SensorPair{SensorType: 243, DataStructureType: 13},
		Columns: []Column{
			{Name: "indoor_temperature_c", Source: "temp_in_last", Convert: ConvertFahrenheitToC},
			{Name: "indoor_humidity_pct", Source: "hum_in_last"},
			{Name: "indoor_dew_point_c", Source: "dew_point_in", Convert: ConvertFahrenheitToC},
		},
		Variables: []string{"indoor_temperature_c", "indoor_humidity_pct"},
	},
}

// Vantage Vue consoles report their integrated sensor suite as type 45.
var vantageVue = SensorPair{SensorType: 45, DataStructureType: 11}

var meteoOverrides = map[string]StationOverride{
	"104208": {Sensors: map[string]SensorPair{FamilyWeather: vantageVue}},
	"117736": {Sensors: map[string]SensorPair{FamilyWeather: vantageVue}},
}

var fullOverrides = map[string]StationOverride{
	"104208": {Sensors: map[string]SensorPair{FamilyWeather: vantageVue}},
	"117736": {Sensors: map[string]SensorPair{FamilyWeather: vantageVue}},
	"152001": {RequiredSensor: FamilyAirQuality},
	"152002": {RequiredSensor: FamilyAirQuality},
}

var variants = map[string]Profile{
	"air": {
		Name:     "air",
		Families: []string{FamilyAirQuality},
	},
	"meteo": {
		Name:      "meteo",
		Families:  []string{FamilyWeather, FamilyBarometer},
		Overrides: meteoOverrides,
	},
	"full": {
		Name:      "full",
		Families:  []string{FamilyAirQuality, FamilyWeather, FamilyBarometer, FamilyIndoor},
		Overrides: fullOverrides,
	},
}
