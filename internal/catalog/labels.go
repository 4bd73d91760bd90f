package catalog

// Locales supported by the label tables.
const (
	LocaleES = "es"
	LocaleEN = "en"
)

// Labels holds display strings for one locale.
type Labels struct {
	Locale   string
	Fields   map[string]string
	Families map[string]string
	UI       map[string]string
}

// Field returns the display label for a column, falling back to the column name.
func (l Labels) Field(name string) string {
	if s, ok := l.Fields[name]; ok {
		return s
	}
	return name
}

// Family returns the display label for a family, falling back to its name.
func (l Labels) Family(name string) string {
	if s, ok := l.Families[name]; ok {
		return s
	}
	return name
}

// Text returns a UI string by key.
func (l Labels) Text(key string) string {
	if s, ok := l.UI[key]; ok {
		return s
	}
	return key
}

// LabelsFor returns the label table for locale; unknown locales get Spanish.
func LabelsFor(locale string) Labels {
	if locale == LocaleEN {
		return english
	}
	return spanish
}

var spanish = Labels{
	Locale: LocaleES,
	Fields: map[string]string{
		"timestamp":            "Tiempo",
		"station_name":         "Estación",
		"temperature_c":        "Temperatura (°C)",
		"humidity_pct":         "Humedad (%)",
		"dew_point_c":          "Punto de rocío (°C)",
		"pm25_ugm3":            "PM2.5 (μg/m³)",
		"pm1_ugm3":             "PM1 (μg/m³)",
		"pm10_ugm3":            "PM10 (μg/m³)",
		"wind_speed_kmh":       "Velocidad del viento (km/h)",
		"rainfall_mm":          "Precipitación (mm)",
		"solar_rad_wm2":        "Radiación solar (W/m²)",
		"uv_index":             "Índice UV",
		"pressure_hpa":         "Presión nivel del mar (hPa)",
		"pressure_abs_hpa":     "Presión absoluta (hPa)",
		"indoor_temperature_c": "Temperatura interior (°C)",
		"indoor_humidity_pct":  "Humedad interior (%)",
		"indoor_dew_point_c":   "Punto de rocío interior (°C)",
	},
	Families: map[string]string{
		FamilyAirQuality: "Calidad del aire",
		FamilyWeather:    "Meteorología",
		FamilyBarometer:  "Barómetro",
		FamilyIndoor:     "Interior",
	},
	UI: map[string]string{
		"title":          "Monitoreo en Tiempo Real - Estaciones Davis",
		"page_title":     "Estaciones Meteorológicas",
		"stations":       "Seleccionar estaciones",
		"family":         "Tipo de sensor",
		"mode":           "Modo de consulta",
		"mode_hours":     "Últimas horas",
		"mode_range":     "Rango de fechas",
		"hours":          "Horas anteriores",
		"start_date":     "Fecha inicio",
		"end_date":       "Fecha fin",
		"refresh":        "Actualizar datos",
		"download_csv":   "Descargar CSV",
		"download_xlsx":  "Descargar Excel",
		"select_prompt":  "Selecciona al menos una estación en la barra lateral para comenzar a visualizar los datos.",
		"no_data":        "No hay datos disponibles para las siguientes estaciones: %s",
		"skipped":        "Estaciones omitidas (no reportan el sensor seleccionado): %s",
		"unknown":        "Estaciones desconocidas: %s",
		"failed":         "Error al consultar las siguientes estaciones: %s",
		"select_station": "Selecciona al menos una estación para visualizar los datos",
		"invalid_query":  "Parámetros inválidos: %s",
		"unavailable":    "No se pudo cargar la lista de estaciones. Intenta nuevamente más tarde.",
		"variant":        "Variante",
	},
}

var english = Labels{
	Locale: LocaleEN,
	Fields: map[string]string{
		"timestamp":            "Time",
		"station_name":         "Station",
		"temperature_c":        "Temperature (°C)",
		"humidity_pct":         "Humidity (%)",
		"dew_point_c":          "Dew point (°C)",
		"pm25_ugm3":            "PM2.5 (μg/m³)",
		"pm1_ugm3":             "PM1 (μg/m³)",
		"pm10_ugm3":            "PM10 (μg/m³)",
		"wind_speed_kmh":       "Wind speed (km/h)",
		"rainfall_mm":          "Rainfall (mm)",
		"solar_rad_wm2":        "Solar radiation (W/m²)",
		"uv_index":             "UV index",
		"pressure_hpa":         "Sea-level pressure (hPa)",
		"pressure_abs_hpa":     "Absolute pressure (hPa)",
		"indoor_temperature_c": "Indoor temperature (°C)",
		"indoor_humidity_pct":  "Indoor humidity (%)",
		"indoor_dew_point_c":   "Indoor dew point (°C)",
	},
	Families: map[string]string{
		FamilyAirQuality: "Air quality",
		FamilyWeather:    "Weather",
		FamilyBarometer:  "Barometer",
		FamilyIndoor:     "Indoor",
	},
	UI: map[string]string{
		"title":          "Real-Time Monitoring - Davis Stations",
		"page_title":     "Weather Stations",
		"stations":       "Select stations",
		"family":         "Sensor type",
		"mode":           "Query mode",
		"mode_hours":     "Last hours",
		"mode_range":     "Date range",
		"hours":          "Hours back",
		"start_date":     "Start date",
		"end_date":       "End date",
		"refresh":        "Refresh data",
		"download_csv":   "Download CSV",
		"download_xlsx":  "Download Excel",
		"select_prompt":  "Select at least one station in the sidebar to start viewing data.",
		"no_data":        "No data available for the following stations: %s",
		"skipped":        "Skipped stations (selected sensor not reported): %s",
		"unknown":        "Unknown stations: %s",
		"failed":         "Request failed for the following stations: %s",
		"select_station": "Select at least one station to view data",
		"invalid_query":  "Invalid parameters: %s",
		"unavailable":    "The station list could not be loaded. Please try again later.",
		"variant":        "Variant",
	},
}
