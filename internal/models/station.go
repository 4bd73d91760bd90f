package models

import "time"

// Station is one entry of the account's station directory.
type Station struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone,omitempty"`
}

// HistoricResponse is the decoded body of a historic data request. Pages
// fetched for long windows are merged into a single response.
type HistoricResponse struct {
	StationID   string        `json:"station_id"`
	Sensors     []SensorBlock `json:"sensors"`
	GeneratedAt int64         `json:"generated_at"`
	Start       time.Time     `json:"-"`
	End         time.Time     `json:"-"`
}

// SensorBlock holds the records reported by one logical sensor.
type SensorBlock struct {
	LSID              int64                    `json:"lsid"`
	SensorType        int                      `json:"sensor_type"`
	DataStructureType int                      `json:"data_structure_type"`
	Data              []map[string]interface{} `json:"data"`
}
