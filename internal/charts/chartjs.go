package charts

import (
	"encoding/json"
	"fmt"
)

// palette matches the browser charts to the PNG ones closely enough for a legend.
var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f"}

// JSPoint is one {x, y} pair for Chart.js; x is an RFC 3339 timestamp.
type JSPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// JSDataset is one station's line.
type JSDataset struct {
	Label       string    `json:"label"`
	Data        []JSPoint `json:"data"`
	BorderColor string    `json:"borderColor"`
	PointRadius int       `json:"pointRadius"`
	BorderWidth int       `json:"borderWidth"`
}

// JSChart is the client-side description of one chart.
type JSChart struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Datasets []JSDataset `json:"datasets"`
}

// ChartJS converts c into the structure the dashboard script feeds to Chart.js.
func (c Chart) ChartJS() JSChart {
	out := JSChart{ID: "chart-" + c.Variable, Title: c.Title}
	for i, s := range c.Series {
		ds := JSDataset{
			Label:       s.Station,
			BorderColor: palette[i%len(palette)],
			PointRadius: 0,
			BorderWidth: 2,
			Data:        make([]JSPoint, len(s.Points)),
		}
		for j, p := range s.Points {
			ds.Data[j] = JSPoint{X: p.Time.Format("2006-01-02T15:04:05Z07:00"), Y: p.Value}
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

// MarshalChartJS encodes all charts as a JSON array for embedding in a page.
func MarshalChartJS(charts []Chart) ([]byte, error) {
	out := make([]JSChart, len(charts))
	for i, c := range charts {
		out[i] = c.ChartJS()
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode charts: %w", err)
	}
	return raw, nil
}
