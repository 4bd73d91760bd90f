package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
)

// ErrNotEnoughData is returned when a chart has fewer than two points in total.
var ErrNotEnoughData = errors.New("not enough data to draw chart")

// ErrUnknownVariable is returned when a variable is not charted for the family.
var ErrUnknownVariable = errors.New("variable not charted for family")

// Default PNG size.
const (
	DefaultWidth  = 960
	DefaultHeight = 400
)

const axisTimeLayout = "02/01 15:04"

// Chart is one line chart: a variable over time, one series per station.
type Chart struct {
	Variable string
	Title    string
	Series   []table.Series
}

// Points returns the number of points across all series.
func (c Chart) Points() int {
	n := 0
	for _, s := range c.Series {
		n += len(s.Points)
	}
	return n
}

// Build returns the charts for cfg's variables that have at least one value
// in t, in declaration order and at most catalog.MaxCharts.
func Build(t *table.Table, cfg catalog.SensorConfig, labels catalog.Labels) []Chart {
	var out []Chart
	for _, v := range cfg.Variables {
		if len(out) == catalog.MaxCharts {
			break
		}
		if !t.HasData(v) {
			continue
		}
		out = append(out, Chart{
			Variable: v,
			Title:    labels.Field(v),
			Series:   t.Series(v),
		})
	}
	return out
}

// Find returns the chart for variable, or ErrUnknownVariable.
func Find(charts []Chart, variable string) (Chart, error) {
	for _, c := range charts {
		if c.Variable == variable {
			return c, nil
		}
	}
	return Chart{}, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
}

// RenderPNG draws c as a PNG of the given size (zero means default) into w.
func RenderPNG(w io.Writer, c Chart, width, height int) error {
	if c.Points() < 2 {
		return ErrNotEnoughData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	series := make([]chart.Series, 0, len(c.Series))
	lo, hi := math.Inf(1), math.Inf(-1)
	var loc *time.Location
	for i, s := range c.Series {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			xs[j] = p.Time
			ys[j] = p.Value
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
		if loc == nil {
			loc = xs[0].Location()
		}
		// A single point still needs two X values to draw.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Second))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{
			Name:    s.Station,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(chart.GetDefaultColor(i)),
		})
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: timeFormatter(loc)},
		YAxis:      chart.YAxis{Range: paddedRange(lo, hi)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.LegendLeft(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", c.Variable, err)
	}
	return nil
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
	}
}

// paddedRange widens [lo, hi] by 5% so flat series still get a non-zero range.
func paddedRange(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// timeFormatter renders axis ticks in the station's zone rather than the server's.
func timeFormatter(loc *time.Location) chart.ValueFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return func(v interface{}) string {
		switch x := v.(type) {
		case float64:
			return time.Unix(0, int64(x)).In(loc).Format(axisTimeLayout)
		case time.Time:
			return x.In(loc).Format(axisTimeLayout)
		default:
			return ""
		}
	}
}
