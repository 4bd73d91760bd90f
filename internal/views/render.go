package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/charts"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// RenderDashboard executes the dashboard page into w.
func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// Option is one entry of a selector.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// ChartView is one chart card: the canvas id for Chart.js and the PNG link.
type ChartView struct {
	ID     string
	Title  string
	PNGURL string
}

// DashboardData is the view model of the dashboard page.
type DashboardData struct {
	labels catalog.Labels

	Lang      string
	Variant   string
	Stations  []Option
	Families  []Option
	Mode      string
	Hours     int
	MaxHours  int
	StartDate string
	EndDate   string

	Info     string
	Error    string
	Warnings []string

	Charts     []ChartView
	ChartsJSON template.JS
	Rows       int
	CSVURL     string
	XLSXURL    string
}

// Text returns a UI string in the page locale.
func (d *DashboardData) Text(key string) string {
	return d.labels.Text(key)
}

// ShowCharts reports whether the chart section is rendered.
func (d *DashboardData) ShowCharts() bool {
	return len(d.Charts) > 0
}

// Page describes everything the dashboard page needs for one request.
// Result is nil when no query ran (nothing selected, or an error).
type Page struct {
	Labels   catalog.Labels
	Profile  catalog.Profile
	Stations []string
	Params   query.Params
	MaxHours int
	Result   *service.Result
	Err      error
}

// NewDashboardData builds the view model for p.
func NewDashboardData(p Page) (*DashboardData, error) {
	d := &DashboardData{
		labels:     p.Labels,
		Lang:       p.Labels.Locale,
		Variant:    p.Profile.Name,
		Mode:       string(p.Params.Mode),
		Hours:      p.Params.HoursBack,
		MaxHours:   p.MaxHours,
		StartDate:  p.Params.StartDate.Format(query.DateLayout),
		EndDate:    p.Params.EndDate.Format(query.DateLayout),
		ChartsJSON: template.JS("[]"),
	}

	selected := make(map[string]bool, len(p.Params.Stations))
	for _, s := range p.Params.Stations {
		selected[s] = true
	}
	for _, name := range p.Stations {
		d.Stations = append(d.Stations, Option{Value: name, Label: name, Selected: selected[name]})
	}
	for _, f := range p.Profile.Families {
		d.Families = append(d.Families, Option{Value: f, Label: p.Labels.Family(f), Selected: f == p.Params.Family})
	}

	if p.Err != nil {
		d.Error = p.Err.Error()
		return d, nil
	}
	if !p.Params.Selected() || p.Result == nil {
		d.Info = p.Labels.Text("select_prompt")
		return d, nil
	}

	res := p.Result
	d.Warnings = warnings(p.Labels, res)
	if res.NoData() {
		return d, nil
	}

	raw, err := charts.MarshalChartJS(res.Charts)
	if err != nil {
		return nil, err
	}
	d.ChartsJSON = template.JS(raw)
	d.Rows = res.Table.Len()

	qs := p.Params.Values()
	for _, c := range res.Charts {
		js := c.ChartJS()
		d.Charts = append(d.Charts, ChartView{
			ID:     js.ID,
			Title:  c.Title,
			PNGURL: "/charts/" + url.PathEscape(c.Variable) + ".png?" + qs.Encode(),
		})
	}
	d.CSVURL = "/export.csv?" + qs.Encode()
	d.XLSXURL = "/export.xlsx?" + qs.Encode()
	return d, nil
}

func warnings(l catalog.Labels, r *service.Result) []string {
	var out []string
	add := func(key string, names []string) {
		if len(names) > 0 {
			out = append(out, fmt.Sprintf(l.Text(key), strings.Join(names, ", ")))
		}
	}
	add("failed", r.Failed)
	add("unknown", r.Unknown)
	add("skipped", r.Skipped)
	add("no_data", r.Missing)
	return out
}
