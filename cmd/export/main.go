// Command export writes the dashboard table of one query to CSV or Excel.
//
//	export -s "Parque Norte" -s "Colegio Sur" -f air_quality --hours 12 -o aire.csv
//	export -s "Estación Centro" -f weather --start-date 2025-06-01 --end-date 2025-06-08 --format xlsx
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kjstillabower/weatherlink-dashboard/internal/cache"
	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
	"github.com/kjstillabower/weatherlink-dashboard/internal/config"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/service"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
)

type options struct {
	stations  []string
	family    string
	hours     int
	startDate string
	endDate   string
	format    string
	out       string
	variant   string
	configDir string
	timeout   time.Duration
}

var errNoData = errors.New("no data for the selected stations")

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	var o options
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringArrayVarP(&o.stations, "station", "s", nil, "station name (repeatable)")
	fs.StringVarP(&o.family, "family", "f", "", "sensor family (default: first family of the variant)")
	fs.IntVar(&o.hours, "hours", 0, "hours back from now; when set, start/end dates are ignored")
	fs.StringVar(&o.startDate, "start-date", "", "start date yyyy-mm-dd (default yesterday)")
	fs.StringVar(&o.endDate, "end-date", "", "end date yyyy-mm-dd, exclusive (default today)")
	fs.StringVar(&o.format, "format", "csv", "output format: csv or xlsx")
	fs.StringVarP(&o.out, "out", "o", "", "output file, - for stdout (default datos_{family}_{time}.{format})")
	fs.StringVar(&o.variant, "variant", "", "dashboard variant: air, meteo or full (default from config)")
	fs.StringVar(&o.configDir, "config-dir", ".", "directory holding config/ and .env")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return o, fs, err
	}
	o.format = strings.ToLower(o.format)
	if o.format != "csv" && o.format != "xlsx" {
		return o, fs, fmt.Errorf("--format must be csv or xlsx, got %q", o.format)
	}
	if len(o.stations) == 0 {
		return o, fs, errors.New("at least one --station is required")
	}
	return o, fs, nil
}

// values maps the flags onto the dashboard query string so both share validation.
func (o options) values(hoursSet bool) url.Values {
	v := url.Values{query.KeyStation: o.stations}
	if o.family != "" {
		v.Set(query.KeyFamily, o.family)
	}
	if hoursSet {
		v.Set(query.KeyMode, string(query.ModeHours))
		v.Set(query.KeyHours, strconv.Itoa(o.hours))
		return v
	}
	v.Set(query.KeyMode, string(query.ModeRange))
	if o.startDate != "" {
		v.Set(query.KeyStart, o.startDate)
	}
	if o.endDate != "" {
		v.Set(query.KeyEnd, o.endDate)
	}
	return v
}

func outputName(o options, res service.Result) string {
	if o.out != "" {
		return o.out
	}
	return fmt.Sprintf("datos_%s_%s.%s", res.Family.Family, res.Params.End.Format("20060102_1504"), o.format)
}

func encode(w io.Writer, res service.Result, format string, labels catalog.Labels) error {
	if format == "xlsx" {
		return res.Table.WriteXLSX(w, table.DefaultSheet, labels.Field)
	}
	return res.Table.WriteCSV(w)
}

func run(ctx context.Context, o options, hoursSet bool, stdout io.Writer, logger *zap.Logger) error {
	cfg, err := config.LoadDir(o.configDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if o.variant != "" {
		cfg.Variant = o.variant
	}
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	p, err := query.Parse(o.values(hoursSet), time.Now(), cfg.Location, profile.DefaultFamily(), query.Limits{
		DefaultHours: cfg.DefaultHours,
		MaxRangeDays: cfg.MaxRangeDays,
	})
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	wl, err := client.NewWeatherLinkClient(cfg.ClientOptions())
	if err != nil {
		return err
	}
	labels := catalog.LabelsFor(cfg.Locale)
	svc := service.NewDashboardService(wl, cache.NewInMemoryCache(), profile, service.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		Labels:        labels,
	})

	ctx = context.WithValue(ctx, "logger", logger)
	res, err := svc.Query(ctx, p)
	if err != nil {
		return err
	}
	report(logger, res)
	if res.NoData() {
		return errNoData
	}

	var buf bytes.Buffer
	if err := encode(&buf, res, o.format, labels); err != nil {
		return err
	}
	name := outputName(o, res)
	if name == "-" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	logger.Info("export written",
		zap.String("file", name),
		zap.Int("rows", res.Table.Len()),
		zap.Time("start", p.Start),
		zap.Time("end", p.End))
	return nil
}

func report(logger *zap.Logger, res service.Result) {
	if len(res.Missing) > 0 {
		logger.Warn("stations without data", zap.Strings("stations", res.Missing))
	}
	if len(res.Skipped) > 0 {
		logger.Warn("stations skipped, sensor not reported", zap.Strings("stations", res.Skipped))
	}
	if len(res.Unknown) > 0 {
		logger.Warn("unknown stations", zap.Strings("stations", res.Unknown))
	}
	if len(res.Failed) > 0 {
		logger.Warn("station requests failed", zap.Strings("stations", res.Failed))
	}
}

func main() {
	o, fs, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(2)
	}

	logger, err := observability.NewCLILogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	err = run(ctx, o, fs.Changed("hours"), os.Stdout, logger)
	if err != nil {
		logger.Error("export failed", zap.Error(err))
	}
	_ = observability.FlushTelemetry(context.Background(), logger)
	if err != nil {
		os.Exit(1)
	}
}
