package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherlink-dashboard/internal/cache"
	"github.com/kjstillabower/weatherlink-dashboard/internal/catalog"
	"github.com/kjstillabower/weatherlink-dashboard/internal/charts"
	"github.com/kjstillabower/weatherlink-dashboard/internal/client"
	"github.com/kjstillabower/weatherlink-dashboard/internal/models"
	"github.com/kjstillabower/weatherlink-dashboard/internal/observability"
	"github.com/kjstillabower/weatherlink-dashboard/internal/parse"
	"github.com/kjstillabower/weatherlink-dashboard/internal/query"
	"github.com/kjstillabower/weatherlink-dashboard/internal/table"
	"github.com/kjstillabower/weatherlink-dashboard/internal/traffic"
)

// ErrDirectoryUnavailable is returned when the station list cannot be loaded.
var ErrDirectoryUnavailable = errors.New("station directory unavailable")

const stationsKey = "stations"

// Options configures a DashboardService. Zero values take the defaults noted.
type Options struct {
	StationTTL      time.Duration // directory cache TTL; 0 loads it fresh on every run
	HistoricTTL     time.Duration // closed-window historic cache TTL; 0 disables
	CoalesceTimeout time.Duration // default 30s
	MaxConcurrent   int           // parallel station fetches, default 4
	Labels          catalog.Labels
}

// DashboardService runs the dashboard pipeline: station directory, per-station
// sensor resolution, historic fetch and parse, aggregation and chart building.
type DashboardService struct {
	client      client.StationClient
	cache       cache.Cache
	profile     catalog.Profile
	labels      catalog.Labels
	stationTTL  time.Duration
	historicTTL time.Duration
	parallel    int
	directory   *requestCoalescer[[]models.Station]
	historic    *requestCoalescer[models.HistoricResponse]
	now         func() time.Time
}

// NewDashboardService creates a DashboardService for the given variant profile.
func NewDashboardService(c client.StationClient, store cache.Cache, profile catalog.Profile, opts Options) *DashboardService {
	if opts.CoalesceTimeout <= 0 {
		opts.CoalesceTimeout = 30 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Labels.Locale == "" {
		opts.Labels = catalog.LabelsFor("")
	}
	return &DashboardService{
		client:      c,
		cache:       store,
		profile:     profile,
		labels:      opts.Labels,
		stationTTL:  opts.StationTTL,
		historicTTL: opts.HistoricTTL,
		parallel:    opts.MaxConcurrent,
		directory:   newRequestCoalescer[[]models.Station](opts.CoalesceTimeout),
		historic:    newRequestCoalescer[models.HistoricResponse](opts.CoalesceTimeout),
		now:         time.Now,
	}
}

// Profile returns the variant the service was built for.
func (s *DashboardService) Profile() catalog.Profile {
	return s.profile
}

// Labels returns the display strings of the configured locale.
func (s *DashboardService) Labels() catalog.Labels {
	return s.labels
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

// Stations returns the station directory sorted by name. With a StationTTL it
// is served from cache while fresh; without one every call loads it upstream.
func (s *DashboardService) Stations(ctx context.Context) ([]models.Station, error) {
	if s.stationTTL > 0 {
		var cached []models.Station
		ok, err := cache.GetJSON(ctx, s.cache, stationsKey, &cached)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			loggerFromContext(ctx).Warn("station cache get failed", zap.Error(err))
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("stations").Inc()
			return cached, nil
		}
		observability.CacheMissesTotal.WithLabelValues("stations").Inc()
	}

	stations, _, err := s.directory.GetOrDo(ctx, stationsKey, func(ctx context.Context) ([]models.Station, error) {
		return s.loadStations(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	return stations, nil
}

// RefreshStations reloads the directory from upstream into the cache and
// returns the number of stations. Used by the background refresher.
func (s *DashboardService) RefreshStations(ctx context.Context) (int, error) {
	stations, err := s.loadStations(ctx)
	if err != nil {
		return 0, err
	}
	return len(stations), nil
}

func (s *DashboardService) loadStations(ctx context.Context) ([]models.Station, error) {
	stations, err := s.client.GetStations(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stations, func(i, j int) bool {
		return strings.ToLower(stations[i].Name) < strings.ToLower(stations[j].Name)
	})
	if s.stationTTL <= 0 {
		return stations, nil
	}
	if err := cache.SetJSON(ctx, s.cache, stationsKey, stations, s.stationTTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		loggerFromContext(ctx).Warn("station cache set failed", zap.Error(err))
	}
	return stations, nil
}

// StationNames returns the selector options: station names in directory order.
func StationNames(stations []models.Station) []string {
	out := make([]string, len(stations))
	for i, st := range stations {
		out[i] = st.Name
	}
	return out
}

// Directory builds the name to station lookup. Duplicate names keep the first station.
func Directory(stations []models.Station) map[string]models.Station {
	out := make(map[string]models.Station, len(stations))
	for _, st := range stations {
		if _, ok := out[st.Name]; !ok {
			out[st.Name] = st
		}
	}
	return out
}

// Result is the outcome of one dashboard run. Station name lists keep the
// selection order.
type Result struct {
	Params  query.Params
	Family  catalog.SensorConfig
	Table   *table.Table
	Charts  []charts.Chart
	Missing []string // fetched, but no data in the window
	Skipped []string // override pins the station to another family
	Unknown []string // not in the directory
	Failed  []string // upstream or parse error
}

// NoData reports whether no selected station produced a row.
func (r Result) NoData() bool {
	return r.Table.Empty()
}

// HasWarnings reports whether any station needs to be mentioned to the user.
func (r Result) HasWarnings() bool {
	return len(r.Missing)+len(r.Skipped)+len(r.Unknown)+len(r.Failed) > 0
}

type stationJob struct {
	station models.Station
	cfg     catalog.SensorConfig
}

type stationResult struct {
	tb  *table.Table
	err error
}

// Query runs the pipeline for p. Only an unknown family or an unavailable
// directory fail the whole run; per-station problems are reported in Result.
func (s *DashboardService) Query(ctx context.Context, p query.Params) (Result, error) {
	logger := loggerFromContext(ctx)
	start := time.Now()

	base, err := s.profile.Family(p.Family)
	if err != nil {
		return Result{}, err
	}
	observability.RecordDashboardQuery(p.Family)

	res := Result{Params: p, Family: base}
	if !p.Selected() {
		res.Table = table.New(base.ColumnNames())
		return res, nil
	}

	stations, err := s.Stations(ctx)
	if err != nil {
		return Result{}, err
	}
	byName := Directory(stations)

	var jobs []stationJob
	for _, name := range p.Stations {
		st, ok := byName[name]
		if !ok {
			res.Unknown = append(res.Unknown, name)
			recordOutcome("unknown")
			continue
		}
		cfg, err := s.profile.Resolve(st.ID, p.Family)
		if errors.Is(err, catalog.ErrSensorMismatch) {
			res.Skipped = append(res.Skipped, name)
			recordOutcome("skipped")
			logger.Info("station skipped by override", zap.String("station", name), zap.String("station_id", st.ID), zap.String("family", p.Family))
			continue
		}
		if err != nil {
			return Result{}, err
		}
		jobs = append(jobs, stationJob{station: st, cfg: cfg})
	}

	from, to := p.Window()
	results := make([]stationResult, len(jobs))
	sem := make(chan struct{}, s.parallel)
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job stationJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			tb, err := s.fetchStation(ctx, job, from, to)
			results[i] = stationResult{tb: tb, err: err}
		}(i, job)
	}
	wg.Wait()

	tables := make([]*table.Table, 0, len(jobs))
	for i, r := range results {
		name := jobs[i].station.Name
		switch {
		case r.err != nil:
			res.Failed = append(res.Failed, name)
			recordOutcome("error")
			traffic.Record(traffic.OutcomeError)
			logger.Warn("station fetch failed",
				zap.String("station", name),
				zap.String("station_id", jobs[i].station.ID),
				zap.String("category", string(client.CategorizeError(r.err))),
				zap.Error(r.err))
		case r.tb.Empty():
			res.Missing = append(res.Missing, name)
			recordOutcome("empty")
			traffic.Record(traffic.OutcomeEmpty)
		default:
			tables = append(tables, r.tb)
			recordOutcome("success")
			traffic.Record(traffic.OutcomeSuccess)
		}
	}

	if len(tables) == 0 {
		res.Table = table.New(base.ColumnNames())
	} else {
		res.Table = table.Concat(tables...)
	}
	res.Charts = charts.Build(res.Table, base, s.labels)

	logger.Debug("dashboard query served",
		zap.String("family", p.Family),
		zap.Int("stations", len(p.Stations)),
		zap.Int("rows", res.Table.Len()),
		zap.Int("missing", len(res.Missing)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func recordOutcome(outcome string) {
	observability.StationFetchesTotal.WithLabelValues(outcome).Inc()
}

// fetchStation fetches and parses one station. Records without a timestamp
// produce an empty table rather than an error.
func (s *DashboardService) fetchStation(ctx context.Context, job stationJob, from, to time.Time) (*table.Table, error) {
	resp, err := s.historicPage(ctx, job.station.ID, from, to)
	if err != nil {
		return nil, err
	}
	tb, err := parse.Historic(resp, job.cfg, job.station)
	if errors.Is(err, parse.ErrNoTimestamp) {
		loggerFromContext(ctx).Warn("historic records without timestamp", zap.String("station", job.station.Name))
		return tb, nil
	}
	return tb, err
}

// historicPage returns the raw historic data of a station. Windows that ended
// before now never change, so they are cached when HistoricTTL is set.
func (s *DashboardService) historicPage(ctx context.Context, stationID string, from, to time.Time) (models.HistoricResponse, error) {
	key := historicKey(stationID, from, to)
	cacheable := s.historicTTL > 0 && !to.After(s.now())

	if cacheable {
		var cached models.HistoricResponse
		ok, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("historic").Inc()
			return cached, nil
		}
		observability.CacheMissesTotal.WithLabelValues("historic").Inc()
	}

	resp, _, err := s.historic.GetOrDo(ctx, key, func(ctx context.Context) (models.HistoricResponse, error) {
		return s.client.GetHistoric(ctx, stationID, from, to)
	})
	if err != nil {
		return models.HistoricResponse{}, fmt.Errorf("fetch historic for %s: %w", stationID, err)
	}
	if cacheable {
		if err := cache.SetJSON(ctx, s.cache, key, resp, s.historicTTL); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		}
	}
	return resp, nil
}

func historicKey(stationID string, from, to time.Time) string {
	return "historic:" + stationID + ":" + strconv.FormatInt(from.Unix(), 10) + ":" + strconv.FormatInt(to.Unix(), 10)
}
