// Command astrofed is the CLI entry point: it wires configuration,
// logging, and metrics around the search federator and autofocus engine
// and exposes them as subcommands. Grounded on the teacher's
// cli/cmd/ariadne/main.go for the overall shape (signal-driven graceful
// shutdown, a background metrics server, JSON result encoding to
// stdout) and on the kingpin-based flag parsing used elsewhere in the
// example pack (cmd/rule-evaluator/main.go).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/99souls/astrofed/internal/config"
	"github.com/99souls/astrofed/internal/device"
	"github.com/99souls/astrofed/internal/focus"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/search"
	"github.com/99souls/astrofed/internal/telemetry/logging"
	"github.com/99souls/astrofed/internal/telemetry/metrics"
)

var version = "dev"

func main() {
	app := kingpin.New("astrofed", "Celestial-object search federator and telescope autofocus engine")
	app.HelpFlag.Short('h')

	configPath := app.Flag("config", "Path to a YAML configuration file").String()
	logLevel := app.Flag("log-level", "Override global.log_level from config").Enum("debug", "info", "warn", "error")
	metricsAddr := app.Flag("metrics-addr", "Serve Prometheus metrics on this address, e.g. :9090").String()

	searchCmd := app.Command("search", "Query the celestial-object federator")
	searchName := searchCmd.Flag("name", "Object name or catalogue identifier").String()
	searchRA := searchCmd.Flag("ra", "Right ascension in decimal degrees").Float64()
	searchDec := searchCmd.Flag("dec", "Declination in decimal degrees").Float64()
	searchRadius := searchCmd.Flag("radius", "Cone search radius in degrees").Default("0.5").Float64()
	searchEphemeris := searchCmd.Flag("ephemeris", "Fetch an ephemeris point for this target instead of searching").String()
	searchProvider := searchCmd.Flag("provider", "Query a specific provider instead of auto-selecting").String()
	searchLimit := searchCmd.Flag("limit", "Maximum number of records to return").Default("20").Int()

	focusCmd := app.Command("focus-sim", "Run the autofocus engine against an in-process simulated focuser (no real driver I/O; device-protocol bit-twiddling is out of scope)")
	focusStart := focusCmd.Flag("start", "Sweep start position").Required().Int()
	focusEnd := focusCmd.Flag("end", "Sweep end position").Required().Int()
	focusTrueFocus := focusCmd.Flag("true-focus", "Position of minimum HFR in the simulated V-curve").Default("25000").Int()

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("%v", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		kingpin.Fatalf("load config: %v", err)
	}
	if *logLevel != "" {
		cfg.Global.LogLevel = *logLevel
	}

	logger := logging.New(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Global.LogLevel)})))

	var metricsProvider metrics.Provider = metrics.NewNoopProvider()
	if cfg.Global.MetricsEnabled {
		prom := metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
		metricsProvider = prom
		if *metricsAddr != "" {
			go serveMetrics(*metricsAddr, prom, logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.WarnCtx(ctx, "signal received, shutting down")
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	switch cmd {
	case searchCmd.FullCommand():
		runSearch(ctx, cfg, logger, metricsProvider, searchOptions{
			name:      *searchName,
			ra:        *searchRA,
			dec:       *searchDec,
			radius:    *searchRadius,
			ephemeris: *searchEphemeris,
			provider:  *searchProvider,
			limit:     *searchLimit,
		})
	case focusCmd.FullCommand():
		runFocusSim(ctx, cfg, logger, metricsProvider, *focusStart, *focusEnd, *focusTrueFocus)
	default:
		app.Usage(os.Args[1:])
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serveMetrics(addr string, p *metrics.PrometheusProvider, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}
	logger.InfoCtx(context.Background(), "metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.ErrorCtx(context.Background(), "metrics server stopped", "err", err)
	}
}

type searchOptions struct {
	name      string
	ra, dec   float64
	radius    float64
	ephemeris string
	provider  string
	limit     int
}

func runSearch(ctx context.Context, cfg *config.Config, logger logging.Logger, mp metrics.Provider, opts searchOptions) {
	svc, err := search.New(cfg.ToSearchConfig())
	if err != nil {
		kingpin.Fatalf("construct search service: %v", err)
	}
	sm := metrics.NewSearchMetrics(mp)

	start := time.Now()
	var result any
	var queryErr error

	switch {
	case opts.ephemeris != "":
		point, err := svc.GetEphemeris(ctx, opts.ephemeris, time.Now())
		result, queryErr = point, err
	case opts.provider != "":
		req := model.QueryRequest{Kind: model.ByName, Term: opts.name, Limit: opts.limit}
		if opts.name == "" {
			req = model.QueryRequest{Kind: model.ByCoord, Coord: model.Coordinates{RA: opts.ra, Dec: opts.dec}, Radius: opts.radius, Limit: opts.limit}
		}
		qr, err := svc.QueryProvider(ctx, opts.provider, req)
		result, queryErr = qr, err
	case opts.name != "":
		records, err := svc.SearchByName(ctx, opts.name, opts.limit)
		result, queryErr = records, err
	default:
		records, err := svc.SearchByCoordinates(ctx, opts.ra, opts.dec, opts.radius, opts.limit)
		result, queryErr = records, err
	}

	outcome := "success"
	if queryErr != nil {
		outcome = "failed"
	}
	sm.QueriesTotal.Inc(1, "cli", outcome)
	sm.QueryDuration.Observe(time.Since(start).Seconds(), "cli")

	if queryErr != nil {
		logger.ErrorCtx(ctx, "search failed", "err", queryErr)
		kingpin.Fatalf("search: %v", queryErr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.ErrorCtx(ctx, "encode result", "err", err)
	}
}

// simFocuser, simCamera, and simDetector synthesize the V-curve
// HFR(p) = 1 + 0.02*|p - trueFocus| so focus-sim can demonstrate a full
// engine run without a real focuser driver.
type simFocuser struct {
	pos, trueFocus int
	lo, hi         int
}

func (f *simFocuser) Position(ctx context.Context) (int, error) { return f.pos, nil }
func (f *simFocuser) MoveTo(ctx context.Context, position int) error {
	f.pos = position
	return nil
}
func (f *simFocuser) IsMoving(ctx context.Context) (bool, error)   { return false, nil }
func (f *simFocuser) Abort(ctx context.Context) error              { return nil }
func (f *simFocuser) Limits(ctx context.Context) (int, int, error) { return f.lo, f.hi, nil }

type simCamera struct{}

func (simCamera) Expose(ctx context.Context, seconds float64, binning int) (device.Frame, error) {
	return device.Frame{Width: 1000, Height: 1000, ExposedAt: time.Now()}, nil
}

type simDetector struct{ focuser *simFocuser }

func (d simDetector) Detect(ctx context.Context, frame device.Frame) ([]device.Star, error) {
	hfr := 1.0 + 0.02*math.Abs(float64(d.focuser.pos-d.focuser.trueFocus))
	return []device.Star{{X: 500, Y: 500, HFR: hfr, FWHM: hfr * 2, Peak: 20000, Background: 100, Eccentricity: 0.1}}, nil
}

func runFocusSim(ctx context.Context, cfg *config.Config, logger logging.Logger, mp metrics.Provider, start, end, trueFocus int) {
	bundle, err := cfg.ToAutofocusBundle()
	if err != nil {
		kingpin.Fatalf("autofocus config: %v", err)
	}

	focuser := &simFocuser{pos: start, trueFocus: trueFocus, lo: 0, hi: 1 << 20}
	sampler := focus.NewSampler(focuser, simCamera{}, simDetector{focuser: focuser}, bundle.Sampler)
	builder := focus.NewCurveBuilder(sampler, bundle.Builder)
	analyser := focus.NewAnalyser(bundle.Analyser)
	engine := focus.NewEngine(focuser, builder, analyser, bundle.Engine)

	fm := metrics.NewFocusMetrics(mp)
	runStart := time.Now()
	curve, err := engine.Run(ctx, start, end)
	outcome := "valid"
	if err != nil {
		outcome = "error"
	} else if !curve.Valid {
		outcome = "invalid"
	}
	fm.RunsTotal.Inc(1, bundle.Algorithm.String(), outcome)
	fm.RunDuration.Observe(time.Since(runStart).Seconds(), bundle.Algorithm.String())
	if curve.Valid {
		fm.CurveConfidence.Set(curve.Confidence, bundle.Algorithm.String())
	}

	if err != nil {
		logger.ErrorCtx(ctx, "focus run failed", "err", err)
		kingpin.Fatalf("focus-sim: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"valid":         curve.Valid,
		"reason":        curve.Reason,
		"best_position": curve.BestPosition,
		"confidence":    curve.Confidence,
		"algorithm":     curve.Algorithm.String(),
		"final_focuser_position": focuser.pos,
		"sample_count":           len(curve.Samples),
	})

	fmt.Fprintf(os.Stderr, "astrofed %s focus-sim complete\n", version)
}
