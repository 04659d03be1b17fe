package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/99souls/astrofed/internal/cache"
	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/parsers"
	"github.com/99souls/astrofed/internal/ratelimit"
)

const jplHorizonsBaseURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

// JPLHorizonsDesignators maps common target names to JPL Horizons'
// command designators for the major planets and the Sun, per spec §4.5.
var JPLHorizonsDesignators = map[string]string{
	"sun":     "10",
	"mercury": "199",
	"venus":   "299",
	"earth":   "399",
	"moon":    "301",
	"mars":    "499",
	"jupiter": "599",
	"saturn":  "699",
	"uranus":  "799",
	"neptune": "899",
	"pluto":   "999",
}

// JPLHorizons queries JPL's Horizons ephemeris service, whose JSON
// response embeds its ephemeris as a $$SOE/$$EOE-delimited text table.
// That text table is not parsed: the JSON parser reads "result" only when
// it is an array of objects, and otherwise decodes the top-level object as
// a single point.
// Grounded on original_source's jpl_horizons_provider.cpp.
type JPLHorizons struct{ base }

func NewJPLHorizons(http *httpclient.Client, c *cache.Cache, limiter *ratelimit.Limiter) *JPLHorizons {
	return &JPLHorizons{base{
		name: "JPL_Horizons", baseURL: jplHorizonsBaseURL, http: http, cache: c, limiter: limiter,
		timeout: 30 * time.Second, maxRetries: 3, cacheTTL: 5 * time.Minute,
	}}
}

func (j *JPLHorizons) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.ByName, model.Ephemeris}
}

func (j *JPLHorizons) IsAvailable(ctx context.Context) bool {
	return j.healthCheck(ctx, j.baseURL)
}

func designator(target string) string {
	if d, ok := JPLHorizonsDesignators[strings.ToLower(strings.TrimSpace(target))]; ok {
		return d
	}
	return target
}

func (j *JPLHorizons) Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	return j.execute(ctx, req,
		func() (httpclient.Request, error) {
			return buildHorizonsRequest(j.baseURL, req)
		},
		func(body []byte) (model.QueryResult, error) {
			parser := &parsers.JSONParser{EphemerisParser: parsers.JPLHorizonsEphemerisParser}
			points, err := parser.ParseEphemeris(body)
			if err != nil {
				return model.QueryResult{}, err
			}
			quality := model.MatchNone
			if req.Kind == model.ByName {
				quality = model.MatchExact
			}
			return model.QueryResult{Ephemeris: points, MatchQuality: quality}, nil
		},
	)
}

func buildHorizonsRequest(baseURL string, req model.QueryRequest) (httpclient.Request, error) {
	if req.Kind != model.ByName && req.Kind != model.Ephemeris {
		return httpclient.Request{}, fmt.Errorf("jpl_horizons: unsupported query kind %s", req.Kind)
	}
	target := designator(req.Term)

	var b strings.Builder
	fmt.Fprintf(&b, "%s?format=json&COMMAND='%s'", baseURL, target)
	b.WriteString("&EPHEM_TYPE='observer'&MAKE_EPHEM='YES'")
	if req.HasObserver {
		fmt.Fprintf(&b, "&SITE_COORD='%f,%f,%f'", req.Observer.Longitude, req.Observer.Latitude, req.Observer.Elevation/1000)
	} else {
		b.WriteString("&CENTER='@399'")
	}

	start := req.StartTime
	if start.IsZero() {
		start = req.Epoch
	}
	stop := req.StopTime
	if stop.IsZero() {
		stop = start.Add(24 * time.Hour)
	}
	fmt.Fprintf(&b, "&START_TIME='%s'", start.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "&STOP_TIME='%s'", stop.UTC().Format("2006-01-02"))

	step := req.StepSize
	if step <= 0 {
		step = time.Hour
	}
	fmt.Fprintf(&b, "&STEP_SIZE='%s m'", strconv.Itoa(int(step.Minutes())))
	b.WriteString("&QUANTITIES='1,2,14,19'")

	return httpclient.Request{Method: "GET", URL: b.String()}, nil
}
