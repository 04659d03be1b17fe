package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
)

const openNGCDefaultURL = "https://raw.githubusercontent.com/mattiaverga/OpenNGC/master/database_files/NGC.csv"

// openNGCIndex is the in-memory catalogue: ordered records plus name and
// Messier-number lookups. Replaced wholesale on refresh so concurrent
// readers never observe a partially-rebuilt index (spec §4.5/§9(a)).
type openNGCIndex struct {
	records     []model.CelestialRecord
	byName      map[string]int
	byMessier   map[string][]int // §9(a): list-valued, not single-slot
}

// OpenNGC answers name/coordinate/catalog queries against a locally held
// copy of the OpenNGC CSV catalogue, downloaded by Refresh rather than
// per query. Grounded on original_source's
// open_ngc_provider.cpp.
type OpenNGC struct {
	name    string
	url     string
	http    *httpclient.Client
	timeout time.Duration

	mu    sync.RWMutex
	index *openNGCIndex
}

// NewOpenNGC constructs an OpenNGC provider. The catalogue is empty until
// Refresh is called.
func NewOpenNGC(http *httpclient.Client) *OpenNGC {
	return &OpenNGC{
		name: "OpenNGC", url: openNGCDefaultURL, http: http, timeout: 30 * time.Second,
		index: &openNGCIndex{byName: map[string]int{}, byMessier: map[string][]int{}},
	}
}

func (o *OpenNGC) Name() string    { return o.name }
func (o *OpenNGC) BaseURL() string { return o.url }

func (o *OpenNGC) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.ByName, model.ByCoord, model.ByCatalog}
}

func (o *OpenNGC) IsAvailable(ctx context.Context) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.index.records) > 0
}

// Refresh downloads and parses the catalogue, then atomically swaps it in
// under a write lock so no reader observes a half-built index.
func (o *OpenNGC) Refresh(ctx context.Context) error {
	resp, err := o.http.Perform(ctx, httpclient.Request{Method: "GET", URL: o.url, Timeout: o.timeout, MaxRetries: 3, VerifyTLS: true, Redirects: true})
	if err != nil {
		return model.NewQueryError(model.ErrNetwork, o.name, err.Error(), err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return model.NewQueryError(model.StatusToErrorKind(resp.Status), o.name, fmt.Sprintf("http status %d", resp.Status), nil)
	}
	idx, err := parseOpenNGCCSV(resp.Body)
	if err != nil {
		return model.NewQueryError(model.ErrParse, o.name, err.Error(), err)
	}
	o.mu.Lock()
	o.index = idx
	o.mu.Unlock()
	return nil
}

func parseOpenNGCCSV(data []byte) (*openNGCIndex, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	idx := &openNGCIndex{byName: map[string]int{}, byMessier: map[string][]int{}}
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &model.ParseError{Message: "invalid OpenNGC CSV: " + err.Error()}
		}
		if first {
			first = false
			continue // header row
		}
		rec, ok := parseOpenNGCRow(fields)
		if !ok {
			continue
		}
		i := len(idx.records)
		idx.records = append(idx.records, rec)
		idx.byName[strings.ToUpper(rec.Identifier)] = i
		if rec.Messier != "" {
			key := "M" + rec.Messier
			idx.byMessier[key] = append(idx.byMessier[key], i)
		}
	}
	return idx, nil
}

func parseOpenNGCRow(fields []string) (model.CelestialRecord, bool) {
	if len(fields) < 10 {
		return model.CelestialRecord{}, false
	}
	trim := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	parseF := func(i int) float64 {
		v, _ := strconv.ParseFloat(trim(i), 64)
		return v
	}

	name := trim(0)
	if name == "" {
		return model.CelestialRecord{}, false
	}
	ra, _ := model.ParseSexagesimal(trim(2), true)
	dec, _ := model.ParseSexagesimal(trim(3), false)

	rec := model.CelestialRecord{
		Identifier:      name,
		ObjectType:      trim(1),
		Coordinates:     model.Coordinates{RA: ra, Dec: dec},
		ConstellationEn: trim(4),
		MajorAxis:       parseF(5),
		MinorAxis:       parseF(6),
		PositionAngle:   parseF(7),
		PhotographicMagnitude: parseF(8),
		VisualMagnitude: parseF(9),
	}
	if len(fields) > 10 {
		rec.SurfaceBrightness = parseF(10)
	}
	if len(fields) > 11 {
		rec.Morphology = trim(11)
	}
	if len(fields) > 12 {
		rec.Messier = trim(12)
	}
	if len(fields) > 13 {
		rec.NGC = trim(13)
	}
	if len(fields) > 14 {
		rec.IC = trim(14)
	}
	return rec, true
}

func (o *OpenNGC) Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	start := time.Now()

	var records []model.CelestialRecord
	quality := model.MatchNone
	switch req.Kind {
	case model.ByName, model.ByCatalog:
		term := strings.ToUpper(strings.TrimSpace(req.Term))
		if term == "" {
			term = strings.ToUpper(strings.TrimSpace(req.Catalog))
		}
		if i, ok := o.index.byName[term]; ok {
			records = append(records, o.index.records[i])
			quality = model.MatchExact
		} else if idxs, ok := o.index.byMessier[term]; ok {
			for _, i := range idxs {
				records = append(records, o.index.records[i])
			}
			quality = model.MatchAlias
		} else {
			for _, r := range o.index.records {
				if strings.Contains(strings.ToUpper(r.Identifier), term) {
					records = append(records, r)
				}
			}
			quality = model.MatchFuzzy
		}
	case model.ByCoord:
		for _, r := range o.index.records {
			if r.Coordinates.AngularDistance(req.Coord) <= req.Radius {
				records = append(records, r)
			}
		}
		quality = model.MatchCoord
	default:
		return model.QueryResult{}, fmt.Errorf("openngc: unsupported query kind %s", req.Kind)
	}

	records = truncate(applyFilters(records, req), req.Limit)
	return model.QueryResult{
		Records: records, Provider: o.name, QueryTime: time.Since(start), MatchQuality: quality,
	}, nil
}
