package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/99souls/astrofed/internal/cache"
	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/parsers"
	"github.com/99souls/astrofed/internal/ratelimit"
)

const vizierBaseURL = "https://vizier.cds.unistra.fr/viz-bin/votable"

// VizierCatalogues maps the short catalogue names the search service
// accepts to VizieR's own identifiers, per spec §4.5.
var VizierCatalogues = map[string]string{
	"ngc2000":    "VII/118",
	"messier":    "VII/1B",
	"hipparcos":  "I/239",
	"2mass":      "II/246",
	"ucac4":      "I/322A",
	"apass":      "II/336",
}

// Vizier queries CDS's VizieR catalogue service via its HTTP GET cone
// search interface, returning VOTable XML. Grounded on
// original_source's vizier_provider.cpp.
type Vizier struct{ base }

func NewVizier(http *httpclient.Client, c *cache.Cache, limiter *ratelimit.Limiter) *Vizier {
	return &Vizier{base{
		name: "VizieR", baseURL: vizierBaseURL, http: http, cache: c, limiter: limiter,
		timeout: 30 * time.Second, maxRetries: 3, cacheTTL: 120 * time.Minute,
	}}
}

func (v *Vizier) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.ByName, model.ByCoord, model.ByCatalog}
}

func (v *Vizier) IsAvailable(ctx context.Context) bool {
	return v.healthCheck(ctx, v.baseURL)
}

func (v *Vizier) Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	return v.execute(ctx, req,
		func() (httpclient.Request, error) {
			return buildVizierRequest(v.baseURL, req)
		},
		func(body []byte) (model.QueryResult, error) {
			parser := &parsers.VOTableParser{Mappings: parsers.VizierNGCMappings()}
			records, err := parser.Parse(body)
			if err != nil {
				return model.QueryResult{}, err
			}
			records = truncate(applyFilters(records, req), req.Limit)
			return model.QueryResult{Records: records, MatchQuality: model.MatchAlias}, nil
		},
	)
}

func buildVizierRequest(baseURL string, req model.QueryRequest) (httpclient.Request, error) {
	catalog := req.Catalog
	if catalog == "" {
		catalog = "ngc2000"
	}
	source, ok := VizierCatalogues[strings.ToLower(catalog)]
	if !ok {
		source = catalog
	}

	q := url.Values{}
	q.Set("-source", source)
	q.Set("-out.max", "unlimited")

	switch req.Kind {
	case model.ByName:
		q.Set("-c", req.Term)
	case model.ByCoord:
		radiusArcsec := req.Radius * 3600
		q.Set("-c", fmt.Sprintf("%f+%f", req.Coord.RA, req.Coord.Dec))
		q.Set("-c.rs", fmt.Sprintf("%f", radiusArcsec))
	case model.ByCatalog:
		// source alone selects the catalogue; no further filter.
	default:
		return httpclient.Request{}, fmt.Errorf("vizier: unsupported query kind %s", req.Kind)
	}

	return httpclient.Request{Method: "GET", URL: baseURL + "?" + q.Encode()}, nil
}
