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

const simbadBaseURL = "https://simbad.u-strasbg.fr/simbad/sim-tap/sync"

// Simbad queries CDS's SIMBAD database over its TAP/ADQL endpoint.
// Grounded on original_source's simbad_provider.hpp.
type Simbad struct{ base }

// NewSimbad constructs a SIMBAD provider sharing http, cache, and limiter
// with the rest of the federator.
func NewSimbad(http *httpclient.Client, c *cache.Cache, limiter *ratelimit.Limiter) *Simbad {
	return &Simbad{base{
		name: "SIMBAD", baseURL: simbadBaseURL, http: http, cache: c, limiter: limiter,
		timeout: 30 * time.Second, maxRetries: 3, cacheTTL: 120 * time.Minute,
	}}
}

func (s *Simbad) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.ByName, model.ByCoord, model.ByCatalog}
}

func (s *Simbad) IsAvailable(ctx context.Context) bool {
	return s.healthCheck(ctx, s.baseURL)
}

func (s *Simbad) Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	return s.execute(ctx, req,
		func() (httpclient.Request, error) {
			adql, err := buildSimbadADQL(req)
			if err != nil {
				return httpclient.Request{}, err
			}
			return httpclient.Request{
				Method: "GET",
				URL:    s.baseURL + "?request=doQuery&lang=adql&format=votable&query=" + url.QueryEscape(adql),
			}, nil
		},
		func(body []byte) (model.QueryResult, error) {
			parser := &parsers.VOTableParser{Mappings: parsers.SimbadMappings()}
			records, err := parser.Parse(body)
			if err != nil {
				return model.QueryResult{}, err
			}
			records = truncate(applyFilters(records, req), req.Limit)
			return model.QueryResult{Records: records, MatchQuality: model.MatchAlias}, nil
		},
	)
}

const simbadSelect = `SELECT main_id, ra AS "RA_ICRS_Angle_alpha", dec AS "DEC_ICRS_Angle_delta", V, B, "Const" FROM basic`

func buildSimbadADQL(req model.QueryRequest) (string, error) {
	switch req.Kind {
	case model.ByName:
		term := strings.ReplaceAll(req.Term, "'", "''")
		return fmt.Sprintf(`%s WHERE main_id LIKE '%%%s%%'`, simbadSelect, term), nil
	case model.ByCoord:
		return fmt.Sprintf(`%s WHERE CONTAINS(POINT('ICRS', ra, dec), CIRCLE('ICRS', %f, %f, %f))=1`,
			simbadSelect, req.Coord.RA, req.Coord.Dec, req.Radius), nil
	case model.ByCatalog:
		cat := strings.ReplaceAll(req.Catalog, "'", "''")
		return fmt.Sprintf(`%s WHERE main_id LIKE '%s%%'`, simbadSelect, cat), nil
	default:
		return "", fmt.Errorf("simbad: unsupported query kind %s", req.Kind)
	}
}
