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

const nedBaseURL = "https://ned.ipac.caltech.edu/tap/sync"

// NED queries NASA/IPAC's Extragalactic Database over TAP/ADQL, returning
// VOTable XML. Names are normalised to upper case before querying, per
// original_source's ned_provider.cpp.
type NED struct{ base }

func NewNED(http *httpclient.Client, c *cache.Cache, limiter *ratelimit.Limiter) *NED {
	return &NED{base{
		name: "NED", baseURL: nedBaseURL, http: http, cache: c, limiter: limiter,
		timeout: 30 * time.Second, maxRetries: 3, cacheTTL: 60 * time.Minute,
	}}
}

func (n *NED) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.ByName, model.ByCoord}
}

func (n *NED) IsAvailable(ctx context.Context) bool {
	return n.healthCheck(ctx, n.baseURL)
}

func (n *NED) Query(ctx context.Context, req model.QueryRequest) (model.QueryResult, error) {
	return n.execute(ctx, req,
		func() (httpclient.Request, error) {
			adql, err := buildNEDADQL(req)
			if err != nil {
				return httpclient.Request{}, err
			}
			return httpclient.Request{
				Method: "GET",
				URL:    n.baseURL + "?request=doQuery&lang=adql&format=votable&query=" + url.QueryEscape(adql),
			}, nil
		},
		func(body []byte) (model.QueryResult, error) {
			parser := &parsers.VOTableParser{}
			records, err := parser.Parse(body)
			if err != nil {
				return model.QueryResult{}, err
			}
			records = truncate(applyFilters(records, req), req.Limit)
			return model.QueryResult{Records: records, MatchQuality: model.MatchAlias}, nil
		},
	)
}

const nedSelect = `SELECT prefname AS "main_id", ra AS "RA_ICRS_Angle_alpha", dec AS "DEC_ICRS_Angle_delta" FROM NEDTAP.objdir`

func buildNEDADQL(req model.QueryRequest) (string, error) {
	switch req.Kind {
	case model.ByName:
		term := strings.ToUpper(strings.ReplaceAll(req.Term, "'", "''"))
		return fmt.Sprintf(`%s WHERE prefname LIKE '%%%s%%'`, nedSelect, term), nil
	case model.ByCoord:
		return fmt.Sprintf(`%s WHERE CONTAINS(POINT('ICRS', ra, dec), CIRCLE('ICRS', %f, %f, %f))=1`,
			nedSelect, req.Coord.RA, req.Coord.Dec, req.Radius), nil
	default:
		return "", fmt.Errorf("ned: unsupported query kind %s", req.Kind)
	}
}
