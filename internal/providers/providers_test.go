package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/astrofed/internal/cache"
	"github.com/99souls/astrofed/internal/httpclient"
	"github.com/99souls/astrofed/internal/model"
	"github.com/99souls/astrofed/internal/ratelimit"
)

const votableFixture = `<VOTABLE><RESOURCE><TABLE>
  <FIELD name="main_id"/><FIELD name="RA_ICRS_Angle_alpha"/><FIELD name="DEC_ICRS_Angle_delta"/><FIELD name="V"/>
  <DATA><TABLEDATA>
    <TR><TD>M 31</TD><TD>10.6847</TD><TD>41.2689</TD><TD>3.44</TD></TR>
  </TABLEDATA></DATA>
</TABLE></RESOURCE></VOTABLE>`

func newTestClient() *httpclient.Client {
	c, err := httpclient.New("astrofed-test/1.0", "")
	if err != nil {
		panic(err)
	}
	return c
}

func TestSimbadQueryCachesAfterFirstCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(votableFixture))
	}))
	defer srv.Close()

	s := NewSimbad(newTestClient(), cache.New(cache.Config{}), ratelimit.New(ratelimit.Rule{RPS: 100, Burst: 100}))
	s.baseURL = srv.URL

	req := model.QueryRequest{Kind: model.ByName, Term: "M31", Limit: 10}
	res1, err := s.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res1.FromCache)
	require.Len(t, res1.Records, 1)
	assert.Equal(t, "M 31", res1.Records[0].Identifier)

	res2, err := s.Query(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res2.FromCache)
	assert.Equal(t, 1, calls, "second identical query should be served from cache")
}

func TestSimbadQueryMapsServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSimbad(newTestClient(), cache.New(cache.Config{}), ratelimit.New(ratelimit.Rule{RPS: 100, Burst: 100}))
	s.baseURL = srv.URL
	s.maxRetries = 0

	_, err := s.Query(context.Background(), model.QueryRequest{Kind: model.ByName, Term: "M31"})
	require.Error(t, err)
	var qerr *model.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, model.ErrServiceUnavailable, qerr.Kind)
}

func TestOpenNGCRefreshAndConeSearch(t *testing.T) {
	csvBody := "Name;Type;RA;Dec;Const;MajAx;MinAx;PosAng;B-Mag;V-Mag;SurfBr;Hubble;Messier;NGC;IC\n" +
		"NGC0224;G;00:42:44.3;+41:16:09;And;178.0;63.0;35;4.36;3.44;13.5;Sb;31;0224;\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	o := NewOpenNGC(newTestClient())
	o.url = srv.URL
	require.NoError(t, o.Refresh(context.Background()))

	res, err := o.Query(context.Background(), model.QueryRequest{Kind: model.ByName, Term: "M31"})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "NGC0224", res.Records[0].Identifier)

	res, err = o.Query(context.Background(), model.QueryRequest{
		Kind: model.ByCoord, Coord: model.Coordinates{RA: 10.6847, Dec: 41.2689}, Radius: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "NGC0224", res.Records[0].Identifier)
}

func TestJPLHorizonsBuildsObserverSiteCoord(t *testing.T) {
	req := model.QueryRequest{
		Kind: model.Ephemeris, Term: "Moon", HasObserver: true,
		Observer: model.ObserverLocation{Latitude: 51.5, Longitude: -0.12, Elevation: 35},
		Epoch:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	httpReq, err := buildHorizonsRequest(jplHorizonsBaseURL, req)
	require.NoError(t, err)
	assert.Contains(t, httpReq.URL, "COMMAND='301'")
	assert.Contains(t, httpReq.URL, "SITE_COORD=")
}

func TestVizierCatalogueNameResolution(t *testing.T) {
	req := model.QueryRequest{Kind: model.ByCatalog, Catalog: "ngc2000"}
	httpReq, err := buildVizierRequest(vizierBaseURL, req)
	require.NoError(t, err)
	assert.Contains(t, httpReq.URL, "VII%2F118")
}
