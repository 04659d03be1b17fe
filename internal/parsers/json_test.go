package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParserDefaultObjectsPath(t *testing.T) {
	doc := `{"data":[{"name":"Vega","ra":279.2347,"dec":38.7837,"mag":0.03,"type":"star"}]}`
	p := NewJSONParser()
	records, err := p.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Vega", records[0].Identifier)
	assert.InDelta(t, 279.2347, records[0].Coordinates.RA, 1e-9)
	assert.Equal(t, "star", records[0].ObjectType)
}

func TestJSONParserRootArray(t *testing.T) {
	doc := `[{"id":"NGC 224","ra":10.6847,"dec":41.269}]`
	p := &JSONParser{ObjectsPath: "$", ObjectParser: DefaultObjectParser}
	records, err := p.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NGC 224", records[0].Identifier)
}

func TestNEDParserNestedCoordinates(t *testing.T) {
	doc := `{"data":[{"Name":"NGC 224","Preferred":{"Coordinates":{"RA_deg":10.6847,"DEC_deg":41.269}},"Type":"G","Mag_V":3.44}]}`
	p := &JSONParser{ObjectsPath: "data", ObjectParser: NEDParser}
	records, err := p.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NGC 224", records[0].Identifier)
	assert.InDelta(t, 10.6847, records[0].Coordinates.RA, 1e-9)
	assert.InDelta(t, 41.269, records[0].Coordinates.Dec, 1e-9)
}

func TestGaiaParserParallaxToDistance(t *testing.T) {
	obj := map[string]any{"source_id": "123", "ra": 1.0, "dec": 2.0, "parallax": 10.0}
	rec := GaiaParser(obj)
	assert.Equal(t, "123", rec.Identifier)
	assert.InDelta(t, 100.0, rec.SurfaceBrightness, 1e-9)
}

func TestJSONParserEphemerisResultPath(t *testing.T) {
	doc := `{"result":[{"RA":120.5,"DEC":-10.25,"delta":1.42,"mag":-2.1}]}`
	p := &JSONParser{EphemerisParser: JPLHorizonsEphemerisParser}
	points, err := p.ParseEphemeris([]byte(doc))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 120.5, points[0].RA, 1e-9)
	assert.InDelta(t, 1.42, points[0].DistanceAU, 1e-9)
}

func TestJSONParserRejectsMalformedJSON(t *testing.T) {
	p := NewJSONParser()
	_, err := p.Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestJSONParserMissingPathIsError(t *testing.T) {
	p := NewJSONParser()
	_, err := p.Parse([]byte(`{"other":[]}`))
	assert.Error(t, err)
}
