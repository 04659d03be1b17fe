package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simbadVotable = `<?xml version="1.0"?>
<VOTABLE version="1.3">
  <RESOURCE>
    <TABLE>
      <FIELD name="main_id"/>
      <FIELD name="RA_ICRS_Angle_alpha"/>
      <FIELD name="DEC_ICRS_Angle_delta"/>
      <FIELD name="V"/>
      <FIELD name="Const"/>
      <DATA>
        <TABLEDATA>
          <TR><TD>M 31</TD><TD>10:41:04.48</TD><TD>+41:16:09.4</TD><TD>3.44</TD><TD>And</TD></TR>
          <TR><TD>M 32</TD><TD>10.6736</TD><TD>40.8652</TD><TD>8.08V</TD><TD>And</TD></TR>
        </TABLEDATA>
      </DATA>
    </TABLE>
  </RESOURCE>
</VOTABLE>`

func TestVOTableParsesSexagesimalAndDecimalCoordinates(t *testing.T) {
	p := &VOTableParser{Mappings: SimbadMappings()}
	records, err := p.Parse([]byte(simbadVotable))
	require.NoError(t, err)
	require.Len(t, records, 2)

	m31 := records[0]
	assert.Equal(t, "M 31", m31.Identifier)
	assert.InDelta(t, 160.2686, m31.Coordinates.RA, 1e-3)
	assert.InDelta(t, 41.2692, m31.Coordinates.Dec, 1e-3)
	assert.InDelta(t, 3.44, m31.VisualMagnitude, 1e-9)
	assert.Equal(t, "And", m31.ConstellationEn)

	m32 := records[1]
	assert.InDelta(t, 10.6736, m32.Coordinates.RA, 1e-9)
	assert.InDelta(t, 8.08, m32.VisualMagnitude, 1e-9, "band letter should be stripped")
}

func TestVOTableSkipsRowsMissingIdentifier(t *testing.T) {
	doc := `<VOTABLE><RESOURCE><TABLE>
      <FIELD name="main_id"/><FIELD name="RA_ICRS_Angle_alpha"/><FIELD name="DEC_ICRS_Angle_delta"/>
      <DATA><TABLEDATA>
        <TR><TD></TD><TD>10.0</TD><TD>20.0</TD></TR>
      </TABLEDATA></DATA>
    </TABLE></RESOURCE></VOTABLE>`
	p := &VOTableParser{}
	records, err := p.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestVOTableParseEphemeris(t *testing.T) {
	doc := `<VOTABLE><RESOURCE><TABLE>
      <FIELD name="RA"/><FIELD name="DEC"/><FIELD name="Delta"/><FIELD name="Mag"/>
      <DATA><TABLEDATA>
        <TR><TD>120.5</TD><TD>-10.25</TD><TD>1.42</TD><TD>-2.1</TD></TR>
      </TABLEDATA></DATA>
    </TABLE></RESOURCE></VOTABLE>`
	p := &VOTableParser{}
	points, err := p.ParseEphemeris([]byte(doc))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 120.5, points[0].RA, 1e-9)
	assert.InDelta(t, 1.42, points[0].DistanceAU, 1e-9)
	assert.InDelta(t, -2.1, points[0].Magnitude, 1e-9)
}

func TestVOTableRejectsMalformedXML(t *testing.T) {
	p := &VOTableParser{}
	_, err := p.Parse([]byte("not xml"))
	assert.Error(t, err)
}
