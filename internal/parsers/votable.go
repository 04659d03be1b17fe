// Package parsers implements the two response-parser shapes of spec §4.4:
// IVOA VOTable 1.3 XML and generic/site-specific JSON. Grounded on
// original_source/src/target/online/parser/votable_parser.cpp and
// json_response_parser.cpp for field-mapping semantics, re-expressed with
// Go's encoding/xml and encoding/json decoders instead of hand-rolled
// string scanning — no pack library parses small trusted XML/JSON trees
// better than the standard decoders (see DESIGN.md).
package parsers

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/99souls/astrofed/internal/model"
)

// FieldMapping overrides the default heuristic for one VOTable FIELD name.
type FieldMapping struct {
	VOTableField string
	ModelField   string // one of: identifier, ra, dec, type, vmag, bmag, constellation, major_axis, minor_axis
}

type voTable struct {
	XMLName  xml.Name   `xml:"VOTABLE"`
	Resource []resource `xml:"RESOURCE"`
}

type resource struct {
	Table []voTableTable `xml:"TABLE"`
}

type voTableTable struct {
	Field []field `xml:"FIELD"`
	Data  []data  `xml:"DATA"`
}

type field struct {
	Name string `xml:"name,attr"`
}

type data struct {
	TableData *tableData `xml:"TABLEDATA"`
}

type tableData struct {
	Rows []row `xml:"TR"`
}

type row struct {
	Cells []string `xml:"TD"`
}

// VOTableParser decodes IVOA VOTable 1.3 documents into CelestialRecords.
type VOTableParser struct {
	Mappings []FieldMapping
}

// SimbadMappings returns the field mapping SIMBAD's TAP responses use.
func SimbadMappings() []FieldMapping {
	return []FieldMapping{
		{"main_id", "identifier"},
		{"RA_ICRS_Angle_alpha", "ra"},
		{"DEC_ICRS_Angle_delta", "dec"},
		{"V", "vmag"},
		{"B", "bmag"},
		{"Const", "constellation"},
	}
}

// VizierNGCMappings returns the field mapping VizieR's NGC2000 catalogue uses.
func VizierNGCMappings() []FieldMapping {
	return []FieldMapping{
		{"Name", "identifier"},
		{"RA_ICRS_Angle_alpha", "ra"},
		{"DEC_ICRS_Angle_delta", "dec"},
		{"Morphology", "type"},
		{"V_mag", "vmag"},
		{"Const", "constellation"},
		{"Major_axis", "major_axis"},
		{"Minor_axis", "minor_axis"},
	}
}

func (p *VOTableParser) mappingFor(fieldName string) (string, bool) {
	for _, m := range p.Mappings {
		if m.VOTableField == fieldName {
			return m.ModelField, true
		}
	}
	return "", false
}

// defaultModelField implements the default heuristic of §4.4: match field
// names containing RA/DE/Vmag/Mag/Const/Morphology/Major_axis/Minor_axis.
func defaultModelField(fieldName string) (string, bool) {
	switch fieldName {
	case "main_id", "name", "Name":
		return "identifier", true
	case "ra", "RA", "RA_ICRS_Angle_alpha":
		return "ra", true
	case "dec", "DEC", "DEC_ICRS_Angle_delta":
		return "dec", true
	case "otype", "Morphology":
		return "type", true
	case "V", "Vmag", "mag":
		return "vmag", true
	case "B", "Bmag":
		return "bmag", true
	case "Const", "Constellation":
		return "constellation", true
	case "Major_axis":
		return "major_axis", true
	case "Minor_axis":
		return "minor_axis", true
	}
	lower := strings.ToLower(fieldName)
	switch {
	case strings.Contains(lower, "ra"):
		return "ra", true
	case strings.Contains(lower, "de"):
		return "dec", true
	case strings.Contains(lower, "vmag") || strings.Contains(lower, "mag"):
		return "vmag", true
	case strings.Contains(lower, "const"):
		return "constellation", true
	case strings.Contains(lower, "morphology"):
		return "type", true
	case strings.Contains(lower, "major_axis"):
		return "major_axis", true
	case strings.Contains(lower, "minor_axis"):
		return "minor_axis", true
	}
	return "", false
}

// Parse decodes the VOTable document in data into CelestialRecords. A
// record is emitted iff identifier is non-empty.
func (p *VOTableParser) Parse(data []byte) ([]model.CelestialRecord, error) {
	var doc voTable
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &model.ParseError{Message: "invalid VOTable XML: " + err.Error()}
	}
	if len(doc.Resource) == 0 {
		return nil, &model.ParseError{Message: "no RESOURCE element found"}
	}
	if len(doc.Resource[0].Table) == 0 {
		return nil, &model.ParseError{Message: "no TABLE element found"}
	}
	table := doc.Resource[0].Table[0]
	names := make([]string, len(table.Field))
	for i, f := range table.Field {
		names[i] = f.Name
	}
	var rows []row
	if len(table.Data) > 0 && table.Data[0].TableData != nil {
		rows = table.Data[0].TableData.Rows
	}

	var records []model.CelestialRecord
	for _, r := range rows {
		rec := p.parseRow(names, r.Cells)
		if rec.Identifier != "" {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (p *VOTableParser) parseRow(names, values []string) model.CelestialRecord {
	var rec model.CelestialRecord
	var ra, dec float64
	haveRA, haveDec := false, false

	for i := 0; i < len(names) && i < len(values); i++ {
		value := strings.TrimSpace(values[i])
		if value == "" {
			continue
		}
		modelField, ok := p.mappingFor(names[i])
		if !ok {
			modelField, ok = defaultModelField(names[i])
		}
		if !ok {
			continue
		}
		switch modelField {
		case "identifier":
			rec.Identifier = value
		case "ra":
			if v, err := parseCoordinateValue(value, true); err == nil {
				ra = v
				haveRA = true
			}
		case "dec":
			if v, err := parseCoordinateValue(value, false); err == nil {
				dec = v
				haveDec = true
			}
		case "type":
			rec.ObjectType = value
		case "vmag":
			if v, err := parseMagnitude(value); err == nil {
				rec.VisualMagnitude = v
			}
		case "bmag":
			if v, err := parseMagnitude(value); err == nil {
				rec.PhotographicMagnitude = v
			}
		case "constellation":
			rec.ConstellationEn = value
		case "major_axis":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				rec.MajorAxis = v
			}
		case "minor_axis":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				rec.MinorAxis = v
			}
		}
	}
	if haveRA && haveDec {
		rec.Coordinates = model.Coordinates{RA: ra, Dec: dec}
	}
	return rec
}

// ParseEphemeris decodes a VOTable ephemeris response into EphemerisPoints
// using the same row/field shape as Parse.
func (p *VOTableParser) ParseEphemeris(data []byte) ([]model.EphemerisPoint, error) {
	var doc voTable
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &model.ParseError{Message: "invalid VOTable XML: " + err.Error()}
	}
	if len(doc.Resource) == 0 || len(doc.Resource[0].Table) == 0 {
		return nil, &model.ParseError{Message: "no TABLE element found"}
	}
	table := doc.Resource[0].Table[0]
	names := make([]string, len(table.Field))
	for i, f := range table.Field {
		names[i] = f.Name
	}
	var rows []row
	if len(table.Data) > 0 && table.Data[0].TableData != nil {
		rows = table.Data[0].TableData.Rows
	}
	points := make([]model.EphemerisPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, parseEphemerisRow(names, r.Cells))
	}
	return points, nil
}

func parseEphemerisRow(names, values []string) model.EphemerisPoint {
	var pt model.EphemerisPoint
	for i := 0; i < len(names) && i < len(values); i++ {
		value := strings.TrimSpace(values[i])
		if value == "" {
			continue
		}
		switch names[i] {
		case "RA", "RA_ICRS":
			if v, err := parseCoordinateValue(value, true); err == nil {
				pt.RA = v
			}
		case "DEC", "DEC_ICRS":
			if v, err := parseCoordinateValue(value, false); err == nil {
				pt.Dec = v
			}
		case "Delta", "Distance":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				pt.DistanceAU = v
			}
		case "Mag", "Mag_total":
			if v, err := parseMagnitude(value); err == nil {
				pt.Magnitude = v
			}
		case "Elong", "Elongation":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				pt.SolarElongation = v
			}
		case "Phase", "Phase_Angle":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				pt.PhaseAngle = v
			}
		case "AZ", "Azimuth":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				pt.Azimuth = v
				pt.HasObserverAngles = true
			}
		case "EL", "Altitude":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				pt.Altitude = v
				pt.HasObserverAngles = true
			}
		}
	}
	return pt
}

// parseCoordinateValue accepts either decimal degrees or sexagesimal
// HH:MM:SS.sss / ±DD:MM:SS.sss. hourUnits is only meaningful for the
// sexagesimal form (RA is expressed in hours there).
func parseCoordinateValue(s string, hourUnits bool) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	return model.ParseSexagesimal(s, hourUnits)
}

// parseMagnitude strips a trailing band letter (V, B, R, I, ...) before
// conversion, per §4.4.
func parseMagnitude(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 && isAlpha(s[end-1]) {
		end--
	}
	s = s[:end]
	if s == "" {
		return 0, &model.ParseError{Message: "empty magnitude after stripping band"}
	}
	return strconv.ParseFloat(s, 64)
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
