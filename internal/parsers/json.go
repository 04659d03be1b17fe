package parsers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/99souls/astrofed/internal/model"
)

// ObjectFunc extracts one CelestialRecord from a decoded JSON object.
type ObjectFunc func(obj map[string]any) model.CelestialRecord

// EphemerisFunc extracts one EphemerisPoint from a decoded JSON object.
type EphemerisFunc func(obj map[string]any) model.EphemerisPoint

// JSONParser decodes generic or site-specific JSON responses. ObjectsPath
// is a dot-separated path to the array (or single object) of results;
// "$" means the document root is that array.
type JSONParser struct {
	ObjectsPath     string
	ObjectParser    ObjectFunc
	EphemerisParser EphemerisFunc
}

// NewJSONParser returns a parser using the default heuristic extractors.
func NewJSONParser() *JSONParser {
	return &JSONParser{
		ObjectsPath:     "data",
		ObjectParser:    DefaultObjectParser,
		EphemerisParser: DefaultEphemerisParser,
	}
}

func getString(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

func getDouble(obj map[string]any, key string) (float64, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func getByPath(doc any, path string) any {
	current := doc
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// DefaultObjectParser tries the common field names used across the
// providers: name/id/source_id, ra/dec, mag/magnitude/V, type/otype/
// morphology, constellation/const, major_axis/minor_axis/position_angle.
func DefaultObjectParser(obj map[string]any) model.CelestialRecord {
	var rec model.CelestialRecord
	rec.Identifier = getString(obj, "name")
	if rec.Identifier == "" {
		rec.Identifier = getString(obj, "id")
	}
	if rec.Identifier == "" {
		rec.Identifier = getString(obj, "source_id")
	}

	ra, haveRA := getDouble(obj, "ra")
	dec, haveDec := getDouble(obj, "dec")
	if haveRA && haveDec {
		rec.Coordinates = model.Coordinates{RA: ra, Dec: dec}
	}

	if mag, ok := getDouble(obj, "mag"); ok {
		rec.VisualMagnitude = mag
	}
	if mag, ok := getDouble(obj, "magnitude"); ok {
		rec.VisualMagnitude = mag
	}
	if mag, ok := getDouble(obj, "V"); ok {
		rec.VisualMagnitude = mag
	}

	rec.ObjectType = getString(obj, "type")
	if rec.ObjectType == "" {
		rec.ObjectType = getString(obj, "otype")
	}
	if rec.ObjectType == "" {
		rec.ObjectType = getString(obj, "morphology")
	}

	rec.ConstellationEn = getString(obj, "constellation")
	if rec.ConstellationEn == "" {
		rec.ConstellationEn = getString(obj, "const")
	}

	if v, ok := getDouble(obj, "major_axis"); ok {
		rec.MajorAxis = v
	}
	if v, ok := getDouble(obj, "minor_axis"); ok {
		rec.MinorAxis = v
	}
	if v, ok := getDouble(obj, "position_angle"); ok {
		rec.PositionAngle = v
	}
	rec.BriefDescription = getString(obj, "description")
	return rec
}

// DefaultEphemerisParser extracts a point from the common field names.
func DefaultEphemerisParser(obj map[string]any) model.EphemerisPoint {
	var pt model.EphemerisPoint
	if ra, ok := getDouble(obj, "ra"); ok {
		pt.RA = ra
	}
	if dec, ok := getDouble(obj, "dec"); ok {
		pt.Dec = dec
	}
	if d, ok := getDouble(obj, "distance"); ok {
		pt.DistanceAU = d
	}
	if d, ok := getDouble(obj, "delta"); ok {
		pt.DistanceAU = d
	}
	if mag, ok := getDouble(obj, "magnitude"); ok {
		pt.Magnitude = mag
	}
	if e, ok := getDouble(obj, "elongation"); ok {
		pt.SolarElongation = e
	}
	if p, ok := getDouble(obj, "phase"); ok {
		pt.PhaseAngle = p
	}
	return pt
}

// NEDParser matches NED's nested Preferred.Coordinates shape.
func NEDParser(obj map[string]any) model.CelestialRecord {
	var rec model.CelestialRecord
	rec.Identifier = getString(obj, "Name")

	var ra, dec float64
	haveRA, haveDec := false, false
	if pref, ok := obj["Preferred"].(map[string]any); ok {
		if coords, ok := pref["Coordinates"].(map[string]any); ok {
			if v, ok := getDouble(coords, "RA_deg"); ok {
				ra, haveRA = v, true
			}
			if v, ok := getDouble(coords, "DEC_deg"); ok {
				dec, haveDec = v, true
			}
		}
	}
	if !haveRA {
		if v, ok := getDouble(obj, "RA"); ok {
			ra, haveRA = v, true
		}
	}
	if !haveDec {
		if v, ok := getDouble(obj, "DEC"); ok {
			dec, haveDec = v, true
		}
	}
	if haveRA && haveDec {
		rec.Coordinates = model.Coordinates{RA: ra, Dec: dec}
	}
	rec.ObjectType = getString(obj, "Type")
	if mag, ok := getDouble(obj, "Mag_V"); ok {
		rec.VisualMagnitude = mag
	}
	rec.BriefDescription = getString(obj, "Description")
	return rec
}

// JPLHorizonsEphemerisParser matches JPL Horizons' flat RA/DEC/delta/mag
// response shape.
func JPLHorizonsEphemerisParser(obj map[string]any) model.EphemerisPoint {
	var pt model.EphemerisPoint
	if v, ok := getDouble(obj, "RA"); ok {
		pt.RA = v
	}
	if v, ok := getDouble(obj, "DEC"); ok {
		pt.Dec = v
	}
	if v, ok := getDouble(obj, "delta"); ok {
		pt.DistanceAU = v
	}
	if v, ok := getDouble(obj, "mag"); ok {
		pt.Magnitude = v
	}
	if v, ok := getDouble(obj, "elong"); ok {
		pt.SolarElongation = v
	}
	if v, ok := getDouble(obj, "phase"); ok {
		pt.PhaseAngle = v
	}
	return pt
}

// GaiaParser matches Gaia DR3's flat source_id/ra/dec/phot_*_mean_mag shape.
// Parallax is converted to a parsecs distance estimate and stored in
// SurfaceBrightness, the same field reuse the original parser makes for
// want of a dedicated distance slot on the shared record type.
func GaiaParser(obj map[string]any) model.CelestialRecord {
	var rec model.CelestialRecord
	rec.Identifier = getString(obj, "source_id")
	ra, haveRA := getDouble(obj, "ra")
	dec, haveDec := getDouble(obj, "dec")
	if haveRA && haveDec {
		rec.Coordinates = model.Coordinates{RA: ra, Dec: dec}
	}
	if mag, ok := getDouble(obj, "phot_g_mean_mag"); ok {
		rec.VisualMagnitude = mag
	}
	if mag, ok := getDouble(obj, "phot_bp_mean_mag"); ok {
		rec.PhotographicMagnitude = mag
	}
	if parallax, ok := getDouble(obj, "parallax"); ok && parallax > 0 {
		rec.SurfaceBrightness = 1000.0 / parallax
	}
	return rec
}

// Parse decodes content, locates the objects array at p.ObjectsPath
// (p.ObjectsPath == "$" means the document root is the array), and runs
// p.ObjectParser over every element. A bare object at that path is
// treated as a single-element result set.
func (p *JSONParser) Parse(content []byte) ([]model.CelestialRecord, error) {
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &model.ParseError{Message: "invalid JSON: " + err.Error()}
	}
	target := doc
	if p.ObjectsPath != "$" && p.ObjectsPath != "" {
		target = getByPath(doc, p.ObjectsPath)
	}
	parser := p.ObjectParser
	if parser == nil {
		parser = DefaultObjectParser
	}

	switch t := target.(type) {
	case []any:
		records := make([]model.CelestialRecord, 0, len(t))
		for _, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, parser(obj))
		}
		return records, nil
	case map[string]any:
		return []model.CelestialRecord{parser(t)}, nil
	default:
		return nil, &model.ParseError{Message: "objects not found at path " + p.ObjectsPath}
	}
}

// ParseEphemeris decodes content and locates its ephemeris array, trying
// "result" then "data" then a bare array or object at the root.
func (p *JSONParser) ParseEphemeris(content []byte) ([]model.EphemerisPoint, error) {
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &model.ParseError{Message: "invalid JSON: " + err.Error()}
	}
	parser := p.EphemerisParser
	if parser == nil {
		parser = DefaultEphemerisParser
	}

	var target any
	if m, ok := doc.(map[string]any); ok {
		if arr, ok := m["result"].([]any); ok {
			target = arr
		} else if arr, ok := m["data"].([]any); ok {
			target = arr
		} else {
			target = m
		}
	} else {
		target = doc
	}

	switch t := target.(type) {
	case []any:
		points := make([]model.EphemerisPoint, 0, len(t))
		for _, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			points = append(points, parser(obj))
		}
		return points, nil
	case map[string]any:
		return []model.EphemerisPoint{parser(t)}, nil
	default:
		return nil, &model.ParseError{Message: "ephemeris data not found in expected format"}
	}
}
