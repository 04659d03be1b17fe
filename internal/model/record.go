package model

import "time"

// CelestialRecord is a catalogue object as returned by a provider, flowing
// read-only through cache, merger, and caller. Zero is "not reported" for
// every numeric field unless documented otherwise.
type CelestialRecord struct {
	Identifier    string   `json:"identifier"`
	Messier       string   `json:"messier,omitempty"`
	NGC           string   `json:"ngc,omitempty"`
	IC            string   `json:"ic,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	ExtensionName string   `json:"extension_name,omitempty"`
	Component     string   `json:"component,omitempty"`
	AmateurRank   string   `json:"amateur_rank,omitempty"`

	Coordinates Coordinates `json:"coordinates"`

	ObjectType    string `json:"object_type,omitempty"`
	DuplicateType string `json:"duplicate_type,omitempty"`
	Morphology    string `json:"morphology,omitempty"`

	ConstellationEn string `json:"constellation_en,omitempty"`
	ConstellationCn string `json:"constellation_cn,omitempty"`

	VisualMagnitude      float64 `json:"visual_magnitude,omitempty"`
	PhotographicMagnitude float64 `json:"photographic_magnitude,omitempty"`
	ColorIndex           float64 `json:"color_index,omitempty"`
	SurfaceBrightness    float64 `json:"surface_brightness,omitempty"`

	MajorAxis     float64 `json:"major_axis,omitempty"`
	MinorAxis     float64 `json:"minor_axis,omitempty"`
	PositionAngle float64 `json:"position_angle,omitempty"`

	DetailedDescription string `json:"detailed_description,omitempty"`
	BriefDescription    string `json:"brief_description,omitempty"`

	LastUpdate time.Time `json:"last_update,omitempty"`
	// RelevanceScore is an optional per-result ranking score; zero means
	// "not scored". The scored merge variant (§4.6) ranks by Scored.Score
	// and does not read this field.
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// NonEmptyFieldCount counts fields that are non-empty/non-zero, used by the
// merger's "most_complete" strategy.
func (r CelestialRecord) NonEmptyFieldCount() int {
	n := 0
	strs := []string{
		r.Identifier, r.Messier, r.NGC, r.IC, r.ExtensionName, r.Component,
		r.AmateurRank, r.ObjectType, r.DuplicateType, r.Morphology,
		r.ConstellationEn, r.ConstellationCn, r.DetailedDescription, r.BriefDescription,
	}
	for _, s := range strs {
		if s != "" {
			n++
		}
	}
	if len(r.Aliases) > 0 {
		n++
	}
	nums := []float64{
		r.VisualMagnitude, r.PhotographicMagnitude, r.ColorIndex, r.SurfaceBrightness,
		r.MajorAxis, r.MinorAxis, r.PositionAngle,
	}
	for _, v := range nums {
		if v != 0 {
			n++
		}
	}
	if r.Coordinates.Valid() && (r.Coordinates.RA != 0 || r.Coordinates.Dec != 0) {
		n++
	}
	if !r.LastUpdate.IsZero() {
		n++
	}
	return n
}

// EphemerisPoint is one time-indexed sample of a solar-system body's
// position and derived quantities.
type EphemerisPoint struct {
	Instant           time.Time `json:"instant"`
	RA                float64   `json:"ra"`
	Dec               float64   `json:"dec"`
	DistanceAU        float64   `json:"distance_au"`
	Magnitude         float64   `json:"magnitude"`
	SolarElongation   float64   `json:"solar_elongation"`
	PhaseAngle        float64   `json:"phase_angle"`
	Azimuth           float64   `json:"azimuth,omitempty"`
	Altitude          float64   `json:"altitude,omitempty"`
	HasObserverAngles bool      `json:"has_observer_angles,omitempty"`
}

// MatchQuality ranks how a merged record was matched; higher values are
// better matches, with MatchExact the best.
type MatchQuality int

const (
	MatchNone MatchQuality = iota
	MatchFilter
	MatchFuzzy
	MatchCoord
	MatchAlias
	MatchExact
)

// QueryResult is what a provider or the search service returns for a query.
type QueryResult struct {
	Records     []CelestialRecord  `json:"records"`
	Ephemeris   []EphemerisPoint   `json:"ephemeris,omitempty"`
	Provider    string             `json:"provider"`
	FromCache   bool               `json:"from_cache"`
	QueryTime   time.Duration      `json:"query_time"`
	MatchQuality MatchQuality      `json:"match_quality,omitempty"`
}
