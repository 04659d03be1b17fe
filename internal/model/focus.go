package model

import "time"

// FocusSample is one averaged quality measurement at a focuser position.
type FocusSample struct {
	Position     int           `json:"position"`
	HFR          float64       `json:"hfr"`
	FWHM         float64       `json:"fwhm"`
	StarCount    int           `json:"star_count"`
	Peak         float64       `json:"peak"`
	Background   float64       `json:"background"`
	Eccentricity float64       `json:"eccentricity"`
	Temperature  float64       `json:"temperature"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Reliable reports whether the sample meets the minimum quality bar: enough
// detected stars, a sane HFR and FWHM, low eccentricity, and (checked by the
// caller against frame geometry) neither saturated nor near the edge.
func (s FocusSample) Reliable(minStars int, hfrMax, eccentricityMax float64) bool {
	if s.StarCount < minStars {
		return false
	}
	if s.HFR <= 0 || s.HFR > hfrMax {
		return false
	}
	if s.FWHM <= 0 {
		return false
	}
	if s.Eccentricity > eccentricityMax {
		return false
	}
	return true
}

// CurveAlgorithm selects the curve-fitting method used by the analyser.
type CurveAlgorithm int

const (
	AlgoSimple CurveAlgorithm = iota
	AlgoVCurve
	AlgoHyperbolic
	AlgoPolynomial
)

func (a CurveAlgorithm) String() string {
	switch a {
	case AlgoVCurve:
		return "vcurve"
	case AlgoHyperbolic:
		return "hyperbolic"
	case AlgoPolynomial:
		return "polynomial"
	default:
		return "simple"
	}
}

// FocusCurve is the set of samples gathered during one focus run plus the
// analyser's verdict.
type FocusCurve struct {
	Samples      []FocusSample
	BestPosition int
	Confidence   float64
	Algorithm    CurveAlgorithm
	Valid        bool
	Reason       string // populated when Valid is false
}

// FocusMode bundles the default (exposure, coarse step, point count) used
// by the curve builder when the caller does not override them (§4.9).
type FocusMode int

const (
	ModeFull FocusMode = iota
	ModeQuick
	ModeFine
	ModeStarless
	ModeHighPrecision
)

type ModeDefaults struct {
	Exposure   time.Duration
	CoarseStep int
	Points     int
}

func (m FocusMode) Defaults() ModeDefaults {
	switch m {
	case ModeQuick:
		return ModeDefaults{Exposure: 1 * time.Second, CoarseStep: 150, Points: 15}
	case ModeFine:
		return ModeDefaults{Exposure: 2 * time.Second, CoarseStep: 30, Points: 10}
	case ModeStarless:
		return ModeDefaults{Exposure: 500 * time.Millisecond, CoarseStep: 200, Points: 20}
	case ModeHighPrecision:
		return ModeDefaults{Exposure: 3 * time.Second, CoarseStep: 50, Points: 15}
	default: // ModeFull
		return ModeDefaults{Exposure: 2 * time.Second, CoarseStep: 100, Points: 25}
	}
}

// BacklashMeasurement is the per-focuser hysteresis measurement result.
type BacklashMeasurement struct {
	InwardSteps  int
	OutwardSteps int
	Confidence   float64
	DataPoints   int
	Method       string
	Valid        bool
}

// Direction is the last committed move direction used by the backlash
// compensator to decide whether an overshoot is required.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionInward
	DirectionOutward
)

// TemperatureSample is one reading in the compensator's bounded history ring.
type TemperatureSample struct {
	Instant     time.Time
	Temperature float64
	Position    int
}
