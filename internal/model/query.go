package model

import (
	"fmt"
	"strings"
	"time"
)

// QueryKind selects which fields of a QueryRequest are meaningful.
type QueryKind int

const (
	ByName QueryKind = iota
	ByCoord
	ByConstellation
	ByCatalog
	Ephemeris
)

func (k QueryKind) String() string {
	switch k {
	case ByName:
		return "by_name"
	case ByCoord:
		return "by_coord"
	case ByConstellation:
		return "by_constellation"
	case ByCatalog:
		return "by_catalog"
	case Ephemeris:
		return "ephemeris"
	default:
		return "unknown"
	}
}

// ObserverLocation is an optional ground-station position used to compute
// azimuth/altitude for ephemeris requests.
type ObserverLocation struct {
	Latitude  float64
	Longitude float64
	Elevation float64 // meters
}

// QueryRequest is a caller-owned description of a search or ephemeris
// lookup. Which fields must be populated depends on Kind.
type QueryRequest struct {
	Kind QueryKind

	Term string

	Coord  Coordinates
	Radius float64 // degrees

	MagnitudeMin, MagnitudeMax float64
	HasMagnitudeBounds         bool

	ObjectType string
	Catalog    string

	Limit int
	Epoch time.Time

	Observer     ObserverLocation
	HasObserver  bool
	StepSize     time.Duration
	StartTime    time.Time
	StopTime     time.Time
}

// Fingerprint builds a stable cache key from the provider name and the
// user-visible parts of the request, rounding numeric fields so that
// near-identical coordinate queries collide (§3 QueryFingerprint).
func Fingerprint(provider string, req QueryRequest) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte('|')
	b.WriteString(req.Kind.String())
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Term)))
	b.WriteByte('|')
	fmt.Fprintf(&b, "%.4f,%.4f", req.Coord.RA, req.Coord.Dec)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%.2f", req.Radius)
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Catalog)))
	b.WriteByte('|')
	if req.HasMagnitudeBounds {
		fmt.Fprintf(&b, "%.2f,%.2f", req.MagnitudeMin, req.MagnitudeMax)
	}
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(req.ObjectType)))
	b.WriteByte('|')
	if req.Kind == Ephemeris {
		fmt.Fprintf(&b, "%d", req.Epoch.Truncate(time.Minute).Unix())
	}
	return b.String()
}
