// Package merger implements the result fusion of spec §4.6: deduping a
// local and an online record set, field-merging duplicates according to
// a configurable strategy, and a scored variant that ranks by relevance.
// Grounded on original_source/src/target/online/merger/result_merger.cpp
// and result_merger.hpp.
package merger

import (
	"sort"
	"strings"

	"github.com/99souls/astrofed/internal/model"
)

// Strategy selects which record becomes the base when two are merged.
type Strategy int

const (
	PreferLocal Strategy = iota
	PreferOnline
	MostComplete
	MostRecent
	Union
)

// Config controls dedup gates, merge strategy, and scoring bonuses.
type Config struct {
	Strategy Strategy

	RemoveDuplicates      bool
	CoordinateMatchRadius float64 // degrees, ~0.001 = 3.6 arcsec
	MatchByName           bool
	MatchByCoordinates    bool

	LocalScoreBonus  float64
	OnlineScoreBonus float64

	MaxResults int
	MinScore   float64
}

// Defaults returns the merge configuration spec §4.6 assumes absent
// explicit overrides.
func Defaults() Config {
	return Config{
		Strategy:              PreferLocal,
		RemoveDuplicates:      true,
		CoordinateMatchRadius: 0.001,
		MatchByName:           true,
		MatchByCoordinates:    true,
		LocalScoreBonus:       0.1,
		OnlineScoreBonus:      0.05,
		MaxResults:            100,
	}
}

// Stats records what the last Merge call did.
type Stats struct {
	LocalCount        int
	OnlineCount       int
	MergedCount       int
	DuplicatesRemoved int
	ConflictsResolved int
}

// Merger fuses local and online record sets per its Config.
type Merger struct {
	Config Config
	Stats  Stats
}

// New constructs a Merger with cfg.
func New(cfg Config) *Merger { return &Merger{Config: cfg} }

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// IsDuplicate reports whether a and b should be collapsed into one
// record, per the name and/or coordinate gates (either may be disabled).
func (m *Merger) IsDuplicate(a, b model.CelestialRecord) bool {
	if m.Config.MatchByName {
		if a.Identifier != "" && b.Identifier != "" && normalize(a.Identifier) == normalize(b.Identifier) {
			return true
		}
		if a.Messier != "" && b.Messier != "" && normalize(a.Messier) == normalize(b.Messier) {
			return true
		}
		if aliasMatch(a.Aliases, b.Aliases) {
			return true
		}
	}
	if m.Config.MatchByCoordinates {
		if a.Coordinates.Valid() && b.Coordinates.Valid() &&
			(a.Coordinates.RA != 0 || a.Coordinates.Dec != 0) && (b.Coordinates.RA != 0 || b.Coordinates.Dec != 0) {
			if a.Coordinates.AngularDistance(b.Coordinates) <= m.Config.CoordinateMatchRadius {
				return true
			}
		}
	}
	return false
}

func aliasMatch(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, alias := range a {
		seen[normalize(alias)] = struct{}{}
	}
	for _, alias := range b {
		if _, ok := seen[normalize(alias)]; ok {
			return true
		}
	}
	return false
}

// MergeRecords combines primary and secondary into one record per the
// configured strategy: the base record's empty fields are filled from
// the other record.
func (m *Merger) MergeRecords(primary, secondary model.CelestialRecord) model.CelestialRecord {
	base, source := primary, secondary
	switch m.Config.Strategy {
	case PreferOnline:
		base, source = secondary, primary
	case MostComplete:
		if secondary.NonEmptyFieldCount() > primary.NonEmptyFieldCount() {
			base, source = secondary, primary
		}
	case MostRecent:
		if !secondary.LastUpdate.IsZero() && secondary.LastUpdate.After(primary.LastUpdate) {
			base, source = secondary, primary
		}
	}

	result := base
	if result.Identifier == "" {
		result.Identifier = source.Identifier
	}
	if result.Messier == "" {
		result.Messier = source.Messier
	}
	if result.NGC == "" {
		result.NGC = source.NGC
	}
	if result.IC == "" {
		result.IC = source.IC
	}
	if result.ExtensionName == "" {
		result.ExtensionName = source.ExtensionName
	}
	if result.Component == "" {
		result.Component = source.Component
	}
	if result.AmateurRank == "" {
		result.AmateurRank = source.AmateurRank
	}
	if result.ObjectType == "" {
		result.ObjectType = source.ObjectType
	}
	if result.DuplicateType == "" {
		result.DuplicateType = source.DuplicateType
	}
	if result.Morphology == "" {
		result.Morphology = source.Morphology
	}
	if result.ConstellationEn == "" {
		result.ConstellationEn = source.ConstellationEn
	}
	if result.ConstellationCn == "" {
		result.ConstellationCn = source.ConstellationCn
	}
	if !result.Coordinates.Valid() || (result.Coordinates.RA == 0 && result.Coordinates.Dec == 0) {
		if source.Coordinates.Valid() {
			result.Coordinates = source.Coordinates
		}
	}
	if result.VisualMagnitude == 0 {
		result.VisualMagnitude = source.VisualMagnitude
	}
	if result.PhotographicMagnitude == 0 {
		result.PhotographicMagnitude = source.PhotographicMagnitude
	}
	if result.ColorIndex == 0 {
		result.ColorIndex = source.ColorIndex
	}
	if result.SurfaceBrightness == 0 {
		result.SurfaceBrightness = source.SurfaceBrightness
	}
	if result.MajorAxis == 0 {
		result.MajorAxis = source.MajorAxis
	}
	if result.MinorAxis == 0 {
		result.MinorAxis = source.MinorAxis
	}
	if result.PositionAngle == 0 {
		result.PositionAngle = source.PositionAngle
	}
	if result.DetailedDescription == "" {
		result.DetailedDescription = source.DetailedDescription
	}
	if result.BriefDescription == "" {
		result.BriefDescription = source.BriefDescription
	}
	if len(result.Aliases) == 0 {
		result.Aliases = source.Aliases
	}
	return result
}

// Merge fuses local and online record sets, deduping per IsDuplicate and
// field-merging matches per Config.Strategy. When RemoveDuplicates is
// false, or Strategy is Union, every record is emitted verbatim.
func (m *Merger) Merge(local, online []model.CelestialRecord) []model.CelestialRecord {
	m.Stats = Stats{LocalCount: len(local), OnlineCount: len(online)}

	if !m.Config.RemoveDuplicates || m.Config.Strategy == Union {
		merged := make([]model.CelestialRecord, 0, len(local)+len(online))
		merged = append(merged, local...)
		merged = append(merged, online...)
		m.Stats.MergedCount = len(merged)
		return merged
	}

	consumed := make([]bool, len(online))
	merged := make([]model.CelestialRecord, 0, len(local)+len(online))
	for _, l := range local {
		matched := false
		for i, o := range online {
			if consumed[i] {
				continue
			}
			if m.IsDuplicate(l, o) {
				merged = append(merged, m.MergeRecords(l, o))
				consumed[i] = true
				matched = true
				m.Stats.DuplicatesRemoved++
				m.Stats.ConflictsResolved++
				break
			}
		}
		if !matched {
			merged = append(merged, l)
		}
	}
	for i, o := range online {
		if !consumed[i] {
			merged = append(merged, o)
		}
	}
	m.Stats.MergedCount = len(merged)
	if m.Config.MaxResults > 0 && len(merged) > m.Config.MaxResults {
		merged = merged[:m.Config.MaxResults]
	}
	return merged
}

// Scored pairs a record with its ranking score and match quality.
type Scored struct {
	Record  model.CelestialRecord
	Score   float64
	Quality model.MatchQuality
}

// MergeScored combines local results (each carrying its relevance score
// in Scored.Score) with online-only results, applying the
// local/online score bonuses, then sorts by score desc, then match
// quality desc, then identifier as an edit-distance-free tiebreak.
func (m *Merger) MergeScored(local []Scored, online []model.CelestialRecord, baseOnlineScore float64) []Scored {
	consumed := make([]bool, len(online))
	out := make([]Scored, 0, len(local)+len(online))

	for _, l := range local {
		score := l.Score + m.Config.LocalScoreBonus
		quality := l.Quality
		rec := l.Record
		for i, o := range online {
			if consumed[i] {
				continue
			}
			if m.IsDuplicate(l.Record, o) {
				rec = m.MergeRecords(l.Record, o)
				consumed[i] = true
				if quality < model.MatchAlias {
					quality = model.MatchAlias
				}
				break
			}
		}
		out = append(out, Scored{Record: rec, Score: score, Quality: quality})
	}
	for i, o := range online {
		if consumed[i] {
			continue
		}
		out = append(out, Scored{Record: o, Score: baseOnlineScore + m.Config.OnlineScoreBonus, Quality: model.MatchFuzzy})
	}

	filtered := out[:0]
	for _, s := range out {
		if s.Score >= m.Config.MinScore {
			filtered = append(filtered, s)
		}
	}
	out = filtered

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Quality != out[j].Quality {
			return out[i].Quality > out[j].Quality
		}
		return out[i].Record.Identifier < out[j].Record.Identifier
	})

	if m.Config.MaxResults > 0 && len(out) > m.Config.MaxResults {
		out = out[:m.Config.MaxResults]
	}
	return out
}
