package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/astrofed/internal/model"
)

func TestIsDuplicateByName(t *testing.T) {
	m := New(Defaults())
	a := model.CelestialRecord{Identifier: "M 31"}
	b := model.CelestialRecord{Identifier: "m31"}
	assert.True(t, m.IsDuplicate(a, b))
}

func TestIsDuplicateByCoordinate(t *testing.T) {
	cfg := Defaults()
	cfg.MatchByName = false
	m := New(cfg)
	a := model.CelestialRecord{Coordinates: model.Coordinates{RA: 10.6847, Dec: 41.2689}}
	b := model.CelestialRecord{Coordinates: model.Coordinates{RA: 10.6850, Dec: 41.2690}}
	assert.True(t, m.IsDuplicate(a, b))
}

func TestMergeMostCompletePrefersFullerRecord(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy = MostComplete
	m := New(cfg)

	local := model.CelestialRecord{Identifier: "M 31"}
	online := model.CelestialRecord{
		Identifier: "M 31", ObjectType: "G", VisualMagnitude: 3.44, ConstellationEn: "And",
	}
	merged := m.Merge([]model.CelestialRecord{local}, []model.CelestialRecord{online})
	require.Len(t, merged, 1)
	assert.Equal(t, "G", merged[0].ObjectType)
	assert.InDelta(t, 3.44, merged[0].VisualMagnitude, 1e-9)
	assert.Equal(t, 1, m.Stats.DuplicatesRemoved)
}

func TestMergePreferLocalFillsMissingFromOnline(t *testing.T) {
	m := New(Defaults())
	local := model.CelestialRecord{Identifier: "M 31", ObjectType: "G"}
	online := model.CelestialRecord{Identifier: "M 31", ConstellationEn: "And"}
	merged := m.Merge([]model.CelestialRecord{local}, []model.CelestialRecord{online})
	require.Len(t, merged, 1)
	assert.Equal(t, "G", merged[0].ObjectType, "prefer_local keeps the local field")
	assert.Equal(t, "And", merged[0].ConstellationEn, "empty local field filled from online")
}

func TestMergeUnionKeepsBothVerbatim(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy = Union
	m := New(cfg)
	local := model.CelestialRecord{Identifier: "M 31"}
	online := model.CelestialRecord{Identifier: "M 31"}
	merged := m.Merge([]model.CelestialRecord{local}, []model.CelestialRecord{online})
	assert.Len(t, merged, 2)
}

func TestMergeScoredRanksHighestScoreFirst(t *testing.T) {
	m := New(Defaults())
	local := []Scored{{Record: model.CelestialRecord{Identifier: "A"}, Score: 0.9, Quality: model.MatchExact}}
	online := []model.CelestialRecord{{Identifier: "B"}, {Identifier: "C"}}
	result := m.MergeScored(local, online, 0.5)
	require.Len(t, result, 3)
	assert.Equal(t, "A", result[0].Record.Identifier)
}

func TestMergeScoredMinScoreFiltersLowRanked(t *testing.T) {
	cfg := Defaults()
	cfg.MinScore = 0.6
	m := New(cfg)
	online := []model.CelestialRecord{{Identifier: "low-score-only"}}
	result := m.MergeScored(nil, online, 0.1)
	assert.Empty(t, result)
}
