package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabelKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "punctuation and spaces", input: "  Jump Scares!! ", want: "jump_scares"},
		{name: "already normalized", input: "sex_nudity", want: "sex_nudity"},
		{name: "mixed separators", input: "Sex & Nudity", want: "sex_nudity"},
		{name: "leading underscores", input: "__dragons__", want: "dragons"},
		{name: "digits kept", input: "R-Rated 18+", want: "r_rated_18"},
		{name: "only symbols", input: " !!! ", want: ""},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabelKey(tt.input))
		})
	}
}

func TestClampIntensity(t *testing.T) {
	assert.Equal(t, 10, ClampIntensity(13.7))
	assert.Equal(t, 7, ClampIntensity(7))
	assert.Equal(t, 7, ClampIntensity(6.5))
	assert.Equal(t, 1, ClampIntensity(0))
	assert.Equal(t, 1, ClampIntensity(-4))
	assert.Equal(t, DefaultIntensity, ClampIntensity(math.NaN()))
	assert.Equal(t, DefaultIntensity, ClampIntensity(math.Inf(1)))
	assert.Equal(t, 10, ClampIntensity(1e300))
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "Sex & Nudity", FormatLabel("sex_nudity"))
	assert.Equal(t, "Jump Scares", FormatLabel("jump_scares"))
	assert.Equal(t, "Live Action", FormatLabel("live-action"))
}

func TestPresets(t *testing.T) {
	presets := PresetFilters()
	assert.Len(t, presets, 6)
	for _, f := range presets {
		assert.False(t, f.HardNo)
		assert.Contains(t, []int{4, 5}, f.MaxIntensity)
	}
	assert.Equal(t, 4, PresetIntensity("substance"))
	assert.Equal(t, DefaultIntensity, PresetIntensity("dragons"))
}

func TestHouseholdTarget(t *testing.T) {
	hh := &HouseholdContext{HouseholdID: "h1"}
	assert.Equal(t, "h1", hh.Target(""))
	assert.Equal(t, "h1", hh.Target("h1"))
	assert.Equal(t, "h1", hh.Target("someone-else"))
}
