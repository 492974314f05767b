package model

import (
	"math"
	"regexp"
	"strings"
)

// DefaultIntensity is assigned to new filters that have no preset.
const DefaultIntensity = 5

// MaxIntensity is the top of the intensity scale ("no filter").
const MaxIntensity = 10

// Filter is one household content limit.
type Filter struct {
	LabelKey     string `json:"labelKey"`
	MaxIntensity int    `json:"maxIntensity"`
	HardNo       bool   `json:"hardNo"`
}

// FilterDefinition is a preset filter.
type FilterDefinition struct {
	LabelKey         string `json:"labelKey"`
	Label            string `json:"label"`
	DefaultIntensity int    `json:"defaultIntensity"`
}

// DefaultFilters is the baseline a household gets on reset.
var DefaultFilters = []FilterDefinition{
	{LabelKey: "language", Label: "Language", DefaultIntensity: 5},
	{LabelKey: "mature_themes", Label: "Mature Themes", DefaultIntensity: 5},
	{LabelKey: "scary", Label: "Scary", DefaultIntensity: 5},
	{LabelKey: "sex_nudity", Label: "Sex & Nudity", DefaultIntensity: 4},
	{LabelKey: "substance", Label: "Substance", DefaultIntensity: 4},
	{LabelKey: "violence", Label: "Violence", DefaultIntensity: 5},
}

var (
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	segmentRegex    = regexp.MustCompile(`[_\-]+`)
)

// NormalizeLabelKey turns free text into a label key:
// trim, lowercase, collapse non-alphanumeric runs to "_", strip edge underscores.
func NormalizeLabelKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = nonAlnumRegex.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// CleanLabel collapses whitespace in a user-typed label for the dictionary.
func CleanLabel(raw string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(raw), " ")
}

// FindPreset looks a preset up by normalized key.
func FindPreset(labelKey string) (FilterDefinition, bool) {
	key := strings.ToLower(labelKey)
	for _, def := range DefaultFilters {
		if def.LabelKey == key {
			return def, true
		}
	}
	return FilterDefinition{}, false
}

// PresetIntensity returns the preset default for labelKey, or DefaultIntensity.
func PresetIntensity(labelKey string) int {
	if def, ok := FindPreset(labelKey); ok {
		return def.DefaultIntensity
	}
	return DefaultIntensity
}

// FormatLabel renders a label key for display.
func FormatLabel(labelKey string) string {
	if def, ok := FindPreset(labelKey); ok {
		return def.Label
	}
	parts := segmentRegex.Split(labelKey, -1)
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		words = append(words, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(words, " ")
}

// ClampIntensity rounds a client-supplied intensity onto the 1..10 scale.
// Zero is reserved for hard-no filters.
func ClampIntensity(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return DefaultIntensity
	}
	rounded := math.Round(value)
	if rounded < 1 {
		return 1
	}
	if rounded > MaxIntensity {
		return MaxIntensity
	}
	return int(rounded)
}

// PresetFilters returns the default filter set.
func PresetFilters() []Filter {
	out := make([]Filter, 0, len(DefaultFilters))
	for _, def := range DefaultFilters {
		out = append(out, Filter{LabelKey: def.LabelKey, MaxIntensity: def.DefaultIntensity})
	}
	return out
}
