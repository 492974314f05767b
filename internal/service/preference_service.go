package service

import (
	"context"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"

	"github.com/sirupsen/logrus"
)

// Invalidator is told which household views went stale after a write.
type Invalidator interface {
	Invalidate(householdID string, views ...string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(string, ...string) {}

// AddResult reports which normalized keys were inserted and which already existed.
type AddResult struct {
	Added   []string
	Skipped []string
}

// PreferenceService is the only writer of household filter limits.
type PreferenceService struct {
	storage     storage.Storage
	invalidator Invalidator
	log         logrus.FieldLogger
}

func NewPreferenceService(store storage.Storage, invalidator Invalidator, log logrus.FieldLogger) *PreferenceService {
	if invalidator == nil {
		invalidator = nopInvalidator{}
	}
	return &PreferenceService{storage: store, invalidator: invalidator, log: log}
}

func (s *PreferenceService) ListFilters(ctx context.Context, householdID string) ([]model.Filter, error) {
	filters, err := s.storage.ListFilters(ctx, householdID)
	if err != nil {
		if apperr.Is(err, apperr.KindMissingSchema) {
			return []model.Filter{}, nil
		}
		return nil, err
	}
	return filters, nil
}

// UpdateFilter upserts one limit. A hard-no always stores intensity 0.
func (s *PreferenceService) UpdateFilter(ctx context.Context, householdID, labelKey string, maxIntensity float64, hardNo bool) (model.Filter, error) {
	const op = "preferences.UpdateFilter"

	key := model.NormalizeLabelKey(labelKey)
	if key == "" {
		return model.Filter{}, apperr.Validation(op, "Label is required")
	}

	filter := model.Filter{LabelKey: key, HardNo: hardNo}
	if !hardNo {
		filter.MaxIntensity = model.ClampIntensity(maxIntensity)
	}

	if err := s.storage.EnsureLabels(ctx, []model.FilterDefinition{{LabelKey: key, Label: model.FormatLabel(key)}}); err != nil {
		return model.Filter{}, s.persistence(op, err)
	}
	if err := s.storage.UpsertFilter(ctx, householdID, filter); err != nil {
		return model.Filter{}, s.persistence(op, err)
	}

	s.log.WithFields(logrus.Fields{
		"household_id":  householdID,
		"label_key":     key,
		"max_intensity": filter.MaxIntensity,
		"hard_no":       filter.HardNo,
	}).Debug("filter updated")

	s.invalidator.Invalidate(householdID, model.ViewPreferences, model.ViewHome)
	return filter, nil
}

// AddFilters inserts new limits for labels the household does not have yet.
func (s *PreferenceService) AddFilters(ctx context.Context, householdID string, labels []string) (*AddResult, error) {
	const op = "preferences.AddFilters"

	type candidate struct {
		key   string
		label string
	}
	candidates := make([]candidate, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, raw := range labels {
		key := model.NormalizeLabelKey(raw)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, candidate{key: key, label: displayLabel(raw, key)})
	}
	if len(candidates) == 0 {
		return nil, apperr.Validation(op, "Add at least one filter")
	}

	existing, err := s.ListFilters(ctx, householdID)
	if err != nil {
		return nil, s.persistence(op, err)
	}
	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		have[f.LabelKey] = true
	}

	result := &AddResult{Added: []string{}, Skipped: []string{}}
	definitions := make([]model.FilterDefinition, 0, len(candidates))
	filters := make([]model.Filter, 0, len(candidates))
	for _, c := range candidates {
		if have[c.key] {
			result.Skipped = append(result.Skipped, c.key)
			continue
		}
		result.Added = append(result.Added, c.key)
		definitions = append(definitions, model.FilterDefinition{LabelKey: c.key, Label: c.label})
		filters = append(filters, model.Filter{LabelKey: c.key, MaxIntensity: model.PresetIntensity(c.key)})
	}
	if len(filters) == 0 {
		return nil, apperr.Conflict(op, "Those filters already exist")
	}

	if err := s.storage.UpsertLabels(ctx, definitions); err != nil {
		return nil, s.persistence(op, err)
	}
	if err := s.storage.InsertFilters(ctx, householdID, filters); err != nil {
		return nil, s.persistence(op, err)
	}

	s.log.WithFields(logrus.Fields{
		"household_id": householdID,
		"added":        result.Added,
		"skipped":      result.Skipped,
	}).Info("filters added")

	s.invalidator.Invalidate(householdID, model.ViewPreferences, model.ViewHome)
	return result, nil
}

// RemoveFilters deletes the named limits. Labels with no row are ignored.
func (s *PreferenceService) RemoveFilters(ctx context.Context, householdID string, labels []string) (int, error) {
	const op = "preferences.RemoveFilters"

	keys := normalizeAll(labels)
	if len(keys) == 0 {
		return 0, apperr.Validation(op, "Select at least one filter to remove")
	}

	removed, err := s.storage.DeleteFilters(ctx, householdID, keys)
	if err != nil {
		return 0, s.persistence(op, err)
	}

	s.log.WithFields(logrus.Fields{
		"household_id": householdID,
		"requested":    keys,
		"removed":      removed,
	}).Info("filters removed")

	s.invalidator.Invalidate(householdID, model.ViewPreferences, model.ViewHome)
	return removed, nil
}

// ResetFilters replaces the household's limits with the presets atomically.
func (s *PreferenceService) ResetFilters(ctx context.Context, householdID string) ([]model.Filter, error) {
	const op = "preferences.ResetFilters"

	if err := s.storage.EnsureLabels(ctx, model.DefaultFilters); err != nil {
		return nil, s.persistence(op, err)
	}
	presets := model.PresetFilters()
	if err := s.storage.ReplaceFilters(ctx, householdID, presets); err != nil {
		return nil, s.persistence(op, err)
	}

	s.log.WithField("household_id", householdID).Info("filters reset to defaults")

	s.invalidator.Invalidate(householdID, model.ViewPreferences, model.ViewHome)
	return presets, nil
}

// persistence reports any store failure on a write path as a Persistence
// error, including a missing table.
func (s *PreferenceService) persistence(op string, err error) error {
	if apperr.Is(err, apperr.KindPersistence) {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("preference write failed")
	return apperr.Persistence(op, err)
}

func displayLabel(raw, key string) string {
	if def, ok := model.FindPreset(key); ok {
		return def.Label
	}
	if label := model.CleanLabel(raw); label != "" {
		return label
	}
	return model.FormatLabel(key)
}

func normalizeAll(labels []string) []string {
	keys := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, raw := range labels {
		key := model.NormalizeLabelKey(raw)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}
