package optimistic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownFilter   = errors.New("optimistic: no such filter")
	ErrNoSelection     = errors.New("optimistic: no filters selected")
	ErrNoLabels        = errors.New("optimistic: no filter labels given")
	ErrFiltersExisting = errors.New("optimistic: filters already exist")
)

var labelListSeparator = regexp.MustCompile(`[\n,]+`)

// PreferenceAPI is the server side of the preferences panel.
type PreferenceAPI interface {
	ListFilters(ctx context.Context) ([]model.Filter, error)
	UpdateFilter(ctx context.Context, filter model.Filter) error
	AddFilters(ctx context.Context, labels []string) error
	RemoveFilters(ctx context.Context, labels []string) error
	ResetFilters(ctx context.Context) error
}

// FilterSignature fingerprints a filter set independently of its order.
func FilterSignature(filters []model.Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		hardNo := 0
		if f.HardNo {
			hardNo = 1
		}
		parts = append(parts, fmt.Sprintf("%s::%d::%d", f.LabelKey, f.MaxIntensity, hardNo))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// userMessage is implemented by errors whose text is safe to show.
type userMessage interface {
	UserMessage() string
}

// ServerMessage shows the server's own error text, or fallback when the error
// carries none.
func ServerMessage(fallback string) func(error) string {
	return func(err error) string {
		var um userMessage
		if errors.As(err, &um) && um.UserMessage() != "" {
			return um.UserMessage()
		}
		return fallback
	}
}

// Fixed always shows message.
func Fixed(message string) func(error) string {
	return func(error) string { return message }
}

// PreferenceBoard models the household preferences panel.
type PreferenceBoard struct {
	api     PreferenceAPI
	engine  *Engine[model.Filter]
	toaster *Toaster
	log     logrus.FieldLogger

	mu            sync.Mutex
	lastIntensity map[string]int
}

func NewPreferenceBoard(api PreferenceAPI, toaster *Toaster, initial []model.Filter, log logrus.FieldLogger) *PreferenceBoard {
	return &PreferenceBoard{
		api:           api,
		engine:        NewEngine(initial, FilterSignature, toaster),
		toaster:       toaster,
		log:           log,
		lastIntensity: make(map[string]int),
	}
}

// Filters is the set currently shown, optimistic edits included.
func (b *PreferenceBoard) Filters() []model.Filter {
	return b.engine.Local()
}

func (b *PreferenceBoard) Engine() *Engine[model.Filter] {
	return b.engine
}

// SetIntensity moves a slider without saving it.
func (b *PreferenceBoard) SetIntensity(labelKey string, value float64) error {
	intensity := sliderValue(value)
	return b.editFilter(labelKey, func(f model.Filter) model.Filter {
		f.MaxIntensity = intensity
		return f
	})
}

// ToggleHardNo flips the hard-no flag without saving it. Turning it off
// restores the intensity the filter had before it was turned on.
func (b *PreferenceBoard) ToggleHardNo(labelKey string, checked bool) error {
	settled := b.engine.Settled()

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.editFilter(labelKey, func(f model.Filter) model.Filter {
		if checked {
			previous := f.MaxIntensity
			if previous <= 0 {
				previous = model.DefaultIntensity
			}
			b.lastIntensity[labelKey] = previous
			f.HardNo = true
			f.MaxIntensity = 0
			return f
		}

		restored, ok := b.lastIntensity[labelKey]
		if !ok {
			restored = model.DefaultIntensity
			if persisted, found := findFilter(settled, labelKey); found && persisted.MaxIntensity > 0 {
				restored = persisted.MaxIntensity
			}
		}
		delete(b.lastIntensity, labelKey)
		f.HardNo = false
		f.MaxIntensity = model.ClampIntensity(float64(restored))
		return f
	})
}

// Save persists the staged edit of one filter.
func (b *PreferenceBoard) Save(ctx context.Context, labelKey string) error {
	target, ok := findFilter(b.engine.Local(), labelKey)
	if !ok {
		return ErrUnknownFilter
	}

	intent := Intent[model.Filter]{
		Kind:    "update",
		Keys:    []string{labelKey},
		Success: fmt.Sprintf("%s saved", model.FormatLabel(labelKey)),
		Failure: ServerMessage("Unable to save filter"),
	}
	return b.run(ctx, intent, func(ctx context.Context, _ []model.Filter) error {
		return b.api.UpdateFilter(ctx, target)
	})
}

// Add parses a comma or newline separated list and adds the labels the
// household does not have yet.
func (b *PreferenceBoard) Add(ctx context.Context, raw string) error {
	labels := ParseLabelList(raw)
	if len(labels) == 0 {
		b.toastError("Add at least one filter label", ErrNoLabels)
		return ErrNoLabels
	}

	existing := make(map[string]bool)
	for _, f := range b.engine.Local() {
		existing[f.LabelKey] = true
	}

	var fresh []string
	var rows []model.Filter
	for _, label := range labels {
		key := model.NormalizeLabelKey(label)
		if key == "" || existing[key] {
			continue
		}
		existing[key] = true
		fresh = append(fresh, label)
		rows = append(rows, model.Filter{LabelKey: key, MaxIntensity: model.PresetIntensity(key)})
	}
	if len(fresh) == 0 {
		b.toastError("Those filters already exist", ErrFiltersExisting)
		return ErrFiltersExisting
	}

	intent := Intent[model.Filter]{
		Kind: "add",
		Keys: keysOf(rows),
		Next: func(current []model.Filter) []model.Filter {
			return append(current, rows...)
		},
		Success: "Filters added",
		Failure: ServerMessage("Unable to add filters"),
	}
	if err := b.run(ctx, intent, func(ctx context.Context, _ []model.Filter) error {
		return b.api.AddFilters(ctx, fresh)
	}); err != nil {
		return err
	}

	// Pick up the labels the server stored for the new rows.
	if _, err := b.Refresh(ctx); err != nil {
		b.log.WithError(err).Warn("could not refresh filters after add")
	}
	return nil
}

// Remove deletes the selected filters.
func (b *PreferenceBoard) Remove(ctx context.Context, labelKeys []string) error {
	if len(labelKeys) == 0 {
		b.toastError("Choose filters to remove", ErrNoSelection)
		return ErrNoSelection
	}

	selected := make(map[string]bool, len(labelKeys))
	for _, key := range labelKeys {
		selected[key] = true
	}

	intent := Intent[model.Filter]{
		Kind: "remove",
		Keys: labelKeys,
		Next: func(current []model.Filter) []model.Filter {
			kept := current[:0]
			for _, f := range current {
				if !selected[f.LabelKey] {
					kept = append(kept, f)
				}
			}
			return kept
		},
		Success: "Filters removed",
		Failure: ServerMessage("Unable to remove filters"),
	}
	return b.run(ctx, intent, func(ctx context.Context, _ []model.Filter) error {
		return b.api.RemoveFilters(ctx, labelKeys)
	})
}

// Reset replaces every filter with the preset defaults.
func (b *PreferenceBoard) Reset(ctx context.Context) error {
	intent := Intent[model.Filter]{
		Kind: "reset",
		Next: func([]model.Filter) []model.Filter {
			return model.PresetFilters()
		},
		Success: "Filters reset to defaults",
		Failure: ServerMessage("Unable to reset filters"),
	}
	return b.run(ctx, intent, func(ctx context.Context, _ []model.Filter) error {
		return b.api.ResetFilters(ctx)
	})
}

// Refresh fetches the server's filters and offers them to the engine.
func (b *PreferenceBoard) Refresh(ctx context.Context) (Outcome, error) {
	filters, err := b.api.ListFilters(ctx)
	if err != nil {
		return Suppressed, err
	}
	outcome := b.engine.Receive(filters)
	b.log.WithFields(logrus.Fields{
		"outcome": outcome.String(),
		"filters": len(filters),
	}).Debug("received filter snapshot")
	return outcome, nil
}

// HandleInvalidation refreshes when the event marks preferences stale.
func (b *PreferenceBoard) HandleInvalidation(ctx context.Context, event model.InvalidationEvent) error {
	if !hasView(event, model.ViewPreferences) {
		return nil
	}
	_, err := b.Refresh(ctx)
	return err
}

func (b *PreferenceBoard) run(ctx context.Context, intent Intent[model.Filter], call func(context.Context, []model.Filter) error) error {
	err := b.engine.Do(ctx, intent, call)
	entry := b.log.WithFields(logrus.Fields{"kind": intent.Kind, "keys": intent.Keys})
	switch {
	case errors.Is(err, ErrInFlight):
		entry.Debug("mutation rejected while another is in flight")
	case err != nil:
		entry.WithError(err).Warn("preference mutation rolled back")
	default:
		entry.Debug("preference mutation settled")
	}
	return err
}

func (b *PreferenceBoard) editFilter(labelKey string, fn func(model.Filter) model.Filter) error {
	found := false
	err := b.engine.Edit(func(current []model.Filter) []model.Filter {
		for i := range current {
			if current[i].LabelKey == labelKey {
				current[i] = fn(current[i])
				found = true
			}
		}
		return current
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownFilter
	}
	return nil
}

func (b *PreferenceBoard) toastError(message string, cause error) {
	if b.toaster != nil {
		b.toaster.Error(message, cause)
	}
}

// ParseLabelList splits free text on commas and newlines, dropping blanks and
// case-insensitive repeats.
func ParseLabelList(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range labelListSeparator.Split(raw, -1) {
		entry = strings.TrimSpace(entry)
		if entry == "" || seen[strings.ToLower(entry)] {
			continue
		}
		seen[strings.ToLower(entry)] = true
		out = append(out, entry)
	}
	return out
}

// sliderValue rounds a slider position onto 0..10.
func sliderValue(value float64) int {
	if !math.IsNaN(value) && math.Round(value) <= 0 {
		return 0
	}
	return model.ClampIntensity(value)
}

func findFilter(filters []model.Filter, labelKey string) (model.Filter, bool) {
	for _, f := range filters {
		if f.LabelKey == labelKey {
			return f, true
		}
	}
	return model.Filter{}, false
}

func keysOf(filters []model.Filter) []string {
	keys := make([]string, 0, len(filters))
	for _, f := range filters {
		keys = append(keys, f.LabelKey)
	}
	return keys
}

func hasView(event model.InvalidationEvent, view string) bool {
	for _, v := range event.Views {
		if v == view {
			return true
		}
	}
	return false
}
