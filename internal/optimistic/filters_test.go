package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// serverError mimics an API error that carries a displayable message.
type serverError struct {
	message string
}

func (e *serverError) Error() string       { return "server: " + e.message }
func (e *serverError) UserMessage() string { return e.message }

// fakePreferenceAPI stores filters in memory. When hold is set, UpdateFilter
// signals entered and then waits for hold to close.
type fakePreferenceAPI struct {
	mu        sync.Mutex
	filters   []model.Filter
	err       error
	added     [][]string
	listCalls int

	hold    chan struct{}
	entered chan struct{}
}

func (f *fakePreferenceAPI) ListFilters(context.Context) ([]model.Filter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return clone(f.filters), nil
}

func (f *fakePreferenceAPI) UpdateFilter(ctx context.Context, filter model.Filter) error {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i := range f.filters {
		if f.filters[i].LabelKey == filter.LabelKey {
			f.filters[i] = filter
			return nil
		}
	}
	f.filters = append(f.filters, filter)
	return nil
}

func (f *fakePreferenceAPI) AddFilters(ctx context.Context, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, labels)
	for _, label := range labels {
		key := model.NormalizeLabelKey(label)
		f.filters = append(f.filters, model.Filter{LabelKey: key, MaxIntensity: model.PresetIntensity(key)})
	}
	return nil
}

func (f *fakePreferenceAPI) RemoveFilters(ctx context.Context, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	drop := make(map[string]bool)
	for _, l := range labels {
		drop[l] = true
	}
	kept := f.filters[:0]
	for _, filter := range f.filters {
		if !drop[filter.LabelKey] {
			kept = append(kept, filter)
		}
	}
	f.filters = kept
	return nil
}

func (f *fakePreferenceAPI) ResetFilters(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.filters = model.PresetFilters()
	return nil
}

func (f *fakePreferenceAPI) set(filters []model.Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = clone(filters)
}

type PreferenceBoardSuite struct {
	suite.Suite
	ctx     context.Context
	api     *fakePreferenceAPI
	toasts  *toastRecorder
	toaster *Toaster
	board   *PreferenceBoard
}

func (s *PreferenceBoardSuite) SetupTest() {
	s.ctx = context.Background()
	s.api = &fakePreferenceAPI{filters: model.PresetFilters()}
	s.toaster, s.toasts = newRecordedToaster()
	s.board = NewPreferenceBoard(s.api, s.toaster, model.PresetFilters(), logger.Discard())
}

func (s *PreferenceBoardSuite) filter(key string) model.Filter {
	f, ok := findFilter(s.board.Filters(), key)
	s.Require().True(ok, "filter %s not shown", key)
	return f
}

func (s *PreferenceBoardSuite) lastToast() Toast {
	toasts := s.toasts.all()
	s.Require().NotEmpty(toasts)
	return toasts[len(toasts)-1]
}

func (s *PreferenceBoardSuite) TestSliderEditsStayLocalUntilSaved() {
	s.Require().NoError(s.board.SetIntensity("scary", 13.7))
	s.Equal(10, s.filter("scary").MaxIntensity)

	s.Require().NoError(s.board.SetIntensity("scary", -2))
	s.Equal(0, s.filter("scary").MaxIntensity)

	s.Require().NoError(s.board.SetIntensity("scary", 7.4))
	s.Equal(7, s.filter("scary").MaxIntensity)
	settled, _ := findFilter(s.board.Engine().Settled(), "scary")
	s.Equal(5, settled.MaxIntensity)

	s.ErrorIs(s.board.SetIntensity("unknown", 3), ErrUnknownFilter)
}

func (s *PreferenceBoardSuite) TestHardNoToggleRestoresIntensity() {
	s.Require().NoError(s.board.SetIntensity("violence", 8))
	s.Require().NoError(s.board.ToggleHardNo("violence", true))
	s.Equal(model.Filter{LabelKey: "violence", MaxIntensity: 0, HardNo: true}, s.filter("violence"))

	s.Require().NoError(s.board.ToggleHardNo("violence", false))
	s.Equal(model.Filter{LabelKey: "violence", MaxIntensity: 8}, s.filter("violence"))

	// Nothing remembered: fall back to the settled intensity.
	s.board.Engine().Receive([]model.Filter{{LabelKey: "gore", MaxIntensity: 0, HardNo: true}})
	s.Require().NoError(s.board.ToggleHardNo("gore", false))
	s.Equal(model.Filter{LabelKey: "gore", MaxIntensity: model.DefaultIntensity}, s.filter("gore"))
}

func (s *PreferenceBoardSuite) TestSave() {
	s.Require().NoError(s.board.SetIntensity("scary", 7))
	s.Require().NoError(s.board.Save(s.ctx, "scary"))

	s.Equal(Settled, s.board.Engine().State())
	saved, _ := findFilter(s.api.filters, "scary")
	s.Equal(7, saved.MaxIntensity)
	s.Equal("Scary saved", s.lastToast().Message)
	s.Equal(ToastSuccess, s.lastToast().Kind)

	s.ErrorIs(s.board.Save(s.ctx, "nope"), ErrUnknownFilter)
}

func (s *PreferenceBoardSuite) TestSaveFailureRollsBack() {
	s.api.err = &serverError{message: "Label is required"}

	s.Require().NoError(s.board.SetIntensity("scary", 2))
	err := s.board.Save(s.ctx, "scary")
	s.Require().Error(err)

	s.Equal(5, s.filter("scary").MaxIntensity)
	toast := s.lastToast()
	s.Equal(ToastError, toast.Kind)
	s.Equal("Label is required", toast.Message)
}

func (s *PreferenceBoardSuite) TestAddSkipsExistingLabels() {
	s.Require().NoError(s.board.Add(s.ctx, "  Jump Scares!! , scary\nLANGUAGE\njump scares!!"))

	s.Equal([][]string{{"Jump Scares!!"}}, s.api.added)
	s.Equal(model.DefaultIntensity, s.filter("jump_scares").MaxIntensity)
	s.Len(s.board.Filters(), len(model.DefaultFilters)+1)
	s.Equal("Filters added", s.lastToast().Message)
	s.Equal(1, s.api.listCalls)
}

func (s *PreferenceBoardSuite) TestAddRejectsEmptyAndDuplicateInput() {
	s.ErrorIs(s.board.Add(s.ctx, " ,\n "), ErrNoLabels)
	s.Equal("Add at least one filter label", s.lastToast().Message)

	s.ErrorIs(s.board.Add(s.ctx, "Scary, Violence"), ErrFiltersExisting)
	s.Equal("Those filters already exist", s.lastToast().Message)
	s.Empty(s.api.added)
}

func (s *PreferenceBoardSuite) TestRemove() {
	s.ErrorIs(s.board.Remove(s.ctx, nil), ErrNoSelection)
	s.Equal("Choose filters to remove", s.lastToast().Message)

	s.Require().NoError(s.board.Remove(s.ctx, []string{"scary", "violence"}))
	s.Len(s.board.Filters(), len(model.DefaultFilters)-2)
	s.Len(s.api.filters, len(model.DefaultFilters)-2)
	s.Equal("Filters removed", s.lastToast().Message)
}

func (s *PreferenceBoardSuite) TestResetFailureUsesFallbackMessage() {
	s.board.Engine().Receive([]model.Filter{{LabelKey: "gore", HardNo: true}})
	s.api.err = errors.New("dial tcp: connection refused")

	s.Require().Error(s.board.Reset(s.ctx))
	s.Equal([]model.Filter{{LabelKey: "gore", HardNo: true}}, s.board.Filters())
	s.Equal("Unable to reset filters", s.lastToast().Message)
	s.Equal("dial tcp: connection refused", s.lastToast().Cause)
}

func (s *PreferenceBoardSuite) TestReset() {
	s.board.Engine().Receive([]model.Filter{{LabelKey: "gore", HardNo: true}})
	s.Require().NoError(s.board.Reset(s.ctx))
	s.Equal(model.PresetFilters(), s.board.Filters())
	s.Equal("Filters reset to defaults", s.lastToast().Message)
}

func (s *PreferenceBoardSuite) TestInvalidationForOtherViewsIsIgnored() {
	s.Require().NoError(s.board.HandleInvalidation(s.ctx, model.InvalidationEvent{Views: []string{model.ViewChat}}))
	s.Zero(s.api.listCalls)

	s.api.set([]model.Filter{{LabelKey: "gore", HardNo: true}})
	s.Require().NoError(s.board.HandleInvalidation(s.ctx, model.InvalidationEvent{Views: []string{model.ViewHome, model.ViewPreferences}}))
	s.Equal([]model.Filter{{LabelKey: "gore", HardNo: true}}, s.board.Filters())
}

func TestPreferenceBoardSuite(t *testing.T) {
	suite.Run(t, new(PreferenceBoardSuite))
}

// A background refresh that lands while a save is in flight must not undo
// the optimistic value.
func TestRefreshDuringSaveIsSuppressed(t *testing.T) {
	for name, saveErr := range map[string]error{
		"commit":   nil,
		"rollback": &serverError{message: "Unable to save filter"},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			api := &fakePreferenceAPI{
				filters: model.PresetFilters(),
				hold:    make(chan struct{}),
				entered: make(chan struct{}, 1),
			}
			toaster, rec := newRecordedToaster()
			board := NewPreferenceBoard(api, toaster, model.PresetFilters(), logger.Discard())

			require.NoError(t, board.SetIntensity("scary", 8))
			done := make(chan error, 1)
			go func() { done <- board.Save(ctx, "scary") }()
			<-api.entered

			// Someone else hard-noes violence meanwhile.
			concurrent := model.PresetFilters()
			for i := range concurrent {
				if concurrent[i].LabelKey == "violence" {
					concurrent[i] = model.Filter{LabelKey: "violence", HardNo: true}
				}
			}
			api.set(concurrent)

			outcome, err := board.Refresh(ctx)
			require.NoError(t, err)
			assert.Equal(t, Suppressed, outcome)
			scary, _ := findFilter(board.Filters(), "scary")
			assert.Equal(t, 8, scary.MaxIntensity)
			assert.Equal(t, Pending, board.Engine().State())

			api.mu.Lock()
			api.err = saveErr
			api.mu.Unlock()
			close(api.hold)
			err = <-done

			scary, _ = findFilter(board.Filters(), "scary")
			if saveErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 8, scary.MaxIntensity)
			} else {
				require.Error(t, err)
				assert.Equal(t, 5, scary.MaxIntensity)
			}
			assert.Equal(t, Settled, board.Engine().State())
			assert.Len(t, rec.all(), 1)

			// Once settled the next refresh is adopted as-is.
			outcome, err = board.Refresh(ctx)
			require.NoError(t, err)
			assert.Equal(t, Adopted, outcome)
			violence, _ := findFilter(board.Filters(), "violence")
			assert.True(t, violence.HardNo)
		})
	}
}

func TestParseLabelList(t *testing.T) {
	assert.Equal(t, []string{"Jump Scares", "gore", "Blood"}, ParseLabelList("Jump Scares,\ngore,, GORE\n\nBlood "))
	assert.Empty(t, ParseLabelList(" \n,"))
}
