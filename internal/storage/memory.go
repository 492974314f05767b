package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/google/uuid"
)

type memoryMember struct {
	model.HouseholdMember
	UserID      string
	HouseholdID string
	CreatedAt   time.Time
}

type memoryHousehold struct {
	ID        string
	Name      *string
	CreatedAt time.Time
}

// MemoryStorage keeps everything in maps; it is lost on restart.
type MemoryStorage struct {
	households map[string]*memoryHousehold
	members    []*memoryMember
	labels     map[string]string
	filters    map[string]map[string]model.Filter
	messages   map[string][]model.ChatRecord
	watches    map[string][]model.WatchRecord
	now        func() time.Time
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		households: make(map[string]*memoryHousehold),
		labels:     make(map[string]string),
		filters:    make(map[string]map[string]model.Filter),
		messages:   make(map[string][]model.ChatRecord),
		watches:    make(map[string][]model.WatchRecord),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) FirstMembership(ctx context.Context, userID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var first *memoryMember
	for _, member := range m.members {
		if member.UserID != userID {
			continue
		}
		if first == nil || member.CreatedAt.Before(first.CreatedAt) ||
			(member.CreatedAt.Equal(first.CreatedAt) && member.ID < first.ID) {
			first = member
		}
	}
	if first == nil {
		return nil, nil
	}

	membership := &model.Membership{
		ID:          first.ID,
		UserID:      first.UserID,
		DisplayName: first.DisplayName,
		HouseholdID: first.HouseholdID,
	}
	if hh, ok := m.households[first.HouseholdID]; ok {
		membership.HouseholdName = hh.Name
	}
	return membership, nil
}

func (m *MemoryStorage) ListMembers(ctx context.Context, householdID string) ([]model.HouseholdMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]model.HouseholdMember, 0)
	for _, member := range m.members {
		if member.HouseholdID == householdID {
			members = append(members, member.HouseholdMember)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return displayKey(members[i]) < displayKey(members[j])
	})
	return members, nil
}

func displayKey(member model.HouseholdMember) string {
	if member.DisplayName == nil {
		return ""
	}
	return *member.DisplayName
}

func (m *MemoryStorage) CreateHousehold(ctx context.Context, name string, member NewMember) (*model.Membership, error) {
	if member.UserID == "" {
		return nil, wrapErr("storage.CreateHousehold", ErrInvalidData)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	hh := &memoryHousehold{ID: uuid.NewString(), Name: optional(name), CreatedAt: now}
	m.households[hh.ID] = hh

	row := &memoryMember{
		HouseholdMember: model.HouseholdMember{
			ID:          uuid.NewString(),
			DisplayName: optional(member.DisplayName),
			Email:       optional(member.Email),
		},
		UserID:      member.UserID,
		HouseholdID: hh.ID,
		CreatedAt:   now,
	}
	m.members = append(m.members, row)

	return &model.Membership{
		ID:            row.ID,
		UserID:        row.UserID,
		DisplayName:   row.DisplayName,
		HouseholdID:   hh.ID,
		HouseholdName: hh.Name,
	}, nil
}

func (m *MemoryStorage) ListFilters(ctx context.Context, householdID string) ([]model.Filter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filters := make([]model.Filter, 0, len(m.filters[householdID]))
	for _, f := range m.filters[householdID] {
		filters = append(filters, f)
	}
	sort.Slice(filters, func(i, j int) bool {
		return filters[i].LabelKey < filters[j].LabelKey
	})
	return filters, nil
}

func (m *MemoryStorage) UpsertFilter(ctx context.Context, householdID string, filter model.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.household(householdID)[filter.LabelKey] = filter
	return nil
}

func (m *MemoryStorage) InsertFilters(ctx context.Context, householdID string, filters []model.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.household(householdID)
	seen := make(map[string]bool, len(filters))
	for _, f := range filters {
		if _, ok := existing[f.LabelKey]; ok || seen[f.LabelKey] {
			return duplicateErr("storage.InsertFilters", f.LabelKey)
		}
		seen[f.LabelKey] = true
	}
	for _, f := range filters {
		existing[f.LabelKey] = f
	}
	return nil
}

func (m *MemoryStorage) DeleteFilters(ctx context.Context, householdID string, labelKeys []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.filters[householdID]
	deleted := 0
	for _, key := range labelKeys {
		if _, ok := existing[key]; ok {
			delete(existing, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStorage) ReplaceFilters(ctx context.Context, householdID string, filters []model.Filter) error {
	next := make(map[string]model.Filter, len(filters))
	for _, f := range filters {
		if _, ok := next[f.LabelKey]; ok {
			return duplicateErr("storage.ReplaceFilters", f.LabelKey)
		}
		next[f.LabelKey] = f
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.filters[householdID] = next
	return nil
}

func (m *MemoryStorage) EnsureLabels(ctx context.Context, labels []model.FilterDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range labels {
		if _, ok := m.labels[l.LabelKey]; !ok {
			m.labels[l.LabelKey] = l.Label
		}
	}
	return nil
}

func (m *MemoryStorage) UpsertLabels(ctx context.Context, labels []model.FilterDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range labels {
		m.labels[l.LabelKey] = l.Label
	}
	return nil
}

// Label returns the dictionary entry for key.
func (m *MemoryStorage) Label(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	label, ok := m.labels[key]
	return label, ok
}

func (m *MemoryStorage) AddMessage(ctx context.Context, record *model.ChatRecord) error {
	if record == nil || record.HouseholdID == "" {
		return wrapErr("storage.AddMessage", ErrInvalidData)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	m.messages[record.HouseholdID] = append(m.messages[record.HouseholdID], *record)
	return nil
}

func (m *MemoryStorage) ListMessages(ctx context.Context, householdID string, limit int) ([]model.ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]model.ChatRecord, len(m.messages[householdID]))
	copy(records, m.messages[householdID])
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (m *MemoryStorage) RecordWatch(ctx context.Context, record *model.WatchRecord) error {
	if record == nil || record.HouseholdID == "" || strings.TrimSpace(record.MovieID) == "" {
		return wrapErr("storage.RecordWatch", ErrInvalidData)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	m.watches[record.HouseholdID] = append(m.watches[record.HouseholdID], *record)
	return nil
}

// Watches returns what RecordWatch stored for a household.
func (m *MemoryStorage) Watches(householdID string) []model.WatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.WatchRecord, len(m.watches[householdID]))
	copy(out, m.watches[householdID])
	return out
}

// AddMember attaches another member to an existing household.
func (m *MemoryStorage) AddMember(householdID string, member NewMember, createdAt time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := &memoryMember{
		HouseholdMember: model.HouseholdMember{
			ID:          uuid.NewString(),
			DisplayName: optional(member.DisplayName),
			Email:       optional(member.Email),
		},
		UserID:      member.UserID,
		HouseholdID: householdID,
		CreatedAt:   createdAt,
	}
	m.members = append(m.members, row)
	return row.ID
}

func (m *MemoryStorage) household(householdID string) map[string]model.Filter {
	filters, ok := m.filters[householdID]
	if !ok {
		filters = make(map[string]model.Filter)
		m.filters[householdID] = filters
	}
	return filters
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
