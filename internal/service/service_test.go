package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"
	"github.com/Raleighawesome/family-movies/internal/webhook"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type invalidation struct {
	HouseholdID string
	Views       []string
}

type recordingInvalidator struct {
	mu     sync.Mutex
	events []invalidation
}

func (r *recordingInvalidator) Invalidate(householdID string, views ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, invalidation{HouseholdID: householdID, Views: views})
}

func (r *recordingInvalidator) Events() []invalidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]invalidation(nil), r.events...)
}

type postCall struct {
	URL     string
	Payload interface{}
}

type fakePoster struct {
	mu    sync.Mutex
	calls []postCall
	resp  *webhook.Response
	err   error
}

func (f *fakePoster) Post(ctx context.Context, url string, payload interface{}) (*webhook.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, postCall{URL: url, Payload: payload})
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &webhook.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`)}, nil
	}
	return f.resp, nil
}

func (f *fakePoster) Calls() []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postCall(nil), f.calls...)
}

func testHousehold(t *testing.T, store storage.Storage) *model.HouseholdContext {
	t.Helper()
	identity := &model.Identity{ID: "basic-auth-user", Email: "family@example.com", Username: "admin"}
	svc := NewHouseholdService(store, logger.Discard())
	hh, err := svc.EnsureBootstrap(context.Background(), identity, "The Parkers", "Pat")
	require.NoError(t, err)
	require.NotNil(t, hh)
	return hh
}

// unmigratedStore is a SQLite store whose tables were never created.
func unmigratedStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(sqliteMemoryDSN(), false, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sqliteMemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}
