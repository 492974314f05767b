package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Raleighawesome/family-movies/internal/metrics"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateReachesOnlyThatHousehold(t *testing.T) {
	hub := NewHub(logger.Discard())
	mine := hub.Subscribe("hh-1")
	other := hub.Subscribe("hh-2")
	defer mine.Close()
	defer other.Close()

	hub.Invalidate("hh-1", model.ViewPreferences, model.ViewHome)

	select {
	case event := <-mine.Events():
		assert.Equal(t, model.EventInvalidate, event.Type)
		assert.Equal(t, "hh-1", event.HouseholdID)
		assert.Equal(t, []string{model.ViewPreferences, model.ViewHome}, event.Views)
		assert.False(t, event.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}

	select {
	case event := <-other.Events():
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	dropped := testutil.ToFloat64(metrics.RealtimeEventsTotal.WithLabelValues("dropped"))
	hub := NewHub(logger.Discard())
	sub := hub.Subscribe("hh")

	for i := 0; i <= subscriberBuffer; i++ {
		hub.Invalidate("hh", model.ViewHome)
	}

	assert.Equal(t, 0, hub.Subscribers("hh"))
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.RealtimeEventsTotal.WithLabelValues("dropped")))
	drained := 0
	for range sub.Events() {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)

	sub.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub(logger.Discard())
	sub := hub.Subscribe("hh")
	assert.Equal(t, 1, hub.Subscribers("hh"))
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("hh"))

	hub.Invalidate("hh", model.ViewHome)
	hub.Invalidate("", model.ViewHome)
}

func TestServeWebsocket(t *testing.T) {
	hub := NewHub(logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWebsocket(Upgrader(nil), w, r, "hh")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("hh") == 1 }, time.Second, 10*time.Millisecond)
	hub.Invalidate("hh", model.ViewPreferences)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event model.InvalidationEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, []string{model.ViewPreferences}, event.Views)
}

func TestServeSSE(t *testing.T) {
	hub := NewHub(logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, "hh")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ready\n", line)

	require.Eventually(t, func() bool { return hub.Subscribers("hh") == 1 }, time.Second, 10*time.Millisecond)
	hub.Invalidate("hh", model.ViewHome)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: invalidate") {
			break
		}
	}
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"views":["home"]`)
}

func TestUpgraderOrigins(t *testing.T) {
	up := Upgrader([]string{"https://movies.example"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://movies.example")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))
}
