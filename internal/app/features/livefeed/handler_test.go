package livefeed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/features/livefeed"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	hub "github.com/dalemusser/bloodhub/internal/app/system/livefeed"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestServeRequests_Rejects(t *testing.T) {
	h := livefeed.NewHandler(hub.NewHub(zap.NewNop(), nil), zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeRequests(rec, httptest.NewRequest("GET", "/ws/requests", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)

	rec = httptest.NewRecorder()
	h.ServeRequests(rec, testutil.WithUser(httptest.NewRequest("GET", "/ws/requests", nil), testutil.DonorUser().Blocked()))
	testutil.AssertStatus(t, rec, http.StatusForbidden)
}

func TestServeRequests_StreamsEvents(t *testing.T) {
	feed := hub.NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	h := livefeed.NewHandler(feed, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeRequests(w, testutil.WithUser(r, testutil.VolunteerUser()))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if feed.Count() != 1 {
		t.Fatalf("clients = %d, want 1", feed.Count())
	}

	ev := events.NewDispatcher(zap.NewNop(), feed)
	ev.Publish(context.Background(), events.Event{Kind: events.RequestStatusChanged, Type: events.RequestStatusChanged.RoutingKey(), RequestID: "r9", Status: "done", From: "inprogress"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if got["request_id"] != "r9" || got["from"] != "inprogress" {
		t.Errorf("unexpected message: %v", got)
	}
}
