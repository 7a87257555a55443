package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"vk-comments-exporter/internal/logger"
)

func TestWebSocketLogsAndStatus(t *testing.T) {
	srv := newTestServer(t, &fakeAggregator{})
	logger.Init(io.Discard, "debug", "json")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsBase := "ws" + strings.TrimPrefix(ts.URL, "http")

	{
		conn, err := websocket.Dial(wsBase+"/api/ws/logs", "", ts.URL)
		if err != nil {
			t.Fatalf("dial logs: %v", err)
		}
		defer conn.Close()

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		want := "ws_test_log_123"
		logger.Info(want, "k", "v")

		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			t.Fatalf("recv logs: %v", err)
		}
		if !strings.Contains(msg, want) {
			t.Fatalf("unexpected log msg=%q", msg)
		}
	}

	{
		conn, err := websocket.Dial(wsBase+"/api/ws/status?interval_ms=100", "", ts.URL)
		if err != nil {
			t.Fatalf("dial status: %v", err)
		}
		defer conn.Close()

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			t.Fatalf("recv status: %v", err)
		}
		var st Status
		if err := json.Unmarshal([]byte(strings.TrimSpace(msg)), &st); err != nil {
			t.Fatalf("unmarshal status: %v msg=%q", err, msg)
		}
		if st.State != "idle" {
			t.Fatalf("state=%q", st.State)
		}
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeAggregator{})
	logger.Init(io.Discard, "info", "json")
	logger.Info("logs_endpoint_marker")

	w := do(t, srv.Handler(), "GET", "/api/logs?limit=5", "", nil)
	var resp struct {
		Logs []logger.Event `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Logs) == 0 || len(resp.Logs) > 5 {
		t.Fatalf("logs=%d", len(resp.Logs))
	}
	if resp.Logs[len(resp.Logs)-1].Msg != "logs_endpoint_marker" {
		t.Fatalf("last=%+v", resp.Logs[len(resp.Logs)-1])
	}
}
