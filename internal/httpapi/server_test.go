package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/you/eaglechat/internal/core"
)

type fakeStore struct {
	rows []core.RenderedMessage
}

func (f *fakeStore) Recent() []core.RenderedMessage { return f.rows }

func testRows() []core.RenderedMessage {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []core.RenderedMessage{
		{ID: "1", Ts: base, Username: "prodbyeagle", Colour: "#FF4500", Segments: []core.Segment{{Kind: core.SegmentText, Text: "hi"}}},
		{ID: "2", Ts: base.Add(time.Minute), Username: "dwhincandi", Colour: "#2E8B57", Segments: []core.Segment{{Kind: core.SegmentText, Text: "yo"}}},
		{ID: "3", Ts: base.Add(2 * time.Minute), Username: "prodbyeagle", Colour: "#FF4500", Segments: []core.Segment{{Kind: core.SegmentText, Text: "bye"}}},
	}
}

func newTestAPI(t *testing.T, store Store, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(store, opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestAPI(t, &fakeStore{}, Options{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMessagesFilters(t *testing.T) {
	_, ts := newTestAPI(t, &fakeStore{rows: testRows()}, Options{})

	fetch := func(query string) []core.RenderedMessage {
		t.Helper()
		resp, err := http.Get(ts.URL + "/messages" + query)
		if err != nil {
			t.Fatalf("get %s: %v", query, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get %s: status %d", query, resp.StatusCode)
		}
		var rows []core.RenderedMessage
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			t.Fatalf("decode %s: %v", query, err)
		}
		return rows
	}

	if rows := fetch(""); len(rows) != 3 || rows[0].ID != "1" {
		t.Fatalf("unfiltered = %+v, want 3 rows oldest first", rows)
	}
	if rows := fetch("?username=dwhincandi"); len(rows) != 1 || rows[0].ID != "2" {
		t.Fatalf("username filter = %+v", rows)
	}
	if rows := fetch("?order=desc&limit=1"); len(rows) != 1 || rows[0].ID != "3" {
		t.Fatalf("desc limit = %+v, want newest row only", rows)
	}
	if rows := fetch("?since=2026-03-01T12:01:30Z"); len(rows) != 1 || rows[0].ID != "3" {
		t.Fatalf("since filter = %+v", rows)
	}

	resp, err := http.Get(ts.URL + "/messages?limit=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamDeliversBroadcast(t *testing.T) {
	srv, ts := newTestAPI(t, &fakeStore{}, Options{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/stream", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if !strings.HasPrefix(line, ":ok") {
		t.Fatalf("greeting = %q", line)
	}

	// The client registers before the greeting is written, so the broadcast
	// lands in its channel even if we race the goroutine here.
	srv.Broadcast(core.RenderedMessage{ID: "live", Username: "prodbyeagle"})

	deadline := time.Now().Add(2 * time.Second)
	var data string
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
			break
		}
	}
	if data == "" {
		t.Fatal("no data line before deadline")
	}
	var row core.RenderedMessage
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if row.ID != "live" {
		t.Fatalf("row.ID = %q, want live", row.ID)
	}
}

func TestWSDeliversBroadcast(t *testing.T) {
	srv, ts := newTestAPI(t, &fakeStore{}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the handler to register its client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		n := len(srv.clients)
		srv.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("ws client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.Broadcast(core.RenderedMessage{ID: "ws-row", Username: "dwhincandi"})

	kind, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.MessageText {
		t.Fatalf("message type = %v, want text", kind)
	}
	var row core.RenderedMessage
	if err := json.Unmarshal(data, &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.ID != "ws-row" {
		t.Fatalf("row.ID = %q, want ws-row", row.ID)
	}
}

func TestBroadcastDropsWhenClientFull(t *testing.T) {
	srv := New(&fakeStore{}, Options{})
	c := &client{ch: make(chan core.RenderedMessage, 1), transport: "sse"}
	if !srv.addClient(c) {
		t.Fatal("addClient refused")
	}

	srv.Broadcast(core.RenderedMessage{ID: "a"})
	srv.Broadcast(core.RenderedMessage{ID: "b"}) // channel full, must not block

	if got := len(c.ch); got != 1 {
		t.Fatalf("buffered rows = %d, want 1", got)
	}
	if row := <-c.ch; row.ID != "a" {
		t.Fatalf("kept row = %q, want a", row.ID)
	}
}

func TestCORSForbiddenOrigin(t *testing.T) {
	_, ts := newTestAPI(t, &fakeStore{}, Options{CORSOrigins: []string{"https://overlay.example.com"}})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://overlay.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("allowed origin status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://overlay.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestRateLimiting(t *testing.T) {
	_, ts := newTestAPI(t, &fakeStore{}, Options{RateLimitRPS: 1, RateLimitBurst: 1})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", resp.StatusCode)
	}

	limited := false
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exhausting the burst")
	}
}

func TestInfo(t *testing.T) {
	_, ts := newTestAPI(t, &fakeStore{}, Options{Build: BuildInfo{Version: "1.2.3", Revision: "abc123"}})
	resp, err := http.Get(ts.URL + "/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "1.2.3" || info.Revision != "abc123" || info.Go == "" {
		t.Fatalf("info = %+v", info)
	}
}

func TestShutdownRejectsNewClients(t *testing.T) {
	srv := New(&fakeStore{}, Options{})
	c := &client{ch: make(chan core.RenderedMessage, 1)}
	if !srv.addClient(c) {
		t.Fatal("addClient refused before shutdown")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := <-c.ch; ok {
		t.Fatal("client channel should be closed")
	}
	if srv.addClient(&client{ch: make(chan core.RenderedMessage, 1)}) {
		t.Fatal("addClient should refuse after shutdown")
	}
}

func TestBroadcastAfterShutdownIsNoop(t *testing.T) {
	srv := New(&fakeStore{}, Options{})
	c := &client{ch: make(chan core.RenderedMessage, 1), transport: "sse"}
	if !srv.addClient(c) {
		t.Fatal("addClient refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// The handler has not unregistered yet; a late row must not send on the
	// closed channel.
	srv.Broadcast(core.RenderedMessage{ID: "late"})
}
