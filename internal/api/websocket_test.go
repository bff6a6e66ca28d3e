package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.example.com", "*.trusted.org"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://sub.trusted.org", true},
		{"https://evil.example.net", false},
		{"https://app.example.com.evil.net", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isOriginAllowed(tt.origin, allowed); got != tt.want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	if !isOriginAllowed("https://anything.example", []string{"*"}) {
		t.Error("wildcard * should allow any origin")
	}
}

func TestNewUpgraderCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header passes", []string{"https://app.example.com"}, "", true},
		{"empty allow list passes all", nil, "https://anywhere.example", true},
		{"listed origin passes", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"unlisted origin rejected", []string{"https://app.example.com"}, "https://evil.example.net", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpgrader(tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/ws/jobs/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := up.CheckOrigin(req); got != tt.want {
				t.Errorf("CheckOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHubRoutesByJob(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := &Client{hub: hub, send: make(chan []byte, 8), jobID: "job-a"}
	b := &Client{hub: hub, send: make(chan []byte, 8), jobID: "job-b"}
	hub.register <- a
	hub.register <- b
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Progress("job-a", "provision", "en/ulb/gen", 30)

	select {
	case data := <-a.send:
		var msg ProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal progress message: %v", err)
		}
		if msg.Type != "progress" || msg.JobID != "job-a" {
			t.Errorf("message = %+v, want progress for job-a", msg)
		}
		if msg.Stage != "provision" || msg.Resource != "en/ulb/gen" || msg.Percent != 30 {
			t.Errorf("message = %+v, want provision en/ulb/gen 30", msg)
		}
		if msg.Timestamp == "" {
			t.Error("timestamp should be filled in")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive the progress message")
	}

	select {
	case <-b.send:
		t.Error("other job's subscriber should not receive the message")
	case <-time.After(50 * time.Millisecond):
	}

	hub.unregister <- a
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	if _, ok := <-a.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHubCompleteAndError(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{hub: hub, send: make(chan []byte, 8), jobID: "job-c"}
	hub.register <- c
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Complete("job-c", "en-ulb-gen")
	select {
	case data := <-c.send:
		var msg ProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal complete message: %v", err)
		}
		if msg.Type != "complete" || msg.Percent != 100 || msg.Message != "en-ulb-gen" {
			t.Errorf("message = %+v, want complete/100/en-ulb-gen", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("complete message not delivered")
	}

	hub.Error("job-c", "catalog unreachable")
	select {
	case data := <-c.send:
		var msg ProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal error message: %v", err)
		}
		if msg.Type != "error" || msg.Message != "catalog unreachable" {
			t.Errorf("message = %+v, want error message", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error message not delivered")
	}
}

// readProgressMessages splits one websocket frame into the individual
// progress messages it carries. The write pump coalesces queued
// messages with newline separators.
func readProgressMessages(t *testing.T, conn *websocket.Conn) []ProgressMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var out []ProgressMessage
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var msg ProgressMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		out = append(out, msg)
	}
	return out
}

func TestServeJobSocket(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	up := newUpgrader(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := ProgressMessage{Type: "progress", JobID: "job-1", Stage: "pending"}
		serveJobSocket(hub, &up, w, r, "job-1", snapshot)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	msgs := readProgressMessages(t, conn)
	if len(msgs) == 0 || msgs[0].JobID != "job-1" || msgs[0].Stage != "pending" {
		t.Fatalf("first frame = %+v, want the job snapshot", msgs)
	}
	if msgs[0].Timestamp == "" {
		t.Error("snapshot timestamp should be filled in")
	}

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	hub.Progress("job-1", "resolve", "", 60)

	msgs = readProgressMessages(t, conn)
	if len(msgs) == 0 || msgs[0].Stage != "resolve" || msgs[0].Percent != 60 {
		t.Fatalf("live frame = %+v, want resolve/60", msgs)
	}
}

func TestServeJobSocketRejectsBadOrigin(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	up := newUpgrader([]string{"https://app.example.com"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveJobSocket(hub, &up, w, r, "job-1", ProgressMessage{Type: "progress", JobID: "job-1"})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.net"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("Dial() should fail for a rejected origin")
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("handshake status = %d, want 403", resp.StatusCode)
		}
	}
}
