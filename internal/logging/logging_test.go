package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// captureLogOutput redirects the package logger to a buffer for the
// duration of f.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	old := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	f()
	defaultLogger = old
	return buf.String()
}

// captureInitOutput runs f after a real InitLogger call with stdout
// redirected, so the configured ReplaceAttr logic is exercised.
func captureInitOutput(level Level, format Format, f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outCh := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		outCh <- buf.String()
	}()

	InitLogger(level, format)
	f()

	w.Close()
	os.Stdout = oldStdout
	output := <-outCh

	InitLogger(LevelInfo, FormatJSON)
	return output
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{"debug json", LevelDebug, FormatJSON},
		{"info json", LevelInfo, FormatJSON},
		{"warn json", LevelWarn, FormatJSON},
		{"error json", LevelError, FormatJSON},
		{"info text", LevelInfo, FormatText},
		{"invalid level falls back", Level(999), FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("GetLogger() = nil after InitLogger")
			}
		})
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q, want req-123", got)
	}

	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}

	// A non-string value under the key is ignored.
	ctx = context.WithValue(context.Background(), RequestIDKey, 42)
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID with non-string value = %q, want empty", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	if LoggerFromContext(WithRequestID(context.Background(), "abc")) == nil {
		t.Error("LoggerFromContext with request ID = nil")
	}
	if LoggerFromContext(context.Background()) == nil {
		t.Error("LoggerFromContext without request ID = nil")
	}
}

func TestLeveledOutput(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)

	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"debug", func() { Debug("digging", "key", "v") }, "digging"},
		{"info", func() { Info("steady", "key", "v") }, "steady"},
		{"warn", func() { Warn("wobbly", "key", "v") }, "wobbly"},
		{"error", func() { Error("broken", "key", "v") }, "broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			if !strings.Contains(output, tt.want) {
				t.Errorf("output %q missing message %q", output, tt.want)
			}
		})
	}
}

func TestContextOutputCarriesRequestID(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	ctx := WithRequestID(context.Background(), "ctx-req-77")

	fns := map[string]func(){
		"debug": func() { DebugContext(ctx, "m") },
		"info":  func() { InfoContext(ctx, "m") },
		"warn":  func() { WarnContext(ctx, "m") },
		"error": func() { ErrorContext(ctx, "m") },
	}

	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			output := captureLogOutput(fn)
			if !strings.Contains(output, "ctx-req-77") {
				t.Errorf("output %q missing request ID", output)
			}
		})
	}
}

func TestHTTPRequest(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		HTTPRequest("GET", "/api/v1/documents", "127.0.0.1:1234", 200, 100*time.Millisecond, "bytes", 512)
	})

	for _, want := range []string{"http_request", "GET", "/api/v1/documents", "bytes"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestHTTPRequestContext(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	ctx := WithRequestID(context.Background(), "req-456")

	output := captureLogOutput(func() {
		HTTPRequestContext(ctx, "PUT", "/api/v1/jobs", "10.0.0.1:9999", 204, 75*time.Millisecond)
	})

	if !strings.Contains(output, "req-456") {
		t.Error("output missing request ID")
	}
	if !strings.Contains(output, "PUT") {
		t.Error("output missing method")
	}
}

func TestPipelineStage(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		PipelineStage("en-ulb-gen", "fetch")
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "en-ulb-gen") {
		t.Error("Expected output to contain document key")
	}
	if !strings.Contains(output, "fetch") {
		t.Error("Expected output to contain stage")
	}
	if !strings.Contains(output, "pipeline_stage") {
		t.Error("Expected output to contain pipeline_stage")
	}
}

func TestResourceEvent(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		ResourceEvent("unfound", "fr/f10/gen", "reason", "no catalog entry")
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "unfound") {
		t.Error("Expected output to contain event")
	}
	if !strings.Contains(output, "fr/f10/gen") {
		t.Error("Expected output to contain resource spec")
	}
	if !strings.Contains(output, "reason") {
		t.Error("Expected output to contain custom args")
	}
}

func TestFetchEvent(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		FetchEvent("clone", "https://example.org/en_tn.git", "depth", 1)
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "clone") {
		t.Error("Expected output to contain stage")
	}
	if !strings.Contains(output, "en_tn.git") {
		t.Error("Expected output to contain URL")
	}
	if !strings.Contains(output, "fetch_event") {
		t.Error("Expected output to contain fetch_event")
	}
}

func TestBadLink(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		BadLink("rc://en/tw/dict/bible/kt/grace", "rc://en/tn/help/gen/01/02")
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "kt/grace") {
		t.Error("Expected output to contain the unresolved locator")
	}
	if !strings.Contains(output, "bad_link") {
		t.Error("Expected output to contain bad_link")
	}
	if !strings.Contains(output, "WARN") {
		t.Error("Expected bad_link to log at warn level")
	}
}

func TestTypesetEvent(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		TypesetEvent("pandoc", 1500*time.Millisecond, "pdf", "/tmp/out/en-ulb-gen.pdf")
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "pandoc") {
		t.Error("Expected output to contain command")
	}
	if !strings.Contains(output, "1500") {
		t.Error("Expected output to contain duration in milliseconds")
	}
	if !strings.Contains(output, "typeset_event") {
		t.Error("Expected output to contain typeset_event")
	}
}

func TestWebSocketEvent(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		WebSocketEvent("client_disconnected", 3, "reason", "timeout")
	})

	for _, want := range []string{"websocket_event", "client_disconnected", "reason"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestServerStartup(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		ServerStartup("http", "HTTP/1.1", 8080, "tls", "disabled")
	})

	for _, want := range []string{"server_startup", "http", "8080", "tls"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestResponseWriterStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	// A second WriteHeader must not change the recorded status.
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusNotFound)
	}
	if !rw.written {
		t.Error("written flag not set")
	}
}

func TestResponseWriterWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	// Write without WriteHeader defaults to 200 and counts bytes.
	if _, err := rw.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := rw.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
	}
	if rw.bytes != 11 {
		t.Errorf("bytes = %d, want 11", rw.bytes)
	}
}

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateRequestID()
		if len(id) != 16 {
			t.Fatalf("len(id) = %d, want 16", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		seen[id] = true
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request ID missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
	middleware := RequestIDMiddleware(handler)

	t.Run("generates an ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		middleware.ServeHTTP(w, req)

		id := w.Header().Get("X-Request-ID")
		if len(id) != 16 {
			t.Errorf("X-Request-ID %q, want 16 hex chars", id)
		}
	})

	t.Run("propagates a caller ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "caller-id-42")
		w := httptest.NewRecorder()
		middleware.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "caller-id-42" {
			t.Errorf("X-Request-ID = %q, want caller-id-42", got)
		}
	})
}

func TestLoggingMiddleware(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	tests := []struct {
		name       string
		method     string
		path       string
		statusCode int
	}{
		{"ok", http.MethodGet, "/api/v1/documents", http.StatusOK},
		{"created", http.MethodPost, "/api/v1/jobs", http.StatusAccepted},
		{"error", http.MethodGet, "/api/v1/broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req = req.WithContext(WithRequestID(req.Context(), "mw-req"))
			w := httptest.NewRecorder()

			output := captureLogOutput(func() {
				middleware.ServeHTTP(w, req)
			})

			if !strings.Contains(output, tt.method) || !strings.Contains(output, tt.path) {
				t.Errorf("output %q missing method or path", output)
			}
		})
	}
}

func TestLoggingMiddlewareImplicitStatus(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	middleware := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body only"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/implicit", nil)
	w := httptest.NewRecorder()

	output := captureLogOutput(func() {
		middleware.ServeHTTP(w, req)
	})

	// Write without WriteHeader logs as a 200.
	if !strings.Contains(output, "200") {
		t.Errorf("output %q missing implicit 200 status", output)
	}
}

func TestCombinedMiddleware(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	middleware := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request ID missing from context")
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/combined", nil)
	w := httptest.NewRecorder()

	output := captureLogOutput(func() {
		middleware.ServeHTTP(w, req)
	})

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if !strings.Contains(output, "/combined") {
		t.Errorf("output %q missing request path", output)
	}
}

func TestTimestampFormat(t *testing.T) {
	output := captureInitOutput(LevelInfo, FormatJSON, func() {
		Info("timestamp probe")
	})

	if !strings.Contains(output, "timestamp probe") {
		t.Fatalf("output %q missing message", output)
	}
	// The ReplaceAttr hook renders time in RFC3339.
	if !strings.Contains(output, "T") {
		t.Error("timestamp not in RFC3339 form")
	}
}

func TestTextFormatOutput(t *testing.T) {
	output := captureInitOutput(LevelInfo, FormatText, func() {
		Info("text probe", "key", "value")
	})

	if !strings.Contains(output, "text probe") {
		t.Errorf("output %q missing message", output)
	}
}
