package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/yildizm/nginx-config-viewer/internal/config"
	"github.com/yildizm/nginx-config-viewer/internal/eventstream"
	"github.com/yildizm/nginx-config-viewer/internal/monitor"
	"github.com/yildizm/nginx-config-viewer/internal/viewer"
)

const sampleConf = "server { listen 80; }\n"

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nginx.conf")
	if err := os.WriteFile(path, []byte(sampleConf), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig().Server
	cfg.Path = path
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var etagPattern = regexp.MustCompile(`^W/"[0-9a-f]{16}"$`)

func TestRawServesFile(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/raw", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != sampleConf {
		t.Errorf("Expected body %q, got %q", sampleConf, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
	if etag := rec.Header().Get("ETag"); !etagPattern.MatchString(etag) {
		t.Errorf("Unexpected ETag %q", etag)
	}
	if rec.Header().Get("Last-Modified") == "" {
		t.Error("Expected Last-Modified header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS must be off by default")
	}
}

func TestRawConditionalGet(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	etag := get(t, h, "/raw", nil).Header().Get("ETag")

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{name: "exact match", ifNoneMatch: etag, want: http.StatusNotModified},
		{name: "listed among others", ifNoneMatch: `W/"0000000000000000", ` + etag, want: http.StatusNotModified},
		{name: "stale tag", ifNoneMatch: `W/"0000000000000000"`, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/raw", http.Header{"If-None-Match": {tt.ifNoneMatch}})
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusNotModified && rec.Body.Len() != 0 {
				t.Error("Expected empty body for 304")
			}
		})
	}

	if s.Metrics().NotModified.Get() != 2 {
		t.Errorf("Expected 2 not-modified responses, got %d", s.Metrics().NotModified.Get())
	}
}

func TestRawETagFollowsContent(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	before := get(t, h, "/raw", nil).Header().Get("ETag")
	if err := os.WriteFile(s.Path(), []byte("events {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	after := get(t, h, "/raw", nil)

	if after.Header().Get("ETag") == before {
		t.Error("Expected ETag to change with content")
	}
	if after.Body.String() != "events {}\n" {
		t.Errorf("Expected new content, got %q", after.Body.String())
	}
}

func TestRawCORS(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.CORS = true })
	rec := get(t, s.Handler(), "/raw", nil)

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRawMissingFile(t *testing.T) {
	s := newTestServer(t, nil)
	if err := os.Remove(s.Path()); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s.Handler(), "/raw", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "nginx.conf") {
		t.Errorf("Expected error text to name the file, got %q", rec.Body.String())
	}
	if s.Metrics().RawErrors.Get() != 1 {
		t.Errorf("Expected 1 raw error, got %d", s.Metrics().RawErrors.Get())
	}
}

func openStream(t *testing.T, url string) (*http.Response, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET /events error = %v", err)
	}
	return resp, func() {
		cancel()
		_ = resp.Body.Close()
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, closeStream := openStream(t, srv.URL)
	defer closeStream()

	if ct := resp.Header.Get("Content-Type"); ct != eventstream.ContentType {
		t.Errorf("Unexpected Content-Type %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Unexpected Cache-Control %q", cc)
	}

	dec := eventstream.NewDecoder(resp.Body)
	hello, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hello.Data != "hello" {
		t.Errorf("Expected hello first, got %q", hello.Data)
	}

	s.NotifyChange()

	reload, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if reload.Data != "reload" {
		t.Errorf("Expected reload, got %q", reload.Data)
	}

	closeStream()
	waitFor(t, "client to unregister", func() bool { return s.Hub().Clients() == 0 })
}

// bufferedWriter is a ResponseWriter that cannot flush.
type bufferedWriter struct {
	header http.Header
	code   int
	body   strings.Builder
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

func TestEventsRequiresFlusher(t *testing.T) {
	s := newTestServer(t, nil)
	w := &bufferedWriter{header: http.Header{}}

	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.code)
	}
	if strings.Contains(w.body.String(), "hello") {
		t.Errorf("Expected no stream frames, got %q", w.body.String())
	}
	if s.Hub().Clients() != 0 {
		t.Errorf("Expected no registered clients, got %d", s.Hub().Clients())
	}
}

func TestEventsAdvertisesRetry(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.Retry = 1500 * time.Millisecond })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, closeStream := openStream(t, srv.URL)
	defer closeStream()

	dec := eventstream.NewDecoder(resp.Body)
	hello, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hello.Data != "hello" {
		t.Errorf("Expected hello first, got %q", hello.Data)
	}
	if dec.Retry() != 1500*time.Millisecond {
		t.Errorf("Expected retry 1.5s before hello, got %v", dec.Retry())
	}
}

func TestEventsHeartbeat(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.Heartbeat = 20 * time.Millisecond })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, closeStream := openStream(t, srv.URL)
	defer closeStream()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if scanner.Text() == ": ping" {
			return
		}
	}
	t.Fatalf("Stream ended without a heartbeat: %v", scanner.Err())
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	get(t, h, "/raw", nil)
	s.NotifyChange()

	rec := get(t, h, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var snap monitor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid stats JSON: %v", err)
	}
	if snap.Path != s.Path() {
		t.Errorf("Expected path %q, got %q", s.Path(), snap.Path)
	}
	if snap.Raw.Requests != 1 {
		t.Errorf("Expected 1 raw request, got %d", snap.Raw.Requests)
	}
	if snap.Events.FileChanges != 1 || snap.Events.Broadcasts != 1 {
		t.Errorf("Unexpected event stats %+v", snap.Events)
	}
}

func TestWebRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	root := get(t, h, "/", nil)
	if root.Code != http.StatusOK || !strings.HasPrefix(root.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Expected web viewer at /, got %d %q", root.Code, root.Header().Get("Content-Type"))
	}

	for _, p := range []string{"/raw/extra", "/events/extra"} {
		if rec := get(t, h, p, nil); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", p, rec.Code)
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.Addr = "127.0.0.1:0"
		c.Debounce = 20 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()
	waitFor(t, "server to listen", func() bool { return s.Addr() != "" })

	base := "http://" + s.Addr()
	loader, err := viewer.NewLoader(base)
	if err != nil {
		t.Fatal(err)
	}
	if text, err := loader.Load(ctx); err != nil || text != sampleConf {
		t.Fatalf("Initial load = %q, %v", text, err)
	}

	listener, err := viewer.NewListener(base, viewer.WithRetryDelay(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	// The stream outlives the server so that shutdown has to close it.
	listenCtx, stopListening := context.WithCancel(context.Background())
	listenDone := make(chan struct{})
	go func() {
		_ = listener.Run(listenCtx, loader)
		close(listenDone)
	}()
	waitFor(t, "viewer to connect", func() bool { return s.Hub().Clients() == 1 })

	const updated = "server { listen 8080; }\n"
	if err := os.WriteFile(s.Path(), []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "viewer to reload", func() bool {
		snap := loader.Snapshot()
		return snap.State == viewer.StateLoaded && snap.Content == updated
	})

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	stopListening()
	<-listenDone
}
