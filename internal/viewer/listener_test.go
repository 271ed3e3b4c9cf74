package viewer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

// syncBuffer is a bytes.Buffer safe for a logger writing from another
// goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// streamFrames writes frames as an event stream and then holds the
// connection open until the client goes away.
func streamFrames(w http.ResponseWriter, r *http.Request, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()
	for _, f := range frames {
		fmt.Fprint(w, f)
		flusher.Flush()
	}
	<-r.Context().Done()
}

func newTestListener(t *testing.T, baseURL string, opts ...ListenerOption) *Listener {
	t.Helper()
	l, err := NewListener(baseURL, opts...)
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	return l
}

func expectNoSignal(t *testing.T, sub *Subscription, within time.Duration) {
	t.Helper()
	select {
	case sig, ok := <-sub.Signals():
		if ok {
			t.Errorf("Unexpected signal %+v", sig)
		}
	case <-time.After(within):
	}
}

func expectSignal(t *testing.T, sub *Subscription) Signal {
	t.Helper()
	select {
	case sig, ok := <-sub.Signals():
		if !ok {
			t.Fatal("Signal channel closed unexpectedly")
		}
		return sig
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for reload signal")
	}
	return Signal{}
}

func TestListenerReloadTriggersOneLoad(t *testing.T) {
	var rawHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		rawHits.Add(1)
		fmt.Fprint(w, "server { listen 80; }")
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r, "data: hello\n\n", ": ping\n\n", "data: reload\n\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	loader := newTestLoader(t, srv.URL)
	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	listener := newTestListener(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listener.Run(ctx, loader)
	}()

	waitFor(t, "reload-triggered load", func() bool { return loader.Calls() == 2 })
	time.Sleep(50 * time.Millisecond)
	if loader.Calls() != 2 {
		t.Errorf("Expected exactly one extra load, got %d calls", loader.Calls())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if rawHits.Load() != 2 {
		t.Errorf("Expected 2 requests to /raw, got %d", rawHits.Load())
	}
}

func TestListenerIgnoresOtherPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r,
			"data: hello\n\n",
			"data: noop\n\n",
			"data: reload \n\n",
			"data: RELOAD\n\n",
			"data: reload\ndata: reload\n\n",
			"event: custom\ndata: reload\n\n",
			": reload\n\n",
		)
	}))
	defer srv.Close()

	sub := newTestListener(t, srv.URL).Subscribe(context.Background())
	defer func() { _ = sub.Close() }()

	waitFor(t, "open stream", func() bool { return sub.State() == ConnOpen })
	expectNoSignal(t, sub, 200*time.Millisecond)
}

func TestListenerSignalPerReloadFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r, "data: reload\n\n", "data: noop\n\n", "id: 9\ndata: reload\n\n")
	}))
	defer srv.Close()

	sub := newTestListener(t, srv.URL).Subscribe(context.Background())
	defer func() { _ = sub.Close() }()

	expectSignal(t, sub)
	second := expectSignal(t, sub)
	if second.ID != "9" {
		t.Errorf("Expected signal id 9, got %q", second.ID)
	}
	expectNoSignal(t, sub, 100*time.Millisecond)
}

func TestListenerReconnectsAfterError(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch conns.Add(1) {
		case 1:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		case 2:
			// Wrong content type is a stream error too.
			fmt.Fprint(w, "data: reload\n\n")
		default:
			streamFrames(w, r, "data: reload\n\n")
		}
	}))
	defer srv.Close()

	logs := &syncBuffer{}
	log := logger.Discard()
	log.SetOutput(logs)

	l := newTestListener(t, srv.URL, WithRetryDelay(50*time.Millisecond), WithListenerLogger(log))
	sub := l.Subscribe(context.Background())
	defer func() { _ = sub.Close() }()

	var mu sync.Mutex
	var seen []ConnState
	sub.OnState(func(s ConnState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	expectSignal(t, sub)

	if conns.Load() < 3 {
		t.Errorf("Expected at least 3 connection attempts, got %d", conns.Load())
	}
	if sub.State() != ConnOpen {
		t.Errorf("Expected open state after recovery, got %s", sub.State())
	}

	out := logs.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "Event stream error") {
		t.Errorf("Expected stream errors to be logged as warnings, got %q", out)
	}
	if !strings.Contains(out, "status=503") {
		t.Errorf("Expected status in warning, got %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	var sawError bool
	for _, s := range seen {
		if s == ConnClosed {
			t.Error("Error must not close the subscription")
		}
		if s == ConnError {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("Expected an error state, saw %v", seen)
	}
}

func TestListenerHonorsServerRetry(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "id: 41\nretry: 20\ndata: noop\n\n")
			return
		}
		if got := r.Header.Get("Last-Event-ID"); got != "41" {
			http.Error(w, "missing Last-Event-ID "+got, http.StatusBadRequest)
			return
		}
		streamFrames(w, r, "data: reload\n\n")
	}))
	defer srv.Close()

	// The configured delay would outlast the test; the server's retry
	// field must take over.
	l := newTestListener(t, srv.URL, WithRetryDelay(time.Hour))
	sub := l.Subscribe(context.Background())
	defer func() { _ = sub.Close() }()

	expectSignal(t, sub)
}

func TestSubscriptionClose(t *testing.T) {
	released := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r, "data: hello\n\n")
		close(released)
	}))
	defer srv.Close()

	sub := newTestListener(t, srv.URL).Subscribe(context.Background())
	waitFor(t, "open stream", func() bool { return sub.State() == ConnOpen })

	var states []ConnState
	var mu sync.Mutex
	sub.OnState(func(s ConnState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if sub.State() != ConnClosed {
		t.Errorf("Expected closed state, got %s", sub.State())
	}
	if _, ok := <-sub.Signals(); ok {
		t.Error("Expected signal channel to be closed")
	}

	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("Server never saw the connection released")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != ConnClosed {
		t.Errorf("Expected a single transition to closed, got %v", states)
	}
}

func TestSubscriptionContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := newTestListener(t, srv.URL).Subscribe(ctx)
	waitFor(t, "open stream", func() bool { return sub.State() == ConnOpen })

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Subscription did not shut down on cancel")
	}
	if sub.State() != ConnClosed {
		t.Errorf("Expected closed state, got %s", sub.State())
	}
}

func TestConnStateString(t *testing.T) {
	tests := map[ConnState]string{
		ConnConnecting: "connecting",
		ConnOpen:       "open",
		ConnError:      "error",
		ConnClosed:     "closed",
		ConnState(42):  "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("Expected %q, got %q", want, state.String())
		}
	}
}
