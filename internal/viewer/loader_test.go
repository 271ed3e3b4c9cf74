package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newTestLoader(t *testing.T, baseURL string) *Loader {
	t.Helper()
	l, err := NewLoader(baseURL)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return l
}

func TestLoaderLoadsExactText(t *testing.T) {
	const body = "server { listen 80; }"

	var gotCacheControl, gotPragma string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/raw" {
			http.NotFound(w, r)
			return
		}
		gotCacheControl = r.Header.Get("Cache-Control")
		gotPragma = r.Header.Get("Pragma")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv.URL)
	if l.Snapshot().State != StateLoading {
		t.Errorf("Expected initial state loading, got %s", l.Snapshot().State)
	}

	text, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if text != body {
		t.Errorf("Expected %q, got %q", body, text)
	}

	snap := l.Snapshot()
	if snap.State != StateLoaded {
		t.Errorf("Expected state loaded, got %s", snap.State)
	}
	if snap.Content != body {
		t.Errorf("Expected snapshot content %q, got %q", body, snap.Content)
	}
	if gotCacheControl != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", gotCacheControl)
	}
	if gotPragma != "no-cache" {
		t.Errorf("Expected Pragma no-cache, got %q", gotPragma)
	}
}

func TestLoaderByteExactBody(t *testing.T) {
	bodies := []string{
		"",
		"events {}\r\nhttp {\r\n}\r\n",
		"  # leading and trailing space  \n\n\n",
		"server_name café.example;\t# ünïcode\n",
	}

	for i, body := range bodies {
		t.Run(fmt.Sprintf("body_%d", i), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			text, err := newTestLoader(t, srv.URL).Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if text != body {
				t.Errorf("Body was transformed: got %q, want %q", text, body)
			}
		})
	}
}

func TestLoaderStatusErrors(t *testing.T) {
	codes := []int{
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	}

	for _, code := range codes {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", code)
			}))
			defer srv.Close()

			l := newTestLoader(t, srv.URL)
			_, err := l.Load(context.Background())
			if err == nil {
				t.Fatal("Expected error for non-2xx status")
			}

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FetchError, got %T", err)
			}
			if fe.StatusCode != code {
				t.Errorf("Expected status %d, got %d", code, fe.StatusCode)
			}

			want := fmt.Sprintf("Failed to load config: %d", code)
			if err.Error() != want {
				t.Errorf("Expected message %q, got %q", want, err.Error())
			}

			snap := l.Snapshot()
			if snap.State != StateError {
				t.Errorf("Expected state error, got %s", snap.State)
			}
			if !strings.Contains(snap.Message(), fmt.Sprint(code)) {
				t.Errorf("Expected message to contain status code, got %q", snap.Message())
			}
		})
	}
}

func TestLoaderNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	l := newTestLoader(t, url)
	_, err := l.Load(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("Expected no status code for a network failure, got %d", fe.StatusCode)
	}
	if fe.Cause == nil || fe.Message != fe.Cause.Error() {
		t.Errorf("Expected message to carry the underlying error, got %q", fe.Message)
	}
	if l.Snapshot().State != StateError {
		t.Errorf("Expected state error, got %s", l.Snapshot().State)
	}
}

func TestLoaderTransitions(t *testing.T) {
	fail := atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "worker_processes 1;")
	}))
	defer srv.Close()

	l := newTestLoader(t, srv.URL)

	var mu sync.Mutex
	var states []LoadState
	dispose := l.OnChange(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("Expected second load to fail")
	}

	dispose()
	fail.Store(false)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []LoadState{StateLoading, StateLoaded, StateLoading, StateError}
	if len(states) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], states[i])
		}
	}

	if l.Calls() != 3 {
		t.Errorf("Expected 3 calls, got %d", l.Calls())
	}
}

func TestLoaderErrorKeepsLastGoodContent(t *testing.T) {
	fail := atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "good")
	}))
	defer srv.Close()

	l := newTestLoader(t, srv.URL)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	_, _ = l.Load(context.Background())

	snap := l.Snapshot()
	if snap.State != StateError {
		t.Fatalf("Expected state error, got %s", snap.State)
	}
	if snap.Content != "good" {
		t.Errorf("Expected last good content to be kept, got %q", snap.Content)
	}
}

func TestLoaderLastSettledWins(t *testing.T) {
	tests := []struct {
		name string
		// slow is the request number (1 or 2) held back until the
		// other one has settled.
		slow int
		want string
	}{
		{name: "older request settles last", slow: 1, want: "first"},
		{name: "newer request settles last", slow: 2, want: "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n atomic.Int32
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				num := n.Add(1)
				if int(num) == tt.slow {
					<-release
				}
				if num == 1 {
					fmt.Fprint(w, "first")
				} else {
					fmt.Fprint(w, "second")
				}
			}))
			defer srv.Close()

			l := newTestLoader(t, srv.URL)
			slowDone := make(chan struct{})

			if tt.slow == 1 {
				go func() {
					_, _ = l.Load(context.Background())
					close(slowDone)
				}()
				waitFor(t, "first request", func() bool { return n.Load() == 1 })
				if _, err := l.Load(context.Background()); err != nil {
					t.Fatal(err)
				}
			} else {
				if _, err := l.Load(context.Background()); err != nil {
					t.Fatal(err)
				}
				go func() {
					_, _ = l.Load(context.Background())
					close(slowDone)
				}()
				waitFor(t, "second request", func() bool { return n.Load() == 2 })
			}

			close(release)
			<-slowDone

			snap := l.Snapshot()
			if snap.State != StateLoaded {
				t.Errorf("Expected state loaded, got %s", snap.State)
			}
			if snap.Content != tt.want {
				t.Errorf("Expected last settled response %q, got %q", tt.want, snap.Content)
			}
		})
	}
}

func TestNewLoaderEndpoint(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "http://localhost:8080/raw"},
		{base: "http://localhost:8080/", want: "http://localhost:8080/raw"},
		{base: "https://example.com/nginx", want: "https://example.com/nginx/raw"},
		{base: "ftp://example.com", wantErr: true},
		{base: "http://", wantErr: true},
		{base: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			l, err := NewLoader(tt.base)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.base)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLoader() error = %v", err)
			}
			if l.Endpoint() != tt.want {
				t.Errorf("Expected endpoint %q, got %q", tt.want, l.Endpoint())
			}
		})
	}
}
