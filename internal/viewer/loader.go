// Package viewer holds the client half of the live-reload viewer: the
// config loader, the /events listener, the theme context and the scope
// that ties their lifetimes to a mounted view.
package viewer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

// LoadState is the tri-state indicator owned by the Loader.
type LoadState int

const (
	StateLoading LoadState = iota
	StateError
	StateLoaded
)

// String returns the string representation of LoadState
func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the loader state handed to observers
// after every transition.
type Snapshot struct {
	State LoadState

	// Content is the text of the last successful load. It survives a
	// failed load but is not meant to be rendered while State is error.
	Content string

	// Err is set when State is StateError.
	Err error

	// Seq increases by one on every transition.
	Seq uint64
}

// Message returns the text the view shows for an error snapshot.
func (s Snapshot) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Reloader is anything that can re-fetch the configuration.
type Reloader interface {
	Load(ctx context.Context) (string, error)
}

// Loader fetches the configuration text from <base>/raw.
type Loader struct {
	client   *http.Client
	endpoint string
	log      *logger.Logger

	mu   sync.Mutex
	snap Snapshot

	calls     atomic.Int64
	observers observers[Snapshot]
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for /raw requests.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithLoaderLogger sets the logger
func WithLoaderLogger(log *logger.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a loader for the server at baseURL. The loader starts
// in the loading state, as a freshly mounted view does.
func NewLoader(baseURL string, opts ...LoaderOption) (*Loader, error) {
	endpoint, err := endpointURL(baseURL, "raw")
	if err != nil {
		return nil, err
	}

	l := &Loader{
		client:   &http.Client{},
		endpoint: endpoint,
		log:      logger.Discard(),
		snap:     Snapshot{State: StateLoading},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Endpoint returns the URL the loader fetches.
func (l *Loader) Endpoint() string {
	return l.endpoint
}

// Calls returns how many times Load has been invoked.
func (l *Loader) Calls() int64 {
	return l.calls.Load()
}

// Snapshot returns the current state.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// OnChange registers fn to be called after every state transition.
func (l *Loader) OnChange(fn func(Snapshot)) Disposer {
	return l.observers.add(fn)
}

// Load fetches the configuration. The state moves to loading immediately
// and to error or loaded when the request settles. Overlapping calls are
// not serialized: whichever settles last determines the final state.
func (l *Loader) Load(ctx context.Context) (string, error) {
	l.calls.Add(1)
	l.transition(func(s *Snapshot) {
		s.State = StateLoading
		s.Err = nil
	})

	start := time.Now()
	text, err := l.fetch(ctx)
	if err != nil {
		l.log.DebugWithFields("Load failed", []logger.Field{
			logger.URL(l.endpoint),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		})
		l.transition(func(s *Snapshot) {
			s.State = StateError
			s.Err = err
		})
		return "", err
	}

	l.log.DebugWithFields("Loaded config", []logger.Field{
		logger.URL(l.endpoint),
		logger.Duration(time.Since(start)),
		logger.F("bytes", len(text)),
	})
	l.transition(func(s *Snapshot) {
		s.State = StateLoaded
		s.Content = text
		s.Err = nil
	})
	return text, nil
}

func (l *Loader) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return "", newNetworkError(err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", newNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newNetworkError(err)
	}
	return string(body), nil
}

func (l *Loader) transition(apply func(*Snapshot)) {
	l.mu.Lock()
	apply(&l.snap)
	l.snap.Seq++
	snap := l.snap
	l.mu.Unlock()

	l.observers.notify(snap)
}

// endpointURL joins a path onto the viewer base URL.
func endpointURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}
	return u.JoinPath(path).String(), nil
}
