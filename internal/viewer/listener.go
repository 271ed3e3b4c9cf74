package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/yildizm/nginx-config-viewer/internal/eventstream"
	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

// ReloadToken is the only payload that triggers a re-fetch.
const ReloadToken = "reload"

// DefaultRetryDelay matches the reconnect delay browsers use for an
// EventSource when the server sends no retry field.
const DefaultRetryDelay = 3 * time.Second

// ConnState is the state of a stream subscription.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnError
	ConnClosed
)

// String returns the string representation of ConnState
func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnError:
		return "error"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Signal is one reload notification received from the server.
type Signal struct {
	ID       string
	Received time.Time
}

// Listener subscribes to <base>/events.
type Listener struct {
	client     *http.Client
	endpoint   string
	retryDelay time.Duration
	log        *logger.Logger
}

// ListenerOption configures a Listener
type ListenerOption func(*Listener)

// WithStreamClient sets the client used for the stream. It must not carry
// a Timeout, since the stream stays open indefinitely.
func WithStreamClient(c *http.Client) ListenerOption {
	return func(l *Listener) {
		if c != nil {
			l.client = c
		}
	}
}

// WithRetryDelay sets the reconnect delay used until the server sends its
// own retry field.
func WithRetryDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// WithListenerLogger sets the logger stream errors are reported to.
func WithListenerLogger(log *logger.Logger) ListenerOption {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// NewListener creates a listener for the server at baseURL.
func NewListener(baseURL string, opts ...ListenerOption) (*Listener, error) {
	endpoint, err := endpointURL(baseURL, "events")
	if err != nil {
		return nil, err
	}

	l := &Listener{
		client:     &http.Client{},
		endpoint:   endpoint,
		retryDelay: DefaultRetryDelay,
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Endpoint returns the stream URL.
func (l *Listener) Endpoint() string {
	return l.endpoint
}

// Subscription is a standing connection to the event stream. It yields a
// signal for every reload frame and reconnects on its own after errors
// until it is closed.
type Subscription struct {
	l       *Listener
	signals chan Signal
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	state     ConnState
	lastID    string
	observers observers[ConnState]
}

// Subscribe opens the stream in the background. The subscription lives
// until Close is called or ctx is done.
func (l *Listener) Subscribe(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		l:       l,
		signals: make(chan Signal, 8),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   ConnConnecting,
	}
	go s.run(ctx)
	return s
}

// Signals returns the channel of reload signals. It is closed once the
// subscription is closed.
func (s *Subscription) Signals() <-chan Signal {
	return s.signals
}

// Done is closed when the subscription has fully shut down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// State returns the current connection state.
func (s *Subscription) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnState registers fn to be called on every state transition.
func (s *Subscription) OnState(fn func(ConnState)) Disposer {
	return s.observers.add(fn)
}

// Close tears the subscription down and waits for the connection to be
// released. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state || s.state == ConnClosed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.observers.notify(state)
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.signals)
	defer s.setState(ConnClosed)

	retry := s.l.retryDelay
	for {
		s.setState(ConnConnecting)
		err := s.stream(ctx, &retry)
		if ctx.Err() != nil {
			return
		}

		s.l.log.WarnWithFields("Event stream error", []logger.Field{
			logger.URL(s.l.endpoint),
			logger.Error(err),
			logger.F("retry", retry),
		})
		s.setState(ConnError)

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream holds one connection open until it fails. It always returns a
// non-nil error.
func (s *Subscription) stream(ctx context.Context, retry *time.Duration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.l.endpoint, nil)
	if err != nil {
		return &StreamError{Op: "connect", Cause: err}
	}
	req.Header.Set("Accept", eventstream.ContentType)
	req.Header.Set("Cache-Control", "no-cache")
	if s.lastID != "" {
		req.Header.Set("Last-Event-ID", s.lastID)
	}

	resp, err := s.l.client.Do(req)
	if err != nil {
		return &StreamError{Op: "connect", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StreamError{Op: "connect", StatusCode: resp.StatusCode}
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != eventstream.ContentType {
		return &StreamError{
			Op:    "connect",
			Cause: fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")),
		}
	}

	s.setState(ConnOpen)
	s.l.log.DebugWithFields("Event stream open", []logger.Field{logger.URL(s.l.endpoint)})

	dec := eventstream.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if d := dec.Retry(); d > 0 {
			*retry = d
		}
		s.lastID = dec.LastEventID()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return &StreamError{Op: "read", Cause: err}
		}

		if ev.Name != "message" || ev.Data != ReloadToken {
			s.l.log.DebugWithFields("Ignoring event", []logger.Field{
				logger.F("event", ev.Name),
				logger.F("data", ev.Data),
			})
			continue
		}

		select {
		case s.signals <- Signal{ID: ev.ID, Received: time.Now()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run subscribes and calls r.Load once for every reload signal until ctx
// is done. Each load is issued as soon as its signal arrives; loads are
// not serialized against each other.
func (l *Listener) Run(ctx context.Context, r Reloader) error {
	sub := l.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	var wg sync.WaitGroup
	defer wg.Wait()

	for range sub.Signals() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Failures are recorded in the loader state.
			_, _ = r.Load(ctx)
		}()
	}
	return ctx.Err()
}
