package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/yildizm/nginx-config-viewer/internal/eventstream"
	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

// handleRaw serves the configured file. There is no path input, so the
// handler can only ever read that one file.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.metrics.RawRequests.Inc()
	defer s.metrics.RawLatency.Since(start)

	// #nosec G304 - fixed path from configuration
	f, err := os.Open(s.path)
	if err != nil {
		s.metrics.RawErrors.Inc()
		s.log.WarnWithFields("Failed to open config", []logger.Field{logger.Path(s.path), logger.Error(err)})
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		s.metrics.RawErrors.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	etag := contentETag(data)
	w.Header().Set("ETag", etag)
	if stat, err := f.Stat(); err == nil {
		w.Header().Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))
	}

	if inm := r.Header.Get("If-None-Match"); strings.Contains(inm, etag) {
		s.metrics.NotModified.Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if s.cfg.CORS {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

// contentETag returns a weak validator for data.
func contentETag(data []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(data))
}

// handleEvents holds an event stream open. The client gets "hello" on
// connect, a comment every heartbeat and every hub broadcast as a message.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", eventstream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := http.NewResponseController(w).Flush(); err != nil {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	s.log.DebugWithFields("Client connected", []logger.Field{
		logger.F("remote", r.RemoteAddr),
		logger.F("clients", s.hub.Clients()),
	})

	enc := eventstream.NewEncoder(w)
	if s.cfg.Retry > 0 {
		if err := enc.Retry(s.cfg.Retry); err != nil {
			return
		}
	}
	if err := enc.Data("hello"); err != nil {
		return
	}

	tick := time.NewTicker(s.cfg.Heartbeat)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.streams.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Data(msg); err != nil {
				return
			}
		case <-tick.C:
			if err := enc.Comment("ping"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	snap.Path = s.path

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		s.log.WarnWithFields("Failed to write stats", []logger.Field{logger.Error(err)})
	}
}

// statusRecorder captures the status code for request logging. Flushing
// goes through Unwrap.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.DebugWithFields("Request", []logger.Field{
			logger.F("method", r.Method),
			logger.Path(r.URL.Path),
			logger.Status(rec.status),
			logger.Duration(time.Since(start)),
		})
	})
}
