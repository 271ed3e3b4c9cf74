// Package web serves the embedded browser viewer.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/yildizm/nginx-config-viewer/internal/logger"
)

//go:embed assets
var assetsFS embed.FS

const indexFile = "index.html"

var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

// Handler serves the minified viewer assets. Unknown paths fall back to
// index.html so client-side routes keep working, except under /raw and
// /events which belong to the API.
type Handler struct {
	files map[string][]byte
	log   *logger.Logger
}

// NewHandler minifies every embedded asset once. An asset the minifier
// rejects is served as is.
func NewHandler(log *logger.Logger) (*Handler, error) {
	if log == nil {
		log = logger.Discard()
	}

	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded assets: %w", err)
	}

	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	h := &Handler{files: make(map[string][]byte), log: log}
	err = fs.WalkDir(sub, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fs.ReadFile(sub, name)
		if err != nil {
			return fmt.Errorf("failed to read asset %s: %w", name, err)
		}

		mediaType, ok := mediaTypes[path.Ext(name)]
		if !ok {
			h.files[name] = raw
			return nil
		}
		out, err := m.Bytes(mediaType, raw)
		if err != nil {
			log.WarnWithFields("Minify failed, serving original", []logger.Field{
				logger.F("asset", name),
				logger.Error(err),
			})
			out = raw
		}
		h.files[name] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, ok := h.files[indexFile]; !ok {
		return nil, fmt.Errorf("embedded assets are missing %s", indexFile)
	}

	log.DebugWithFields("Web assets ready", []logger.Field{logger.F("files", strings.Join(h.Files(), ","))})
	return h, nil
}

// Files returns the names of the served assets, sorted.
func (h *Handler) Files() []string {
	names := make([]string, 0, len(h.files))
	for name := range h.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if strings.HasPrefix(p, "/raw") || strings.HasPrefix(p, "/events") {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = indexFile
	}
	data, ok := h.files[name]
	if !ok {
		name = indexFile
		data = h.files[name]
	}

	if mediaType, ok := mediaTypes[path.Ext(name)]; ok {
		w.Header().Set("Content-Type", mediaType+"; charset=utf-8")
	}
	if name == indexFile {
		// The page must always pick up a new build.
		w.Header().Set("Cache-Control", "no-cache")
	}
	_, _ = w.Write(data)
}
