package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegors/co-track/pkg/logger"
)

// StaticFileHandler serves a web map from a directory. Files are read on
// every request so the map can be edited while the server runs.
type StaticFileHandler struct {
	root   string
	logger *logger.Logger
}

// NewStaticFileHandler creates a handler for dir
func NewStaticFileHandler(dir string, log *logger.Logger) (*StaticFileHandler, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "serve", Path: root, Err: os.ErrInvalid}
	}
	return &StaticFileHandler{
		root:   root,
		logger: log.Named("static-handler"),
	}, nil
}

// ServeHTTP serves the requested file, or index.html for a directory
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	full := filepath.Join(h.root, rel)

	if full != h.root && !strings.HasPrefix(full, h.root+string(filepath.Separator)) {
		h.logger.Warn("Rejected path outside the static directory", logger.String("path", r.URL.Path))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Failed to stat file", logger.Error(err), logger.String("path", full))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.ServeFile(w, r, full)
}
