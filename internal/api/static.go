// SPDX-License-Identifier: MIT

package api

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/metrics"
	"github.com/larsks/pubsub-example/internal/platform/paths"
)

//go:embed all:static
var staticFS embed.FS

// staticHandler serves the chat client. index.html answers "/". A configured
// static.dir replaces the embedded assets.
func (s *Server) staticHandler() http.Handler {
	var root http.FileSystem
	if dir := s.cfg.Static.Dir; dir != "" {
		root = http.Dir(dir)
	} else {
		sub, err := fs.Sub(staticFS, "static")
		if err != nil {
			s.logger.Error().Err(err).Str(log.FieldEvent, "static.unavailable").Msg("embedded client missing")
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "client not available", http.StatusInternalServerError)
			})
		}
		root = http.FS(sub)
	}
	files := http.FileServer(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "api")
		path := r.URL.Path

		if isPathTraversal(path) {
			logger.Warn().Str(log.FieldEvent, "static.denied").Str(log.FieldPath, path).Str("reason", "path_escape").Msg("detected traversal sequence")
			metrics.IncStaticDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if path != "/" && strings.HasSuffix(path, "/") {
			metrics.IncStaticDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if dir := s.cfg.Static.Dir; dir != "" {
			rel := path
			if rel == "/" {
				rel = "/index.html"
			}
			if _, err := paths.ResolveInRoot(dir, rel); errors.Is(err, paths.ErrEscapesRoot) {
				logger.Warn().Str(log.FieldEvent, "static.denied").Str(log.FieldPath, path).Str("reason", "symlink_escape").Msg("file resolves outside static dir")
				metrics.IncStaticDenied("symlink_escape")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		if path == "/" || path == "/index.html" {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		metrics.IncStaticServed()
		files.ServeHTTP(w, r)
	})
}

// isPathTraversal reports whether p, after repeated unescaping and NFC
// normalization, contains a parent reference or a NUL byte.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		d, err := url.PathUnescape(decoded)
		if err != nil || d == decoded {
			break
		}
		decoded = d
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{"..", "%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}
	return strings.Contains(norm.NFC.String(decoded), "..")
}
