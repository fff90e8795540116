// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Middleware logs one "request.handled" entry per HTTP request.
// Long-poll requests that end in a client disconnect are logged with status 0.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger := WithComponentFromContext(r.Context(), "http")
			var evt *zerolog.Event
			switch status := ww.Status(); {
			case status >= http.StatusInternalServerError:
				evt = logger.Error()
			case status >= http.StatusBadRequest:
				evt = logger.Warn()
			default:
				evt = logger.Info()
			}
			evt.
				Str(FieldEvent, "request.handled").
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Int(FieldStatus, ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur(FieldDuration, time.Since(start)).
				Str(FieldRemoteAddr, r.RemoteAddr).
				Msg("request handled")
		})
	}
}
