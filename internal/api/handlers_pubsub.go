// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/longpoll"
	"github.com/larsks/pubsub-example/internal/telemetry"
)

type publishResponse struct {
	Status string `json:"status"`
}

// handlePublish hands message and nick to the bus. Missing fields are empty strings.
// The 200 means "accepted by the bus", not "received by anyone". A closed bus drops
// the message the same way an empty one does; only an unreachable backend is an error.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	msg := bus.Message{
		Text: r.FormValue("message"),
		Nick: r.FormValue("nick"),
	}

	ctx, span := s.tracer.Start(r.Context(), "bus.publish",
		trace.WithAttributes(telemetry.PublishAttributes(s.backend, len(msg.Text))...))
	defer span.End()
	logger := log.WithContext(ctx, s.logger)

	switch err := s.bus.Publish(ctx, msg); {
	case err == nil:
		logger.Debug().
			Str(log.FieldEvent, "publish.accepted").
			Str(log.FieldNick, msg.Nick).
			Msg("message published")
	case errors.Is(err, bus.ErrClosed):
		logger.Debug().
			Str(log.FieldEvent, "publish.dropped").
			Str(log.FieldNick, msg.Nick).
			Msg("bus closed, message dropped")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		logger.Error().Err(err).
			Str(log.FieldEvent, "publish.failed").
			Msg("bus rejected message")
		writeServiceUnavailable(w, r, fmt.Errorf("publish: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{Status: "sent"})
}

// encodeMessage renders msg as compact JSON. Markup characters are written as
// published, not as \u escapes.
func encodeMessage(msg bus.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// handleSubscribe blocks until one message arrives and answers with exactly that
// message. A client that went away gets nothing written.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	msg, err := s.waiter.Wait(r.Context())
	logger := log.WithContext(r.Context(), s.logger)

	switch {
	case err == nil:
		body, mErr := encodeMessage(msg)
		if mErr != nil {
			writeError(w, r, http.StatusInternalServerError, mErr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)

	case errors.Is(err, longpoll.ErrDisconnected):
		logger.Debug().Str(log.FieldEvent, "subscribe.disconnected").Msg("client left before a message arrived")

	case errors.Is(err, longpoll.ErrTimeout):
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)

	case r.Context().Err() != nil:
		// The subscribe itself was cut short by the client.
		logger.Debug().Err(err).Str(log.FieldEvent, "subscribe.disconnected").Msg("client left during subscribe")

	case errors.Is(err, bus.ErrClosed):
		writeServiceUnavailable(w, r, err)

	default:
		logger.Error().Err(err).Str(log.FieldEvent, "subscribe.failed").Msg("wait failed")
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

// handleDebug reports the number of blocked long polls as plain text.
func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "polling = %d\n", s.Waiting())
}
