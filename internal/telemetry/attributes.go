// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the service.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	BusBackendKey = "bus.backend"

	SessionIDKey      = "longpoll.session_id"
	SessionOutcomeKey = "longpoll.outcome"

	MessageSizeKey = "message.size"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PublishAttributes describes one published message. The text itself is not recorded.
func PublishAttributes(backend string, size int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if backend != "" {
		attrs = append(attrs, attribute.String(BusBackendKey, backend))
	}
	return append(attrs, attribute.Int(MessageSizeKey, size))
}

// SessionAttributes identifies a long-poll session.
func SessionAttributes(id string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(SessionIDKey, id)}
}

// OutcomeAttributes records how a session resolved.
func OutcomeAttributes(outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(SessionOutcomeKey, outcome)}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
