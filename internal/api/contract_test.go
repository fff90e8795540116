// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/longpoll"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		doc, err := openapi3.NewLoader().LoadFromData(OpenAPISpec())
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

// validateExchange checks both the request and the recorded response against the
// document. body is the request body, re-read for validation.
func validateExchange(t *testing.T, method, target, contentType, body string, rr *httptest.ResponseRecorder) {
	t.Helper()
	doc := loadOpenAPIDoc(t)
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
	}
	require.NoError(t, openapi3filter.ValidateRequest(context.Background(), reqInput), "openapi request validation")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 rr.Code,
		Header:                 rr.Header(),
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	input.SetBodyBytes(rr.Body.Bytes())
	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

func serve(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const formType = "application/x-www-form-urlencoded"

func TestContract_Publish(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.srv.Handler()

	form := url.Values{"nick": {"alice"}, "message": {"hi"}}.Encode()
	rr := serve(h, http.MethodPost, "/pub", formType, form)
	require.Equal(t, http.StatusOK, rr.Code)
	validateExchange(t, http.MethodPost, "/pub", formType, form, rr)
}

func TestContract_PublishBusClosed(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.bus.Close())

	rr := serve(env.srv.Handler(), http.MethodPost, "/pub?message=x", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	validateExchange(t, http.MethodPost, "/pub?message=x", "", "", rr)
}

func TestContract_PublishBackendUnreachable(t *testing.T) {
	srv := newUnreachableServer(t)

	rr := serve(srv.Handler(), http.MethodPost, "/pub?message=x", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	validateExchange(t, http.MethodPost, "/pub?message=x", "", "", rr)
}

func TestContract_DebugRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.API.OperatorRateLimit = 1 })
	h := env.srv.Handler()

	rr := serve(h, http.MethodGet, "/debug", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/debug", "", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	validateExchange(t, http.MethodGet, "/debug", "", "", rr)
}

func TestContract_Subscribe(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.srv.Handler()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/sub", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		done <- rr
	}()
	env.awaitWaiting(t, 1)
	require.NoError(t, env.bus.Publish(ctx, bus.Message{Nick: "", Text: "héllo"}))

	select {
	case rr := <-done:
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"héllo","nick":""}`, rr.Body.String())
		validateExchange(t, http.MethodGet, "/sub", "", "", rr)
	case <-ctx.Done():
		t.Fatal("subscribe did not complete")
	}
}

func TestContract_SubscribeTimeout(t *testing.T) {
	env := newTestEnv(t, nil, longpoll.WithTimeout(20*time.Millisecond))

	rr := serve(env.srv.Handler(), http.MethodGet, "/sub", "", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	validateExchange(t, http.MethodGet, "/sub", "", "", rr)
}

func TestContract_OperatorEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.srv.Handler()

	for _, path := range []string{"/debug", "/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rr := serve(h, http.MethodGet, path, "", "")
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			validateExchange(t, http.MethodGet, path, "", "", rr)
		})
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := serve(env.srv.Handler(), http.MethodGet, "/openapi.yaml", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Equal(t, string(OpenAPISpec()), rr.Body.String())
}
