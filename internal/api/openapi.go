// SPDX-License-Identifier: MIT

package api

import (
	_ "embed"
	"net/http"
)

// openapiSpec documents every route except the static client.
//
//go:embed openapi.yaml
var openapiSpec []byte

// OpenAPISpec returns the embedded OpenAPI document.
func OpenAPISpec() []byte {
	return openapiSpec
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(openapiSpec)
}
