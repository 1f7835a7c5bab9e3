// Package handlers implements the REST surface over the core engine
// packages: exit rule management, broker account linking, engine
// start/stop/status, trade log queries, and platform auth.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard error body for every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes data as the response body with the given status code.
// A nil data writes just the status line.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes an ErrorResponse with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message, details string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}
