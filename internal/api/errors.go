package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeInvalidTitle   = "INVALID_TITLE"
	CodeInvalidURL     = "INVALID_URL"
	CodeMissingChannel = "MISSING_CHANNEL"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
