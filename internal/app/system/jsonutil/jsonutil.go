// Package jsonutil writes and reads the JSON bodies of the API.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/bloodhub/internal/app/system/limits"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Options []string          `json:"options,omitempty"`
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Error writes an ErrorBody whose code is derived from the status text
// ("Not Found" -> "not_found").
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, ErrorBody{Error: Code(status), Message: message})
}

// Invalid writes a 400 with per-field validation messages.
func Invalid(w http.ResponseWriter, message string, fields map[string]string) {
	Write(w, http.StatusBadRequest, ErrorBody{Error: "validation_failed", Message: message, Fields: fields})
}

// Code converts an HTTP status into a snake_case error code.
func Code(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// Decode reads a single JSON object into dst, rejecting unknown fields and
// trailing data.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
