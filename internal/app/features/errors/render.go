// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
)

// RenderUnauthorized responds 401 "sign in required".
func RenderUnauthorized(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusUnauthorized, "Please sign in to continue.")
}

// RenderForbidden responds 403. An empty msg uses the generic text.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "You don't have permission to do that."
	}
	jsonutil.Error(w, http.StatusForbidden, msg)
}

// RenderNotFound responds 404.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "Not found."
	}
	jsonutil.Error(w, http.StatusNotFound, msg)
}

// RenderBadRequest responds 400.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	jsonutil.Error(w, http.StatusBadRequest, msg)
}

// RenderInvalid responds 400 with per-field messages from a failed
// validation.
func RenderInvalid(w http.ResponseWriter, r *http.Request, res inputval.Result) {
	jsonutil.Invalid(w, res.First(), res.Fields())
}

// RenderConflict responds 409. options lists what the client may try instead
// (for example the allowed status targets).
func RenderConflict(w http.ResponseWriter, r *http.Request, msg string, options []string) {
	jsonutil.Write(w, http.StatusConflict, jsonutil.ErrorBody{
		Error:   jsonutil.Code(http.StatusConflict),
		Message: msg,
		Options: options,
	})
}

// RenderUnprocessable responds 422.
func RenderUnprocessable(w http.ResponseWriter, r *http.Request, msg string) {
	jsonutil.Error(w, http.StatusUnprocessableEntity, msg)
}

// RenderServerError responds 500 without logging. Prefer
// ErrorLogger.LogServerError.
func RenderServerError(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}
	jsonutil.Error(w, http.StatusInternalServerError, msg)
}
