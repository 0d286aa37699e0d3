// internal/app/features/errors/logger.go
package errors

import (
	"errors"
	"net/http"

	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorLogger writes error responses and logs the ones that need a human
// to look at them.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorLogger{log: log}
}

func (el *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}
}

// LogServerError logs msg and err, then responds 500 with userMsg.
func (el *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	el.log.Error(msg, el.fields(r, err)...)
	RenderServerError(w, r, userMsg)
}

// LogBadRequest logs at warn level and responds 400 with userMsg.
func (el *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	el.log.Warn(msg, el.fields(r, err)...)
	RenderBadRequest(w, r, userMsg)
}

// Forbidden responds 403 for a denied policy check.
func (el *ErrorLogger) Forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	RenderForbidden(w, r, msg)
}

// Conflict responds 409 with the options the client may choose instead.
func (el *ErrorLogger) Conflict(w http.ResponseWriter, r *http.Request, msg string, options []string) {
	RenderConflict(w, r, msg, options)
}

// Respond maps a domain or store error onto its HTTP status. Anything it
// does not recognize is logged with msg and answered with a 500.
//
//	ErrInvalidTransition           409
//	ErrStatusConflict              409
//	ErrPermissionDenied            403
//	bloodgroup.ErrIncompatible     422
//	store ErrNotFound              404
//	userstore.ErrDuplicateEmail    409
func (el *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, requeststatus.ErrInvalidTransition):
		RenderConflict(w, r, "That status change is not allowed.", nil)
	case errors.Is(err, donationrequeststore.ErrStatusConflict):
		RenderConflict(w, r, "This request was changed by someone else. Reload and try again.", nil)
	case errors.Is(err, donationpolicy.ErrPermissionDenied):
		RenderForbidden(w, r, "")
	case errors.Is(err, bloodgroup.ErrIncompatible):
		RenderUnprocessable(w, r, "Your blood group is not compatible with this request.")
	case errors.Is(err, donationrequeststore.ErrNotFound):
		RenderNotFound(w, r, "Donation request not found.")
	case errors.Is(err, fundingstore.ErrNotFound):
		RenderNotFound(w, r, "Funding not found.")
	case errors.Is(err, userstore.ErrNotFound):
		RenderNotFound(w, r, "User not found.")
	case errors.Is(err, userstore.ErrDuplicateEmail):
		RenderConflict(w, r, "An account with that email already exists.", nil)
	default:
		el.LogServerError(w, r, msg, err, "")
	}
}
