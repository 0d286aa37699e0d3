// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/bloodhub/internal/app/store/audit"
	"github.com/dalemusser/bloodhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"  // MongoDB only
	DestLog = "log" // zap only
	DestOff = "off"
)

// Config selects where each category of event goes.
type Config struct {
	Auth    string // login, logout, registration
	Admin   string // role/status changes, settings, funding reconciliation
	Request string // donation request lifecycle
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil *Logger is a valid no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

// NewNopLogger returns a Logger that records nothing. Intended for tests.
func NewNopLogger() *Logger {
	return &Logger{zapLog: zap.NewNop(), config: Config{Auth: DestOff, Admin: DestOff, Request: DestOff}}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryAdmin:
		s = l.config.Admin
	case audit.CategoryRequest:
		s = l.config.Request
	}
	if s == "" {
		return DestAll
	}
	return s
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.RequestID != nil {
		fields = append(fields, zap.String("request_id", event.RequestID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's destination.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	dest := l.setting(event.Category)
	if dest == DestOff {
		return
	}
	if dest == DestAll || dest == DestLog {
		l.logToZap(event)
	}
	if (dest == DestAll || dest == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// base fills the request-derived fields. r may be nil for system actions.
func base(r *http.Request, category, eventType string, success bool) audit.Event {
	e := audit.Event{Category: category, EventType: eventType, Success: success}
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

func oidPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, authMethod string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = oidPtr(userID)
	e.Details = map[string]string{"email": email, "auth_method": authMethod}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a sign-in attempt for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedUserNotFound, false)
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_email": email}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a sign-in with a bad password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedWrongPassword, false)
	e.UserID = oidPtr(userID)
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedUserDisabled logs a sign-in to a blocked or inactive account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, status string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedUserDisabled, false)
	e.UserID = oidPtr(userID)
	e.FailureReason = "account " + status
	e.Details = map[string]string{"email": email, "status": status}
	l.Log(ctx, e)
}

// LoginFailedRateLimit logs a sign-in rejected by the login limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedRateLimit, false)
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// Logout logs a sign-out. userIDStr comes from the session.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	e := base(r, audit.CategoryAuth, audit.EventLogout, true)
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		e.UserID = &oid
	}
	l.Log(ctx, e)
}

// Registered logs a new account, by password or by first Google sign-in.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, status string) {
	e := base(r, audit.CategoryAuth, audit.EventRegistered, true)
	e.UserID = oidPtr(userID)
	e.Details = map[string]string{"auth_method": authMethod, "status": status}
	l.Log(ctx, e)
}

// --- Admin Events ---

// UserRoleChanged logs an admin changing a user's role.
func (l *Logger) UserRoleChanged(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, from, to string) {
	e := base(r, audit.CategoryAdmin, audit.EventUserRoleChanged, true)
	e.ActorID, e.UserID = oidPtr(actorID), oidPtr(targetID)
	e.Details = map[string]string{"from": from, "to": to}
	l.Log(ctx, e)
}

// UserStatusChanged logs an admin blocking, activating, or deactivating a user.
func (l *Logger) UserStatusChanged(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, from, to string) {
	e := base(r, audit.CategoryAdmin, audit.EventUserStatusChanged, true)
	e.ActorID, e.UserID = oidPtr(actorID), oidPtr(targetID)
	e.Details = map[string]string{"from": from, "to": to}
	l.Log(ctx, e)
}

// SettingsUpdated logs a save of the site settings.
func (l *Logger) SettingsUpdated(ctx context.Context, r *http.Request, actorID primitive.ObjectID) {
	e := base(r, audit.CategoryAdmin, audit.EventSettingsUpdated, true)
	e.ActorID = oidPtr(actorID)
	l.Log(ctx, e)
}

// FundingStatusChanged logs reconciliation of a funding with the payment provider.
func (l *Logger) FundingStatusChanged(ctx context.Context, r *http.Request, actorID primitive.ObjectID, transactionID, from, to string) {
	e := base(r, audit.CategoryAdmin, audit.EventFundingStatusChanged, true)
	e.ActorID = oidPtr(actorID)
	e.Details = map[string]string{"transaction_id": transactionID, "from": from, "to": to}
	l.Log(ctx, e)
}

// --- Donation Request Events ---

// RequestCreated logs a new donation request.
func (l *Logger) RequestCreated(ctx context.Context, r *http.Request, actorID, requestID primitive.ObjectID, bloodGroup string) {
	e := base(r, audit.CategoryRequest, audit.EventRequestCreated, true)
	e.ActorID, e.RequestID = oidPtr(actorID), oidPtr(requestID)
	e.Details = map[string]string{"blood_group": bloodGroup}
	l.Log(ctx, e)
}

// RequestUpdated logs an edit of a request's content.
func (l *Logger) RequestUpdated(ctx context.Context, r *http.Request, actorID, requestID primitive.ObjectID) {
	e := base(r, audit.CategoryRequest, audit.EventRequestUpdated, true)
	e.ActorID, e.RequestID = oidPtr(actorID), oidPtr(requestID)
	l.Log(ctx, e)
}

// RequestDeleted logs removal of a request.
func (l *Logger) RequestDeleted(ctx context.Context, r *http.Request, actorID, requestID primitive.ObjectID, status string) {
	e := base(r, audit.CategoryRequest, audit.EventRequestDeleted, true)
	e.ActorID, e.RequestID = oidPtr(actorID), oidPtr(requestID)
	e.Details = map[string]string{"status": status}
	l.Log(ctx, e)
}

// RequestStatusChanged logs a status transition. A zero actorID and nil r
// mean the system made the change.
func (l *Logger) RequestStatusChanged(ctx context.Context, r *http.Request, actorID, requestID primitive.ObjectID, from, to, note string) {
	e := base(r, audit.CategoryRequest, audit.EventRequestStatusChanged, true)
	e.ActorID, e.RequestID = oidPtr(actorID), oidPtr(requestID)
	e.Details = map[string]string{"from": from, "to": to}
	if note != "" {
		e.Details["note"] = note
	}
	l.Log(ctx, e)
}

// RequestDonorAssigned logs a donor taking a pending request.
func (l *Logger) RequestDonorAssigned(ctx context.Context, r *http.Request, donorID, requestID primitive.ObjectID) {
	e := base(r, audit.CategoryRequest, audit.EventRequestDonorAssigned, true)
	e.ActorID, e.UserID, e.RequestID = oidPtr(donorID), oidPtr(donorID), oidPtr(requestID)
	l.Log(ctx, e)
}
