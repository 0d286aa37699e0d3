// internal/app/features/donationrequests/handler.go
package donationrequests

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the donation-request API.
type Handler struct {
	Requests *donationrequeststore.Store
	Users    *userstore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Events   *events.Dispatcher
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, ev *events.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		Requests: donationrequeststore.New(db),
		Users:    userstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: auditLog,
		Events:   ev,
	}
}

// caller is the signed-in user as both a policy actor and a history actor.
type caller struct {
	actor donationpolicy.Actor
	user  *auth.SessionUser
}

func (c caller) historyActor() requeststatus.Actor {
	id := c.actor.ID
	return requeststatus.Actor{ID: &id, Name: c.user.Name}
}

// signedIn resolves the caller or writes a 401.
func signedIn(w http.ResponseWriter, r *http.Request) (caller, bool) {
	a, ok := authz.Actor(r)
	u, uok := auth.CurrentUser(r)
	if !ok || !uok {
		uierrors.RenderUnauthorized(w, r)
		return caller{}, false
	}
	return caller{actor: a, user: u}, true
}

// load fetches the request named by {id}, writing 400/404/500 on failure.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.DonationRequest, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.RenderBadRequest(w, r, "Invalid request id.")
		return nil, false
	}
	req, err := h.Requests.GetByID(ctx, id)
	if errors.Is(err, donationrequeststore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "Donation request not found.")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load donation request", err, "")
		return nil, false
	}
	return req, true
}

func (h *Handler) publish(ctx context.Context, k events.Kind, req models.DonationRequest, actorID primitive.ObjectID) events.Event {
	e := events.ForRequest(k, req, actorID.Hex())
	h.Events.Publish(ctx, e)
	return e
}

func statusStrings(ss []models.RequestStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
