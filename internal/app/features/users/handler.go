// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves admin user management.
type Handler struct {
	Users    *userstore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: auditLog,
	}
}

// admin returns the caller's ID, or writes 401/403.
func admin(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return primitive.NilObjectID, false
	}
	if !donationpolicy.CanAdminister(a) {
		uierrors.RenderForbidden(w, r, "")
		return primitive.NilObjectID, false
	}
	return a.ID, true
}

// ServeList handles GET /users?role=&status=&blood_group=&q=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	if _, ok := admin(w, r); !ok {
		return
	}

	f := userstore.ListFilter{
		Role:   models.Role(normalize.Role(query.Get(r, "role"))),
		Status: models.AccountStatus(normalize.Status(query.Get(r, "status"))),
		Search: query.Get(r, "q"),
	}
	fields := map[string]string{}
	if f.Role != "" && !f.Role.Valid() {
		fields["role"] = "Unknown role."
	}
	if f.Status != "" && !f.Status.Valid() {
		fields["status"] = "Unknown status."
	}
	if raw := normalize.BloodGroup(query.Get(r, "blood_group")); raw != "" {
		g, err := bloodgroup.Parse(raw)
		if err != nil {
			fields["blood_group"] = "Unknown blood group."
		}
		f.BloodGroup = g
	}
	if len(fields) > 0 {
		jsonutil.Invalid(w, "Invalid filter.", fields)
		return
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	items, err := h.Users.Find(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list users", err, "")
		return
	}
	total, err := h.Users.Count(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count users", err, "")
		return
	}
	jsonutil.OK(w, paging.NewPage(items, p, total))
}

type roleInput struct {
	Role string `json:"role" validate:"required,oneof=admin donor volunteer" label:"Role"`
}

type statusInput struct {
	Status string `json:"status" validate:"required,oneof=active blocked pending inactive" label:"Status"`
}

// target loads {id}. Admins may not change their own role or status.
func (h *Handler) target(ctx context.Context, w http.ResponseWriter, r *http.Request, actorID primitive.ObjectID) (*models.User, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.RenderBadRequest(w, r, "Invalid user id.")
		return nil, false
	}
	if id == actorID {
		uierrors.RenderForbidden(w, r, "You can't change your own role or status.")
		return nil, false
	}
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderNotFound(w, r, "User not found.")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user", err, "")
		return nil, false
	}
	return u, true
}

// HandleRole handles POST /users/{id}/role.
func (h *Handler) HandleRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := admin(w, r)
	if !ok {
		return
	}
	var in roleInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	in.Role = normalize.Role(in.Role)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.target(ctx, w, r, actorID)
	if !ok {
		return
	}
	from, to := u.Role, models.Role(in.Role)
	if from != to {
		if err := h.Users.SetRole(ctx, u.ID, to); err != nil {
			h.ErrLog.Respond(w, r, "set role", err)
			return
		}
		h.AuditLog.UserRoleChanged(ctx, r, actorID, u.ID, string(from), string(to))
		u.Role = to
	}
	jsonutil.OK(w, u)
}

// HandleStatus handles POST /users/{id}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := admin(w, r)
	if !ok {
		return
	}
	var in statusInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	in.Status = normalize.Status(in.Status)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.target(ctx, w, r, actorID)
	if !ok {
		return
	}
	from, to := u.Status, models.AccountStatus(in.Status)
	if from != to {
		if err := h.Users.SetStatus(ctx, u.ID, to); err != nil {
			h.ErrLog.Respond(w, r, "set status", err)
			return
		}
		h.AuditLog.UserStatusChanged(ctx, r, actorID, u.ID, string(from), string(to))
		u.Status = to
	}
	jsonutil.OK(w, u)
}
