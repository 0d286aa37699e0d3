// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"slices"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/store/audit"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /audit?category=&event_type=&user_id=&request_id=&start_date=&end_date=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	if !donationpolicy.CanAdminister(a) {
		uierrors.RenderForbidden(w, r, "")
		return
	}

	filter, fields := parseFilter(r)
	if len(fields) > 0 {
		jsonutil.Invalid(w, "Invalid filter.", fields)
		return
	}
	p := paging.Parse(r)
	filter.Limit = int64(p.Limit)
	filter.Offset = p.Skip()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error", err, "A database error occurred.")
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "database error", err, "A database error occurred.")
		return
	}

	// Collect unique user IDs for name resolution
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id == nil {
				continue
			}
			if _, dup := seen[*id]; !dup {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}

	userNames := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) > 0 {
		users, err := h.Users.GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		}
		for _, u := range users {
			userNames[u.ID] = u.FullName
		}
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:        e.ID.Hex(),
			Timestamp: e.Timestamp,
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.Hex()
			item.ActorName = userNames[*e.ActorID]
		}
		if e.UserID != nil {
			item.TargetID = e.UserID.Hex()
			item.TargetName = userNames[*e.UserID]
		}
		if e.RequestID != nil {
			item.RequestID = e.RequestID.Hex()
		}
		items = append(items, item)
	}

	jsonutil.OK(w, paging.NewPage(items, p, total))
}

// ServeEventTypes handles GET /audit/event-types for the client's filters.
func (h *Handler) ServeEventTypes(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, allCategories())
}

// parseFilter reads the query string. Unknown categories and malformed IDs or
// dates come back as field errors.
func parseFilter(r *http.Request) (audit.QueryFilter, map[string]string) {
	var f audit.QueryFilter
	fields := map[string]string{}

	f.Category = normalize.QueryParam(query.Get(r, "category"))
	if f.Category != "" && eventTypesForCategory(f.Category) == nil {
		fields["category"] = "Unknown category."
	}
	f.EventType = normalize.QueryParam(query.Get(r, "event_type"))
	if f.EventType != "" && !slices.Contains(eventTypesForCategory(""), f.EventType) {
		fields["event_type"] = "Unknown event type."
	}

	if raw := query.Get(r, "user_id"); raw != "" {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			f.UserID = &id
		} else {
			fields["user_id"] = "Invalid id."
		}
	}
	if raw := query.Get(r, "request_id"); raw != "" {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			f.RequestID = &id
		} else {
			fields["request_id"] = "Invalid id."
		}
	}

	if raw := query.Get(r, "start_date"); raw != "" {
		if t, err := time.Parse(dateLayout, raw); err == nil {
			f.StartTime = &t
		} else {
			fields["start_date"] = "Use YYYY-MM-DD."
		}
	}
	if raw := query.Get(r, "end_date"); raw != "" {
		if t, err := time.Parse(dateLayout, raw); err == nil {
			// End of day
			endOfDay := t.Add(24*time.Hour - time.Nanosecond)
			f.EndTime = &endOfDay
		} else {
			fields["end_date"] = "Use YYYY-MM-DD."
		}
	}
	return f, fields
}
