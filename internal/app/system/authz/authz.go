// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false. This ensures callers can trust that
// ok=true means a valid, authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// Actor builds the policy actor for the signed-in user. ok is false for
// visitors; the returned Actor then fails every policy predicate.
func Actor(r *http.Request) (donationpolicy.Actor, bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return donationpolicy.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return donationpolicy.Actor{}, false
	}
	return donationpolicy.Actor{
		ID:     id,
		Role:   models.Role(strings.ToLower(strings.TrimSpace(user.Role))),
		Status: models.AccountStatus(strings.ToLower(strings.TrimSpace(user.Status))),
	}, true
}
