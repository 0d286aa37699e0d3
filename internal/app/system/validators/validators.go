// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, validator bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if validator == nil {
			return
		}
		if err := setValidator(ctx, db, coll, validator); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("donation_requests", donationRequestsSchema())
	ensure("fundings", fundingsSchema())

	// No validators; the collections still need to exist.
	ensure("site_settings", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure name exists.
// created is true only if this call created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	return commandErr(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErr(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErr(err, 115, "not implemented", "not supported")
}

// commandErr matches a server error by code, falling back to message text
// for drivers and proxies that rewrap it.
func commandErr(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enum[T ~string](values []T) bson.M {
	out := make(bson.A, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return bson.M{"enum": out}
}

func personRef() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"id"},
		"properties": bson.M{
			"id":    bson.M{"bsonType": "objectId"},
			"name":  bson.M{"bsonType": "string"},
			"email": bson.M{"bsonType": "string"},
		},
	}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "role", "status"},
			"properties": bson.M{
				"full_name":   bson.M{"bsonType": "string"},
				"email":       nonBlank,
				"role":        enum(models.Roles),
				"status":      enum(models.AccountStatuses),
				"blood_group": enum(bloodgroup.All),
				"auth_method": bson.M{"enum": bson.A{models.AuthMethodPassword, models.AuthMethodGoogle}},
			},
		},
	}
}

// donationRequestsSchema also rejects a donor on a request that is not
// inprogress or done.
func donationRequestsSchema() bson.M {
	var donorStatuses bson.A
	for _, s := range requeststatus.All {
		if requeststatus.DonorAllowed(s) {
			donorStatuses = append(donorStatuses, string(s))
		}
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"requester", "recipient_name", "blood_group", "status", "donation_at"},
			"properties": bson.M{
				"requester":      personRef(),
				"recipient_name": nonBlank,
				"blood_group":    enum(bloodgroup.All),
				"status":         enum(requeststatus.All),
				"donation_at":    bson.M{"bsonType": "date"},
				"donor":          personRef(),
				"history":        bson.M{"bsonType": "array"},
			},
		},
		"$or": bson.A{
			bson.M{"donor": bson.M{"$exists": false}},
			bson.M{"status": bson.M{"$in": donorStatuses}},
		},
	}
}

func fundingsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"transaction_id", "amount", "currency", "status"},
			"properties": bson.M{
				"transaction_id": nonBlank,
				"amount":         bson.M{"bsonType": "number", "minimum": 0, "exclusiveMinimum": true},
				"currency":       bson.M{"enum": bson.A{models.CurrencyBDT}},
				"status":         enum([]models.FundingStatus{models.FundingCompleted, models.FundingPending, models.FundingFailed}),
			},
		},
	}
}
