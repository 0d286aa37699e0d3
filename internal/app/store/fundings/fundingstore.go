// internal/app/store/fundings/fundingstore.go
package fundingstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound         = errors.New("funding not found")
	ErrInvalidAmount    = errors.New("funding amount must be greater than zero")
	ErrInvalidStatus    = errors.New("invalid funding status")
	ErrDuplicateTransID = errors.New("duplicate transaction id")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("fundings")}
}

// Create records a new pending funding. A fresh transaction ID is generated
// unless the payment provider already supplied one.
func (s *Store) Create(ctx context.Context, f models.Funding) (models.Funding, error) {
	if f.Amount <= 0 {
		return models.Funding{}, ErrInvalidAmount
	}
	now := time.Now().UTC()

	f.ID = primitive.NewObjectID()
	if strings.TrimSpace(f.TransactionID) == "" {
		f.TransactionID = uuid.NewString()
	}
	f.DonorName = normalize.Name(f.DonorName)
	f.DonorEmail = normalize.Email(f.DonorEmail)
	f.Currency = models.CurrencyBDT
	f.PaymentMethod = strings.ToLower(strings.TrimSpace(f.PaymentMethod))
	f.Status = models.FundingPending
	if f.Date.IsZero() {
		f.Date = now
	}
	f.Date = f.Date.UTC()
	f.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Funding{}, ErrDuplicateTransID
		}
		return models.Funding{}, err
	}
	return f, nil
}

// GetByID loads a funding. Returns ErrNotFound if it does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Funding, error) {
	var f models.Funding
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SetStatus records the provider's outcome and returns the previous status.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status models.FundingStatus) (models.FundingStatus, error) {
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	var before models.Funding
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before).SetProjection(bson.M{"status": 1}),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return before.Status, nil
}

// Filter narrows funding lists. Zero values match everything.
type Filter struct {
	UserID   *primitive.ObjectID
	Statuses []models.FundingStatus
	Since    time.Time
}

func (f Filter) bson() bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if !f.Since.IsZero() {
		filter["date"] = bson.M{"$gte": f.Since.UTC()}
	}
	return filter
}

// Find returns one page of fundings matching f, newest first.
func (s *Store) Find(ctx context.Context, f Filter, p paging.Params) ([]models.Funding, error) {
	sort := bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}
	cur, err := s.c.Find(ctx, f.bson(), p.ApplyToFind(options.Find().SetSort(sort)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Funding
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of fundings matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	return s.c.CountDocuments(ctx, f.bson())
}

// Total is an aggregate over completed fundings.
type Total struct {
	Amount float64 `bson:"amount" json:"amount"`
	Count  int64   `bson:"count" json:"count"`
}

// Totals sums completed fundings matching f. Statuses in f are ignored.
func (s *Store) Totals(ctx context.Context, f Filter) (Total, error) {
	f.Statuses = []models.FundingStatus{models.FundingCompleted}
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: f.bson()}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"amount": bson.M{"$sum": "$amount"},
			"count":  bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return Total{}, err
	}
	defer cur.Close(ctx)

	var t Total
	if cur.Next(ctx) {
		if err := cur.Decode(&t); err != nil {
			return Total{}, err
		}
	}
	return t, cur.Err()
}

// MonthTotal is one calendar month (UTC) of completed fundings.
type MonthTotal struct {
	Year   int     `bson:"year" json:"year"`
	Month  int     `bson:"month" json:"month"`
	Amount float64 `bson:"amount" json:"amount"`
	Count  int64   `bson:"count" json:"count"`
}

// MonthlyTotals groups completed fundings dated on or after since by month,
// oldest month first. Months with no fundings are omitted.
func (s *Store) MonthlyTotals(ctx context.Context, since time.Time) ([]MonthTotal, error) {
	f := Filter{Statuses: []models.FundingStatus{models.FundingCompleted}, Since: since}
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: f.bson()}},
		{{Key: "$group", Value: bson.M{
			"_id":    bson.M{"year": bson.M{"$year": "$date"}, "month": bson.M{"$month": "$date"}},
			"amount": bson.M{"$sum": "$amount"},
			"count":  bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":    0,
			"year":   "$_id.year",
			"month":  "$_id.month",
			"amount": 1,
			"count":  1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []MonthTotal{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
