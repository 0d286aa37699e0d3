// internal/app/store/donationrequests/donationrequeststore.go
package donationrequeststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no request has the given ID.
	ErrNotFound = errors.New("donation request not found")
	// ErrStatusConflict is returned when the stored status no longer matches
	// the status the caller loaded, i.e. someone else changed it first.
	ErrStatusConflict = errors.New("donation request status changed concurrently")
	errBadGroup       = errors.New("blood group is not one of the eight ABO/Rh groups")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("donation_requests")}
}

// Create inserts req as a new pending request with a single history entry
// crediting the requester.
func (s *Store) Create(ctx context.Context, req models.DonationRequest) (models.DonationRequest, error) {
	if !req.BloodGroup.Valid() {
		return models.DonationRequest{}, errBadGroup
	}
	now := time.Now().UTC()

	req.ID = primitive.NewObjectID()
	normalizeContent(&req)
	req.Status = requeststatus.Pending
	req.Donor = nil
	requester := req.Requester.ID
	req.History = []models.StatusChange{
		requeststatus.Entry(requeststatus.Pending, requeststatus.Actor{ID: &requester, Name: req.Requester.Name}, "", now),
	}
	req.CreatedAt = now
	req.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, req); err != nil {
		return models.DonationRequest{}, err
	}
	return req, nil
}

func normalizeContent(req *models.DonationRequest) {
	req.RecipientName = normalize.Name(req.RecipientName)
	req.RecipientNameCI = text.Fold(req.RecipientName)
	req.District = normalize.Place(req.District)
	req.DistrictCI = text.Fold(req.District)
	req.Upazila = normalize.Place(req.Upazila)
	req.UpazilaCI = text.Fold(req.Upazila)
	req.Hospital = normalize.Name(req.Hospital)
	req.DonationAt = req.DonationAt.UTC()
}

// GetByID loads a request. Returns ErrNotFound if it does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.DonationRequest, error) {
	var req models.DonationRequest
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ContentUpdate holds the editable fields of a request.
type ContentUpdate struct {
	RecipientName string
	District      string
	Upazila       string
	Hospital      string
	Address       string
	BloodGroup    bloodgroup.Group
	DonationAt    time.Time
	Message       string
}

// UpdateContent rewrites the editable fields, guarded on the status the
// caller loaded. Status, donor and history are never touched here.
func (s *Store) UpdateContent(ctx context.Context, id primitive.ObjectID, expected models.RequestStatus, upd ContentUpdate) (*models.DonationRequest, error) {
	if !upd.BloodGroup.Valid() {
		return nil, errBadGroup
	}
	tmp := models.DonationRequest{
		RecipientName: upd.RecipientName,
		District:      upd.District,
		Upazila:       upd.Upazila,
		Hospital:      upd.Hospital,
		DonationAt:    upd.DonationAt,
	}
	normalizeContent(&tmp)

	set := bson.M{
		"recipient_name":    tmp.RecipientName,
		"recipient_name_ci": tmp.RecipientNameCI,
		"district":          tmp.District,
		"district_ci":       tmp.DistrictCI,
		"upazila":           tmp.Upazila,
		"upazila_ci":        tmp.UpazilaCI,
		"hospital":          tmp.Hospital,
		"address":           upd.Address,
		"blood_group":       upd.BloodGroup,
		"donation_at":       tmp.DonationAt,
		"message":           upd.Message,
		"updated_at":        time.Now().UTC(),
	}

	var out models.DonationRequest
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": expected}, bson.M{"$set": set}, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus persists a transition already applied in memory by
// requeststatus.Apply or requeststatus.Assign. from is the status the caller
// loaded; the write only succeeds if the stored status still equals it. The
// last history entry of req is appended. The donor is written only for
// statuses that may carry one and removed otherwise.
func (s *Store) UpdateStatus(ctx context.Context, from models.RequestStatus, req *models.DonationRequest) error {
	if len(req.History) == 0 {
		return errors.New("donation request has no history entry to record")
	}
	entry := req.History[len(req.History)-1]

	update := bson.M{
		"$set":  bson.M{"status": req.Status, "updated_at": req.UpdatedAt},
		"$push": bson.M{"history": entry},
	}
	if req.Donor != nil && requeststatus.DonorAllowed(req.Status) {
		update["$set"].(bson.M)["donor"] = req.Donor
	} else {
		update["$unset"] = bson.M{"donor": ""}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": req.ID, "status": from}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, req.ID)
	}
	return nil
}

// Delete removes a request, guarded on the status the caller loaded.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID, expected models.RequestStatus) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "status": expected})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

func (s *Store) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

// Filter narrows request lists. Zero values match everything.
type Filter struct {
	RequesterID *primitive.ObjectID
	DonorID     *primitive.ObjectID
	Statuses    []models.RequestStatus
	BloodGroups []bloodgroup.Group
	District    string
	Upazila     string
	// SoonestFirst orders by donation date ascending instead of newest first.
	SoonestFirst bool
}

func (f Filter) bson() bson.M {
	filter := bson.M{}
	if f.RequesterID != nil {
		filter["requester.id"] = *f.RequesterID
	}
	if f.DonorID != nil {
		filter["donor.id"] = *f.DonorID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if len(f.BloodGroups) > 0 {
		filter["blood_group"] = bson.M{"$in": f.BloodGroups}
	}
	if d := text.Fold(normalize.Place(f.District)); d != "" {
		filter["district_ci"] = d
	}
	if u := text.Fold(normalize.Place(f.Upazila)); u != "" {
		filter["upazila_ci"] = u
	}
	return filter
}

func (f Filter) sort() bson.D {
	if f.SoonestFirst {
		return bson.D{{Key: "donation_at", Value: 1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}

// Find returns one page of requests matching f.
func (s *Store) Find(ctx context.Context, f Filter, p paging.Params) ([]models.DonationRequest, error) {
	cur, err := s.c.Find(ctx, f.bson(), p.ApplyToFind(options.Find().SetSort(f.sort())))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.DonationRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of requests matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	return s.c.CountDocuments(ctx, f.bson())
}

// CountByStatus returns the number of requests per status among those
// matching f. Every status is present in the result.
func (s *Store) CountByStatus(ctx context.Context, f Filter) (map[models.RequestStatus]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: f.bson()}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[models.RequestStatus]int64, len(requeststatus.All))
	for _, st := range requeststatus.All {
		out[st] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			Status models.RequestStatus `bson:"_id"`
			N      int64                `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}

// FindExpired returns up to limit pending requests whose donation date is
// before cutoff, oldest first.
func (s *Store) FindExpired(ctx context.Context, cutoff time.Time, limit int64) ([]models.DonationRequest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "donation_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{
		"status":      requeststatus.Pending,
		"donation_at": bson.M{"$lt": cutoff.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.DonationRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
