package userstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrNotFound is returned by updates that matched no user.
	ErrNotFound  = errors.New("user not found")
	errBadRole   = errors.New(`role must be "admin"|"donor"|"volunteer"`)
	errBadStatus = errors.New(`status must be "active"|"blocked"|"pending"|"inactive"`)
	errBadGroup  = errors.New("blood group is not one of the eight ABO/Rh groups")
)

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads the users with the given IDs. Missing IDs are skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"password_hash": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
// Role defaults to donor and status to active.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.District = normalize.Place(u.District)
	u.DistrictCI = text.Fold(u.District)
	u.Upazila = normalize.Place(u.Upazila)
	u.UpazilaCI = text.Fold(u.Upazila)
	if u.Role == "" {
		u.Role = models.RoleDonor
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}

	if !u.Role.Valid() {
		return models.User{}, errBadRole
	}
	if !u.Status.Valid() {
		return models.User{}, errBadStatus
	}
	if u.BloodGroup != "" && !u.BloodGroup.Valid() {
		return models.User{}, errBadGroup
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Email, role and status are not editable here.
type ProfileUpdate struct {
	FullName   string
	AvatarURL  string
	BloodGroup bloodgroup.Group
	District   string
	Upazila    string
}

// UpdateProfile applies upd and returns the updated user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	if upd.BloodGroup != "" && !upd.BloodGroup.Valid() {
		return nil, errBadGroup
	}
	name := normalize.Name(upd.FullName)
	district := normalize.Place(upd.District)
	upazila := normalize.Place(upd.Upazila)
	set := bson.M{
		"full_name":    name,
		"full_name_ci": text.Fold(name),
		"avatar_url":   upd.AvatarURL,
		"blood_group":  upd.BloodGroup,
		"district":     district,
		"district_ci":  text.Fold(district),
		"upazila":      upazila,
		"upazila_ci":   text.Fold(upazila),
		"updated_at":   time.Now().UTC(),
	}

	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return errBadRole
	}
	return s.set(ctx, id, bson.M{"role": role})
}

// SetStatus changes a user's account status.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status models.AccountStatus) error {
	if !status.Valid() {
		return errBadStatus
	}
	return s.set(ctx, id, bson.M{"status": status})
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.set(ctx, id, bson.M{"password_hash": hash})
}

// MarkDonated records the date of the user's most recent donation.
func (s *Store) MarkDonated(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.set(ctx, id, bson.M{"last_donation_at": at.UTC()})
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter narrows the admin user list. Zero values match everything.
type ListFilter struct {
	Role       models.Role
	Status     models.AccountStatus
	BloodGroup bloodgroup.Group
	Search     string // prefix of name or email
}

func (f ListFilter) bson() bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.BloodGroup != "" {
		filter["blood_group"] = f.BloodGroup
	}
	if q := normalize.QueryParam(f.Search); q != "" {
		qFold := regexp.QuoteMeta(text.Fold(q))
		filter["$or"] = []bson.M{
			{"full_name_ci": bson.M{"$regex": "^" + qFold, "$options": "i"}},
			{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(normalize.Email(q))}},
		}
	}
	return filter
}

// Find returns one page of users ordered by name.
func (s *Store) Find(ctx context.Context, f ListFilter, p paging.Params) ([]models.User, error) {
	opts := p.ApplyToFind(options.Find().SetSort(bson.D{
		{Key: "full_name_ci", Value: 1},
		{Key: "_id", Value: 1},
	}))
	cur, err := s.c.Find(ctx, f.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of users matching f.
func (s *Store) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.bson())
}

// DonorQuery is a public donor search.
type DonorQuery struct {
	Groups   []bloodgroup.Group // empty matches any group
	District string
	Upazila  string
}

func (q DonorQuery) bson() bson.M {
	filter := bson.M{"role": models.RoleDonor, "status": models.StatusActive}
	if len(q.Groups) > 0 {
		filter["blood_group"] = bson.M{"$in": q.Groups}
	}
	if d := text.Fold(normalize.Place(q.District)); d != "" {
		filter["district_ci"] = d
	}
	if u := text.Fold(normalize.Place(q.Upazila)); u != "" {
		filter["upazila_ci"] = u
	}
	return filter
}

// SearchDonors returns active donors matching q, most universally useful
// blood groups first (O- before AB+), then by name.
func (s *Store) SearchDonors(ctx context.Context, q DonorQuery, p paging.Params) ([]models.User, int64, error) {
	filter := q.bson()
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ordered := bloodgroup.ByPriority()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{"_rank": bson.M{"$indexOfArray": bson.A{ordered, "$blood_group"}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_rank", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$skip", Value: p.Skip()}},
		{{Key: "$limit", Value: int64(p.Limit)}},
		{{Key: "$project", Value: bson.M{"_rank": 0, "password_hash": 0}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByRole returns the number of users per role.
func (s *Store) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[models.Role]int64, len(models.Roles))
	for cur.Next(ctx) {
		var row struct {
			Role models.Role `bson:"_id"`
			N    int64       `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Role] = row.N
	}
	return out, cur.Err()
}
