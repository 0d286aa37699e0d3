// internal/app/store/settings/settingsstore.go
package settingsstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the site_settings collection.
// There is exactly one document, keyed by models.SiteSettingsKey.
type Store struct {
	c *mongo.Collection
}

// New creates a new settings store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("site_settings")}
}

// Defaults is what Get returns before an admin has saved anything.
func Defaults() models.SiteSettings {
	return models.SiteSettings{
		Key:      models.SiteSettingsKey,
		SiteName: models.DefaultSiteName,
	}
}

// Get returns the site settings, or Defaults() if none are saved.
func (s *Store) Get(ctx context.Context) (models.SiteSettings, error) {
	var settings models.SiteSettings
	err := s.c.FindOne(ctx, bson.M{"key": models.SiteSettingsKey}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Defaults(), nil
	}
	if err != nil {
		return models.SiteSettings{}, err
	}
	return settings, nil
}

// Save upserts the settings document.
func (s *Store) Save(ctx context.Context, settings models.SiteSettings) error {
	now := time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"key":                    models.SiteSettingsKey,
			"site_name":              settings.SiteName,
			"contact_email":          settings.ContactEmail,
			"require_donor_approval": settings.RequireDonorApproval,
			"funding_goal":           settings.FundingGoal,
			"updated_at":             now,
			"updated_by_id":          settings.UpdatedByID,
			"updated_by_name":        settings.UpdatedByName,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"key": models.SiteSettingsKey}, update, options.Update().SetUpsert(true))
	return err
}

// Exists reports whether settings have ever been saved.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"key": models.SiteSettingsKey})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
