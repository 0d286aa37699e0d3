// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Services is filled in by Startup and shared by the later hooks.
type DBDeps struct {
	BloodHubMongoClient   *mongo.Client
	BloodHubMongoDatabase *mongo.Database

	Services *Services
}
