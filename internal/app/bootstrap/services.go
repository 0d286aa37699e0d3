// internal/app/bootstrap/services.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/app/system/exportsink"
	"github.com/dalemusser/bloodhub/internal/app/system/livefeed"
	"github.com/dalemusser/bloodhub/internal/app/system/ratelimit"
	"github.com/dalemusser/bloodhub/internal/app/system/workers"
)

// Services are the long-lived runtime components built in Startup and
// torn down in Shutdown. Optional ones stay nil when not configured.
type Services struct {
	Audit   *auditlog.Logger
	Events  *events.Dispatcher
	Feed    *livefeed.Hub
	Limiter *ratelimit.LoginLimiter

	AMQP    *events.AMQPPublisher
	Exports *exportsink.S3Sink
	Expiry  *workers.RequestExpiry

	stopFeed context.CancelFunc
}
