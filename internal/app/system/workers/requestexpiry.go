// internal/app/system/workers/requestexpiry.go
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ExpiryNote is recorded in the history of requests canceled by the worker.
const ExpiryNote = "expired"

const sweepBatch = 200

// RequestStore is the part of the donation request store the worker uses.
type RequestStore interface {
	FindExpired(ctx context.Context, cutoff time.Time, limit int64) ([]models.DonationRequest, error)
	UpdateStatus(ctx context.Context, from models.RequestStatus, req *models.DonationRequest) error
}

// RequestExpiry cancels pending requests whose donation date passed more
// than grace ago.
type RequestExpiry struct {
	store    RequestStore
	audit    *auditlog.Logger
	events   *events.Dispatcher
	log      *zap.Logger
	interval time.Duration
	grace    time.Duration
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRequestExpiry creates the worker.
//
// Parameters:
//   - interval: how often to sweep (e.g., 15 minutes)
//   - grace: how long after the donation date a pending request is kept
func NewRequestExpiry(store RequestStore, audit *auditlog.Logger, ev *events.Dispatcher, logger *zap.Logger, interval, grace time.Duration) *RequestExpiry {
	return &RequestExpiry{
		store:    store,
		audit:    audit,
		events:   ev,
		log:      logger,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop. The first sweep runs immediately.
func (w *RequestExpiry) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("request expiry worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *RequestExpiry) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("request expiry worker stopped")
}

func (w *RequestExpiry) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweepLogged()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweepLogged()
		}
	}
}

func (w *RequestExpiry) sweepLogged() {
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Batch(), w.log, "request expiry sweep")
	defer cancel()

	n, err := w.Sweep(ctx)
	if err != nil {
		w.log.Error("request expiry sweep failed", zap.Int("canceled", n), zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("expired pending requests canceled", zap.Int("count", n))
	}
}

// Sweep cancels every expired pending request and returns how many it
// canceled. Requests that changed status concurrently are skipped.
func (w *RequestExpiry) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.grace)
	canceled := 0
	skipped := map[primitive.ObjectID]bool{}

	for {
		batch, err := w.store.FindExpired(ctx, cutoff, sweepBatch)
		if err != nil {
			return canceled, err
		}
		progressed := false
		for i := range batch {
			req := batch[i]
			if skipped[req.ID] {
				continue
			}
			ok, err := w.expire(ctx, &req)
			if err != nil {
				return canceled, err
			}
			if !ok {
				skipped[req.ID] = true
				continue
			}
			canceled++
			progressed = true
		}
		if len(batch) < sweepBatch || !progressed {
			return canceled, nil
		}
	}
}

func (w *RequestExpiry) expire(ctx context.Context, req *models.DonationRequest) (bool, error) {
	from := req.Status
	if err := requeststatus.Apply(req, requeststatus.Canceled, requeststatus.SystemActor, ExpiryNote, w.now()); err != nil {
		w.log.Warn("expired request cannot be canceled",
			zap.String("request_id", req.ID.Hex()),
			zap.String("status", string(from)),
			zap.Error(err))
		return false, nil
	}
	if err := w.store.UpdateStatus(ctx, from, req); err != nil {
		if isConflict(err) {
			return false, nil
		}
		return false, err
	}

	w.audit.RequestStatusChanged(ctx, nil, primitive.NilObjectID, req.ID, string(from), string(req.Status), ExpiryNote)
	e := events.ForRequest(events.RequestExpired, *req, "")
	e.From = from
	w.events.Publish(ctx, e)
	return true, nil
}

// A request deleted or moved on by someone else between the read and the
// write is skipped.
func isConflict(err error) bool {
	return errors.Is(err, donationrequeststore.ErrStatusConflict) ||
		errors.Is(err, donationrequeststore.ErrNotFound)
}
