// Package events fans request lifecycle notifications out to the live
// websocket feed and, when configured, a RabbitMQ topic exchange.
package events

import (
	"context"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.uber.org/zap"
)

// Kind is the closed set of request events.
type Kind int

const (
	RequestCreated Kind = iota + 1
	RequestUpdated
	RequestDeleted
	RequestStatusChanged
	RequestDonorAssigned
	RequestExpired
)

// Kinds lists every event kind.
var Kinds = []Kind{
	RequestCreated,
	RequestUpdated,
	RequestDeleted,
	RequestStatusChanged,
	RequestDonorAssigned,
	RequestExpired,
}

// RoutingKey is the AMQP routing key and the "type" field of the JSON body.
func (k Kind) RoutingKey() string {
	switch k {
	case RequestCreated:
		return "request.created"
	case RequestUpdated:
		return "request.updated"
	case RequestDeleted:
		return "request.deleted"
	case RequestStatusChanged:
		return "request.status_changed"
	case RequestDonorAssigned:
		return "request.donor_assigned"
	case RequestExpired:
		return "request.expired"
	}
	return "request.unknown"
}

func (k Kind) String() string { return k.RoutingKey() }

// Event is what subscribers receive. It carries no contact details; clients
// fetch the request if they are allowed to see more.
type Event struct {
	Kind       Kind                 `json:"-"`
	Type       string               `json:"type"`
	RequestID  string               `json:"request_id"`
	Status     models.RequestStatus `json:"status,omitempty"`
	From       models.RequestStatus `json:"from,omitempty"`
	BloodGroup bloodgroup.Group     `json:"blood_group,omitempty"`
	District   string               `json:"district,omitempty"`
	Upazila    string               `json:"upazila,omitempty"`
	ActorID    string               `json:"actor_id,omitempty"`
	At         time.Time            `json:"at"`
}

// ForRequest builds an event of kind k describing req.
func ForRequest(k Kind, req models.DonationRequest, actorID string) Event {
	return Event{
		Kind:       k,
		Type:       k.RoutingKey(),
		RequestID:  req.ID.Hex(),
		Status:     req.Status,
		BloodGroup: req.BloodGroup,
		District:   req.District,
		Upazila:    req.Upazila,
		ActorID:    actorID,
		At:         time.Now().UTC(),
	}
}

// Publisher delivers an event to one destination.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Dispatcher sends every event to all registered publishers. Delivery is
// best effort: a failing publisher is logged and does not affect the others
// or the caller. A nil *Dispatcher discards events.
type Dispatcher struct {
	log   *zap.Logger
	sinks []Publisher
}

// NewDispatcher creates a dispatcher over sinks. Nil sinks are skipped.
func NewDispatcher(log *zap.Logger, sinks ...Publisher) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{log: log}
	for _, s := range sinks {
		d.Add(s)
	}
	return d
}

// Add registers another publisher.
func (d *Dispatcher) Add(p Publisher) {
	if p != nil {
		d.sinks = append(d.sinks, p)
	}
}

// Publish delivers e to every sink.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	if e.Type == "" {
		e.Type = e.Kind.RoutingKey()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	for _, s := range d.sinks {
		if err := s.Publish(ctx, e); err != nil {
			d.log.Warn("event publish failed",
				zap.String("type", e.Type),
				zap.String("request_id", e.RequestID),
				zap.Error(err))
		}
	}
}
