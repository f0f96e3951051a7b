package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/realtime/event"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// Observer receives realtime events for one audience. Delivery is
// best-effort, at-most-once: an observer that is slow or absent simply
// misses events.
type Observer interface {
	ID() string
	Audience() string
	// Deliver hands a serialized envelope to the observer without blocking.
	// Returns false when the observer could not take it.
	Deliver(data []byte) bool
	// Close releases observer resources after unregistration.
	Close()
}

// LocationSink consumes vehicle position reports ingested over the realtime
// channel.
type LocationSink interface {
	ReportLocation(ctx context.Context, vehicleID uuid.UUID, lat, lon float64) error
}

// Envelope is the wire format for outbound events.
type Envelope struct {
	Type string      `json:"type"`
	Data event.Event `json:"data"`
}

type outbound struct {
	audience string
	data     []byte
}

// Hub fans out dispatch events to subscribed observers, partitioned by
// audience. Publish never blocks and never fails the state transition that
// produced the event.
type Hub struct {
	observers    map[Observer]bool
	register     chan Observer
	unregister   chan Observer
	broadcast    chan outbound
	locationSink LocationSink
	logger       *logger.Logger
}

// NewHub creates a new hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		observers:  make(map[Observer]bool),
		register:   make(chan Observer),
		unregister: make(chan Observer),
		broadcast:  make(chan outbound, 256),
		logger:     log,
	}
}

// SetLocationSink wires the consumer for inbound location reports. Must be
// called before Run.
func (h *Hub) SetLocationSink(sink LocationSink) {
	h.locationSink = sink
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case obs := <-h.register:
			h.observers[obs] = true
			h.logger.Info("Observer registered",
				logger.String("observer_id", obs.ID()),
				logger.String("audience", obs.Audience()),
			)

		case obs := <-h.unregister:
			if _, ok := h.observers[obs]; ok {
				delete(h.observers, obs)
				obs.Close()
				h.logger.Info("Observer unregistered",
					logger.String("observer_id", obs.ID()),
				)
			}

		case msg := <-h.broadcast:
			for obs := range h.observers {
				if msg.audience != event.AudienceAll && obs.Audience() != msg.audience {
					continue
				}
				if !obs.Deliver(msg.data) {
					h.logger.Warn("Observer dropped event",
						logger.String("observer_id", obs.ID()),
					)
				}
			}
		}
	}
}

// Register registers a new observer.
func (h *Hub) Register(obs Observer) {
	h.register <- obs
}

// Unregister removes an observer.
func (h *Hub) Unregister(obs Observer) {
	h.unregister <- obs
}

// Publish delivers the event to currently subscribed observers matching its
// audience. Non-blocking: if the hub is saturated the event is dropped and
// logged, never stalling the caller.
func (h *Hub) Publish(evt event.Event) {
	data, err := json.Marshal(Envelope{Type: evt.Name(), Data: evt})
	if err != nil {
		h.logger.Error("Failed to marshal event", logger.Err(err),
			logger.String("event", evt.Name()))
		return
	}

	select {
	case h.broadcast <- outbound{audience: evt.Audience(), data: data}:
	default:
		h.logger.Warn("Realtime broadcast buffer full, dropping event",
			logger.String("event", evt.Name()))
	}
}

// ingestLocation validates nothing beyond shape; that happened at the
// client. It forwards the report to the configured sink.
func (h *Hub) ingestLocation(ctx context.Context, vehicleID uuid.UUID, lat, lon float64) {
	if h.locationSink == nil {
		return
	}
	if err := h.locationSink.ReportLocation(ctx, vehicleID, lat, lon); err != nil {
		h.logger.Warn("Location report rejected",
			logger.String("vehicle_id", vehicleID.String()),
			logger.Err(err),
		)
	}
}
