package server

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dispatcher fans events out to the connections currently registered for a
// route. Delivery is fire-and-forget: a failed write never aborts delivery
// to the remaining subscribers and never surfaces to the caller. A handle
// whose write fails is dropped from the registry immediately rather than
// waiting for its own read loop to notice the dead transport.
type Dispatcher struct {
	registry *Registry
	metrics  *Metrics
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// SetMetrics attaches metrics to the dispatcher
func (d *Dispatcher) SetMetrics(metrics *Metrics) {
	d.metrics = metrics
}

// BroadcastToChannel serializes event once and writes it to every current
// subscriber of the channel route.
func (d *Dispatcher) BroadcastToChannel(channelID uuid.UUID, event any) {
	d.deliver(d.registry.SnapshotChannel(channelID), "channel", channelID, event)
}

// SendToUser delivers event to every device connected on the user's
// personal stream.
func (d *Dispatcher) SendToUser(userID uuid.UUID, event any) {
	d.deliver(d.registry.SnapshotUser(userID), "user", userID, event)
}

// Relay forwards a signaling event. With a target user it is sent to that
// user's devices and a copy always goes to the originating channel, so the
// sender's own channel view reflects the relay. Without a target it is a
// plain channel broadcast.
func (d *Dispatcher) Relay(channelID uuid.UUID, targetUserID *uuid.UUID, event any) {
	if targetUserID != nil {
		d.SendToUser(*targetUserID, event)
	}
	d.BroadcastToChannel(channelID, event)
}

func (d *Dispatcher) deliver(conns []Sender, route string, key uuid.UUID, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		d.log.Error().Err(err).Str("route", route).Stringer("key", key).Msg("failed to serialize event")
		return
	}

	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			d.log.Warn().Err(err).Str("route", route).Stringer("key", key).Msg("delivery failed, dropping handle")
			d.registry.Drop(conn)
			if d.metrics != nil {
				d.metrics.RecordDeliveryFailure()
			}
		}
	}

	if d.metrics != nil {
		d.metrics.RecordFanout(route, len(conns))
	}
}
