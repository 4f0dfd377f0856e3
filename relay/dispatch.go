// Package relay contains the routing core: the per-socket connection actor
// and the dispatcher that consumes every inbound message and fans it out to
// recipient connections or hands it to the system responder.
package relay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/onnwee/chat-relay/event"
	"github.com/onnwee/chat-relay/registry"
	"github.com/onnwee/chat-relay/telemetry"
)

// Responder handles messages addressed to the system address. Implementations
// must call deliver for the loading event and again for the final result (or
// an error event); deliver is safe to call from any goroutine.
type Responder interface {
	Respond(ctx context.Context, req event.Message, deliver func(event.Message))
}

const inboundQueueSize = 1024

// Dispatcher is the single logical consumer of the process-wide inbound
// queue. The queue is bounded: when it fills, Enqueue blocks the producing
// reader loop, so a reader slows down rather than the process growing
// without bound.
type Dispatcher struct {
	reg       *registry.Registry
	responder Responder
	inbound   chan event.Envelope
}

func NewDispatcher(reg *registry.Registry, responder Responder) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		responder: responder,
		inbound:   make(chan event.Envelope, inboundQueueSize),
	}
}

// Enqueue queues one inbound envelope for dispatch. It blocks when the queue
// is full and returns early only if ctx is cancelled.
func (d *Dispatcher) Enqueue(ctx context.Context, env event.Envelope) error {
	select {
	case d.inbound <- env:
		if telemetry.MessagesInbound != nil {
			telemetry.MessagesInbound.Inc()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes the inbound queue until ctx is cancelled. Messages from one
// sender are dequeued in the order its reader produced them; cross-sender
// interleaving is unspecified.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-d.inbound:
			telemetry.TimeFunc(telemetry.DispatchDuration, func() {
				d.dispatch(ctx, env)
			})
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, env event.Envelope) {
	msg := env.Msg
	if msg.To == event.SystemAddress {
		if telemetry.BotRequests != nil {
			telemetry.BotRequests.Inc()
		}
		// Replies go back to the sender's own connection set; a user with
		// several devices sees its loading/result pair on all of them.
		d.responder.Respond(ctx, msg, d.DeliverToUser)
		return
	}

	d.DeliverToUser(msg)
}

// DeliverToUser fans one message out to every open connection of msg.To.
// Recipient offline is a normal condition, not a delivery failure.
func (d *Dispatcher) DeliverToUser(msg event.Message) {
	ids, ok := d.reg.ConnectionsFor(msg.To)
	if !ok {
		slog.Info("recipient offline, dropping message",
			slog.Uint64("to", msg.To), slog.String("msg_id", msg.MsgID))
		telemetry.CountDrop(telemetry.DropOffline)
		return
	}
	for _, id := range ids {
		connID := id
		// One task per recipient connection: a slow recipient cannot stall
		// dispatch of the next inbound message or delivery to its peers.
		telemetry.Go("deliver", func() {
			d.deliver(connID, msg)
		})
	}
}

// deliver pushes msg onto one connection's outbound channel. The push never
// blocks: a full buffer means the connection's writer is stalled, and the
// message is dropped and counted instead of wedging the delivery task.
func (d *Dispatcher) deliver(connID uuid.UUID, msg event.Message) {
	ch, ok := d.reg.ChannelFor(connID)
	if !ok {
		// Lost the race with disconnection.
		telemetry.CountDrop(telemetry.DropOffline)
		return
	}
	select {
	case ch <- msg:
		if telemetry.MessagesDelivered != nil {
			telemetry.MessagesDelivered.Inc()
		}
	default:
		slog.Warn("outbound buffer full, dropping message",
			slog.String("conn", connID.String()), slog.String("msg_id", msg.MsgID))
		telemetry.CountDrop(telemetry.DropBackpressure)
	}
}
