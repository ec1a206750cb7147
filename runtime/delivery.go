package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"

	"github.com/samber/lo"
)

// DeliveryReport lists who a message reached through each path.
type DeliveryReport struct {
	RoomTargets   []domain.ConnectionID
	DirectTargets []domain.ConnectionID
	Failed        []domain.ConnectionID
}

// DeliveryCoordinator pushes persisted messages to live connections.
//
// Delivery is at-least-once: a connection joined to the conversation room
// that also belongs to the receiver gets the event from both paths unless
// dedup is enabled. Clients are expected to be idempotent on message id.
type DeliveryCoordinator struct {
	log      *slog.Logger
	registry *ConnectionRegistry
	router   *RoomRouter
	sessions *SessionTable
	dedup    bool
}

type DeliveryOption func(*DeliveryCoordinator)

// WithDedup skips direct targets already reached by the room broadcast.
func WithDedup(enabled bool) DeliveryOption {
	return func(d *DeliveryCoordinator) { d.dedup = enabled }
}

func NewDeliveryCoordinator(log *slog.Logger, registry *ConnectionRegistry, router *RoomRouter,
	sessions *SessionTable, opts ...DeliveryOption) *DeliveryCoordinator {
	d := &DeliveryCoordinator{log: log, registry: registry, router: router, sessions: sessions}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver must only be called once the record has been persisted.
func (d *DeliveryCoordinator) Deliver(ctx context.Context, record domain.MessageRecord) DeliveryReport {
	evt := event.NewMessage{Record: record}
	var report DeliveryReport

	// 1. Everyone looking at the conversation
	report.RoomTargets, report.Failed = d.router.BroadcastToRoom(ctx, record.ConversationID, evt)

	// 2. The receiver's sessions, even when the thread is not open
	receiverConns := d.registry.ConnectionsFor(record.ReceiverID)
	if len(receiverConns) == 0 {
		d.log.Debug("Receiver has no live connection",
			"identity_id", record.ReceiverID,
			"message_id", record.ID)
	}
	if d.dedup {
		receiverConns = lo.Without(receiverConns, report.RoomTargets...)
	}
	for _, connID := range receiverConns {
		if err := d.sessions.Emit(ctx, d.log, connID, evt); err != nil {
			report.Failed = append(report.Failed, connID)
			continue
		}
		report.DirectTargets = append(report.DirectTargets, connID)
	}

	if len(report.Failed) > 0 {
		d.log.Warn("Message partially delivered",
			"message_id", record.ID,
			"conversation_id", record.ConversationID,
			"failed", len(report.Failed))
	}
	return report
}
