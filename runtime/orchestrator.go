// Package runtime holds the realtime core: connection bindings, presence,
// rooms and message delivery, all driven by a single event loop.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var _ contract.IOrchestrator = (*Orchestrator)(nil)

// Orchestrator serializes every connection event and message delivery on one
// goroutine. The registry, router and presence tracker are therefore lock free.
type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	sessions   *SessionTable
	registry   *ConnectionRegistry
	router     *RoomRouter
	presence   *PresenceTracker
	delivery   *DeliveryCoordinator
	commands   chan command
	done       chan struct{}
	ready      chan struct{}
	stopOnce   sync.Once
	readyOnce  sync.Once
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, bufferSize int, opts ...DeliveryOption) *Orchestrator {
	sessions := NewSessionTable()
	registry := NewConnectionRegistry()
	router := NewRoomRouter(log, sessions)
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		sessions:   sessions,
		registry:   registry,
		router:     router,
		presence:   NewPresenceTracker(log, registry, sessions),
		delivery:   NewDeliveryCoordinator(log, registry, router, sessions, opts...),
		commands:   make(chan command, bufferSize),
		done:       make(chan struct{}),
		ready:      make(chan struct{}),
	}
}

// Start registers the event loop under the supervisor and blocks until the
// context is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	select {
	case <-o.done:
		return errors.ErrLoopStopped
	default:
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-o.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	o.supervisor.Add(workers.NewEventLoopWorker(o.log, o.commands, o.handle))
	o.readyOnce.Do(func() { close(o.ready) })
	o.log.Info("Starting realtime event loop")
	o.supervisor.Run(ctx)
	return nil
}

// Ready is closed once the event loop has been started.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

// Stop rejects new commands and stops the event loop.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.log.Info("Requesting orchestrator shutdown")
		close(o.done)
		o.supervisor.Stop()
	})
}

func (o *Orchestrator) Connect(ctx context.Context, sink contract.EventSink) (domain.ConnectionID, error) {
	connID := domain.ConnectionID(uuid.NewString())
	return connID, o.dispatch(ctx, connectCmd{connID: connID, sink: sink})
}

func (o *Orchestrator) Identify(ctx context.Context, connID domain.ConnectionID, identity domain.Identity) error {
	return o.dispatch(ctx, identifyCmd{connID: connID, identity: identity})
}

func (o *Orchestrator) Join(ctx context.Context, connID domain.ConnectionID, conversationID domain.ConversationID) error {
	return o.dispatch(ctx, joinCmd{connID: connID, conversationID: conversationID})
}

func (o *Orchestrator) Leave(ctx context.Context, connID domain.ConnectionID, conversationID domain.ConversationID) error {
	return o.dispatch(ctx, leaveCmd{connID: connID, conversationID: conversationID})
}

// Disconnect unwinds the connection binding, its rooms and its session in a
// single loop step.
func (o *Orchestrator) Disconnect(ctx context.Context, connID domain.ConnectionID) error {
	return o.dispatch(ctx, disconnectCmd{connID: connID})
}

// Deliver schedules realtime delivery of an already persisted message.
func (o *Orchestrator) Deliver(ctx context.Context, record domain.MessageRecord) error {
	return o.dispatch(ctx, deliverCmd{record: record})
}

// Presence returns the identities currently online.
func (o *Orchestrator) Presence(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := o.dispatch(ctx, presenceQuery{reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, o.done, reply)
}

// ConnectionsFor returns the live connections of an identity.
func (o *Orchestrator) ConnectionsFor(ctx context.Context, identityID string) ([]domain.ConnectionID, error) {
	reply := make(chan []domain.ConnectionID, 1)
	if err := o.dispatch(ctx, connectionsQuery{identityID: identityID, reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, o.done, reply)
}

func (o *Orchestrator) dispatch(ctx context.Context, cmd command) error {
	select {
	case <-o.done:
		return errors.ErrLoopStopped
	default:
	}
	select {
	case o.commands <- cmd:
		return nil
	case <-o.done:
		return errors.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		return zero, errors.ErrLoopStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// handle runs on the event loop. A panicking command is logged and dropped so
// that the following commands still see a consistent state.
func (o *Orchestrator) handle(ctx context.Context, cmd command) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Command failed", "command", fmt.Sprintf("%T", cmd), "panic", r)
		}
	}()
	cmd.apply(ctx, o)
}

type command interface {
	apply(ctx context.Context, o *Orchestrator)
}

type connectCmd struct {
	connID domain.ConnectionID
	sink   contract.EventSink
}

func (c connectCmd) apply(_ context.Context, o *Orchestrator) {
	o.sessions.Attach(c.connID, c.sink)
	o.log.Debug("Connection opened", "connection_id", c.connID, "connections", o.sessions.Len())
}

type identifyCmd struct {
	connID   domain.ConnectionID
	identity domain.Identity
}

func (c identifyCmd) apply(ctx context.Context, o *Orchestrator) {
	if _, ok := o.sessions.Sink(c.connID); !ok {
		o.log.Debug("Identify on unknown connection ignored", "connection_id", c.connID)
		return
	}
	binding := o.registry.Bind(c.connID, c.identity)
	if !binding.Previous.IsZero() {
		// Rooms were authorized for the previous identity.
		rooms := o.router.DropConnection(c.connID)
		o.log.Debug("Connection rebound, rooms dropped",
			"connection_id", c.connID,
			"previous_identity_id", binding.Previous.ID,
			"rooms", len(rooms))
	}
	o.log.Debug("Connection identified",
		"connection_id", c.connID,
		"identity_id", c.identity.ID,
		"kind", c.identity.Kind)
	o.presence.OnIdentify(ctx, c.connID, c.identity, binding)
}

type joinCmd struct {
	connID         domain.ConnectionID
	conversationID domain.ConversationID
}

func (c joinCmd) apply(_ context.Context, o *Orchestrator) {
	if _, ok := o.sessions.Sink(c.connID); !ok {
		return
	}
	o.router.Join(c.connID, c.conversationID)
}

type leaveCmd struct {
	connID         domain.ConnectionID
	conversationID domain.ConversationID
}

func (c leaveCmd) apply(_ context.Context, o *Orchestrator) {
	o.router.Leave(c.connID, c.conversationID)
}

type disconnectCmd struct {
	connID domain.ConnectionID
}

func (c disconnectCmd) apply(ctx context.Context, o *Orchestrator) {
	rooms := o.router.DropConnection(c.connID)
	identity, transition := o.registry.Unbind(c.connID)
	o.sessions.Detach(c.connID)
	o.log.Debug("Connection closed",
		"connection_id", c.connID,
		"identity_id", identity.ID,
		"rooms", len(rooms))
	o.presence.OnDisconnect(ctx, identity, transition)
}

type deliverCmd struct {
	record domain.MessageRecord
}

func (c deliverCmd) apply(ctx context.Context, o *Orchestrator) {
	report := o.delivery.Deliver(ctx, c.record)
	o.log.Debug("Message delivered",
		"message_id", c.record.ID,
		"room_targets", len(report.RoomTargets),
		"direct_targets", len(report.DirectTargets))
}

type presenceQuery struct {
	reply chan<- []string
}

func (c presenceQuery) apply(_ context.Context, o *Orchestrator) {
	c.reply <- o.presence.Snapshot()
}

type connectionsQuery struct {
	identityID string
	reply      chan<- []domain.ConnectionID
}

func (c connectionsQuery) apply(_ context.Context, o *Orchestrator) {
	c.reply <- o.registry.ConnectionsFor(c.identityID)
}
