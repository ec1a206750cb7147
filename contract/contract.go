//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself, the supervisor does
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker
// for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the write side of one live connection.
// Consume must never block: a sink that cannot accept the event returns an error.
type EventSink interface {
	Consume(ctx context.Context, e event.RealtimeEvent) error
}

// ConversationAuthorizer decides whether an identity may join a conversation room.
type ConversationAuthorizer interface {
	IsAuthorizedForConversation(ctx context.Context, identity domain.Identity, conversationID domain.ConversationID) bool
}

// IdentityVerifier checks the optional token carried by an identify event.
type IdentityVerifier interface {
	VerifyIdentify(token string, identity domain.Identity) error
}

// IOrchestrator is the entry point of the realtime core. Every call is
// serialized on a single event loop.
type IOrchestrator interface {
	Connect(ctx context.Context, sink EventSink) (domain.ConnectionID, error)
	Identify(ctx context.Context, connID domain.ConnectionID, identity domain.Identity) error
	Join(ctx context.Context, connID domain.ConnectionID, conversationID domain.ConversationID) error
	Leave(ctx context.Context, connID domain.ConnectionID, conversationID domain.ConversationID) error
	Disconnect(ctx context.Context, connID domain.ConnectionID) error
	Deliver(ctx context.Context, record domain.MessageRecord) error
	Presence(ctx context.Context) ([]string, error)
}
