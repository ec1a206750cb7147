package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

type RoomSet map[domain.ConversationID]struct{}

// RoomRouter owns room membership. It keeps a forward index room -> connections
// for broadcasts and a reverse index connection -> rooms so that a disconnect
// only touches the rooms of that connection.
type RoomRouter struct {
	log         *slog.Logger
	sessions    *SessionTable
	roomMembers map[domain.ConversationID]ConnSet
	memberships map[domain.ConnectionID]RoomSet
}

func NewRoomRouter(log *slog.Logger, sessions *SessionTable) *RoomRouter {
	return &RoomRouter{
		log:         log,
		sessions:    sessions,
		roomMembers: make(map[domain.ConversationID]ConnSet),
		memberships: make(map[domain.ConnectionID]RoomSet),
	}
}

// Join adds the connection to a room. Authorization is checked by the caller.
func (r *RoomRouter) Join(connID domain.ConnectionID, conversationID domain.ConversationID) {
	if conversationID == "" {
		return
	}
	members, ok := r.roomMembers[conversationID]
	if !ok {
		members = make(ConnSet)
		r.roomMembers[conversationID] = members
	}
	members[connID] = struct{}{}

	rooms, ok := r.memberships[connID]
	if !ok {
		rooms = make(RoomSet)
		r.memberships[connID] = rooms
	}
	rooms[conversationID] = struct{}{}
}

// Leave removes the connection from a room, no-op if it was not a member.
func (r *RoomRouter) Leave(connID domain.ConnectionID, conversationID domain.ConversationID) {
	if members, ok := r.roomMembers[conversationID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.roomMembers, conversationID)
		}
	}
	if rooms, ok := r.memberships[connID]; ok {
		delete(rooms, conversationID)
		if len(rooms) == 0 {
			delete(r.memberships, connID)
		}
	}
}

// DropConnection removes a connection from every room it joined and returns
// those rooms. It must run on disconnect before the handle is discarded.
func (r *RoomRouter) DropConnection(connID domain.ConnectionID) []domain.ConversationID {
	rooms, ok := r.memberships[connID]
	if !ok {
		return nil
	}
	dropped := make([]domain.ConversationID, 0, len(rooms))
	for conversationID := range rooms {
		dropped = append(dropped, conversationID)
		if members, ok := r.roomMembers[conversationID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.roomMembers, conversationID)
			}
		}
	}
	delete(r.memberships, connID)
	slices.Sort(dropped)
	return dropped
}

// Members returns the connections currently joined to a room, sorted.
func (r *RoomRouter) Members(conversationID domain.ConversationID) []domain.ConnectionID {
	members := r.roomMembers[conversationID]
	if len(members) == 0 {
		return nil
	}
	ids := lo.Keys(members)
	slices.Sort(ids)
	return ids
}

func (r *RoomRouter) RoomsOf(connID domain.ConnectionID) []domain.ConversationID {
	rooms := r.memberships[connID]
	if len(rooms) == 0 {
		return nil
	}
	ids := lo.Keys(rooms)
	slices.Sort(ids)
	return ids
}

// BroadcastToRoom sends the event once to every member connection.
// It returns the connections that accepted the event and those that failed.
func (r *RoomRouter) BroadcastToRoom(ctx context.Context, conversationID domain.ConversationID,
	evt event.RealtimeEvent) (reached, failed []domain.ConnectionID) {
	for _, connID := range r.Members(conversationID) {
		if err := r.sessions.Emit(ctx, r.log, connID, evt); err != nil {
			failed = append(failed, connID)
			continue
		}
		reached = append(reached, connID)
	}
	return reached, failed
}
