// Package websocket is the realtime transport: it turns socket frames into
// orchestrator commands and drains each connection sink onto its socket.
package websocket

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/sink"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	EventIdentify = "identify"
	EventJoin     = "join"
	EventLeave    = "leave"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Config struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

type Handler struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	verifier     contract.IdentityVerifier
	authorizer   contract.ConversationAuthorizer
	upgrader     websocket.Upgrader
	config       Config
}

func NewHandler(
	log *slog.Logger,
	orchestrator contract.IOrchestrator,
	verifier contract.IdentityVerifier,
	authorizer contract.ConversationAuthorizer,
	config Config,
) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(config.AllowedOrigins) == 0 || origin == "" || lo.Contains(config.AllowedOrigins, origin)
		},
	}
	return &Handler{
		log:          log,
		orchestrator: orchestrator,
		verifier:     verifier,
		authorizer:   authorizer,
		upgrader:     upgrader,
		config:       config,
	}
}

// connection is owned by the goroutine serving the upgrade request. The write
// pump is the only writer of conn.
type connection struct {
	h        *Handler
	log      *slog.Logger
	conn     *websocket.Conn
	sink     *sink.ConnectionSink
	id       domain.ConnectionID
	identity domain.Identity
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connSink := sink.NewConnectionSink(h.config.SendBuffer)
	connID, err := h.orchestrator.Connect(ctx, connSink)
	if err != nil {
		h.log.Warn("Unable to register connection", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server unavailable"))
		_ = conn.Close()
		return
	}

	c := &connection{
		h:    h,
		log:  h.log.With("connection_id", connID),
		conn: conn,
		sink: connSink,
		id:   connID,
	}
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump()
	}()

	c.readPump(ctx)

	// The socket is gone: unwind every trace of the connection in one step.
	// The request context is already cancelled at this point.
	if err := h.orchestrator.Disconnect(context.Background(), connID); err != nil {
		c.log.Debug("Disconnect not dispatched", "error", err)
	}
	connSink.Close()
	<-written
	_ = conn.Close()
}

func (c *connection) readPump(ctx context.Context) {
	cfg := c.h.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket closed unexpectedly", "error", err)
			}
			return
		}
		if err := c.handle(ctx, data); err != nil {
			if stderrors.Is(err, errors.ErrLoopStopped) || ctx.Err() != nil {
				return
			}
		}
	}
}

// handle never fails the connection for a bad client event: the event is
// ignored and the client gets an error frame.
func (c *connection) handle(ctx context.Context, data []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
		c.reject("", "malformed event")
		return nil
	}

	var err error
	switch envelope.Event {
	case EventIdentify:
		err = c.identify(ctx, envelope.Data)
	case EventJoin:
		err = c.join(ctx, envelope.Data)
	case EventLeave:
		var conversationID domain.ConversationID
		if err = json.Unmarshal(envelope.Data, &conversationID); err != nil {
			c.reject(envelope.Event, "conversation id must be a string")
			return nil
		}
		err = c.h.orchestrator.Leave(ctx, c.id, conversationID)
	default:
		err = errors.ErrUnknownEvent
	}

	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrLoopStopped), stderrors.Is(err, context.Canceled):
		return err
	default:
		c.reject(envelope.Event, err.Error())
		return nil
	}
}

func (c *connection) identify(ctx context.Context, data json.RawMessage) error {
	var req auth.IdentifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrMissingIdentity
	}
	if err := auth.ValidateIdentify(req); err != nil {
		return err
	}
	identity := domain.Identity{ID: req.ID, Kind: domain.Kind(req.Type)}
	if err := c.h.verifier.VerifyIdentify(req.Token, identity); err != nil {
		return err
	}
	if err := c.h.orchestrator.Identify(ctx, c.id, identity); err != nil {
		return err
	}
	c.identity = identity
	c.log = c.h.log.With("connection_id", c.id, "identity_id", identity.ID)
	return nil
}

// join is authorized here so that the event loop never waits on storage.
func (c *connection) join(ctx context.Context, data json.RawMessage) error {
	var conversationID domain.ConversationID
	if err := json.Unmarshal(data, &conversationID); err != nil || conversationID == "" {
		return errors.ErrInvalidRequest
	}
	if c.identity.IsZero() {
		return errors.ErrNotIdentified
	}
	if !c.h.authorizer.IsAuthorizedForConversation(ctx, c.identity, conversationID) {
		c.log.Debug("Join refused", "conversation_id", conversationID)
		return errors.ErrNotAuthorized
	}
	return c.h.orchestrator.Join(ctx, c.id, conversationID)
}

func (c *connection) reject(eventName, message string) {
	c.log.Debug("Client event ignored", "event", eventName, "reason", message)
	notice := event.ErrorNotice{Event: eventName, Message: message}
	if err := c.sink.Consume(context.Background(), notice); err != nil {
		c.log.Debug("Error notice dropped", "error", err)
	}
}

func (c *connection) writePump() {
	cfg := c.h.config
	// c.log is updated by the read pump on identify
	log := c.h.log.With("connection_id", c.id)
	ticker := time.NewTicker(cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-c.sink.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(outgoing{Event: evt.Name(), Data: evt.Payload()}); err != nil {
				log.Debug("Websocket write failed", "event", evt.Name(), "error", err)
				// Unblocks the read pump which then disconnects
				_ = c.conn.Close()
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				c.drain()
				return
			}
		}
	}
}

// drain discards events until the sink is closed on disconnect.
func (c *connection) drain() {
	for range c.sink.Events() {
	}
}
