// Package e2e drives a running relay over HTTP, websocket and gRPC.
// The suites skip unless RELAY_HTTP_ADDR and RELAY_GRPC_ADDR are set.
package e2e

import (
	"bytes"
	"chat-relay/auth"
	ws "chat-relay/infrastructure/websocket"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" || s.Config.GRPCAddr == "" {
		s.T().Skip("RELAY_HTTP_ADDR and RELAY_GRPC_ADDR are required for e2e suites")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Account is a freshly registered user with its bearer token.
type Account struct {
	ID    string
	Token string
}

// Register creates a user through the REST API and reads its id from the token.
func (s *BaseRelaySuite) Register(name string) Account {
	email := fmt.Sprintf("%s-%d@example.com", strings.ToLower(name), time.Now().UnixNano())
	var resp struct {
		Token string `json:"token"`
	}
	s.postJSON("/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "Correct-Horse-42",
	}, http.StatusCreated, &resp)

	var claims auth.Claims
	_, _, err := jwt.NewParser().ParseUnverified(resp.Token, &claims)
	s.Require().NoError(err)
	return Account{ID: claims.IdentityID, Token: resp.Token}
}

// SendText posts a text message as the given account.
func (s *BaseRelaySuite) SendText(from Account, receiverID, text string) {
	s.postJSON("/api/chat/messages", from.Token, map[string]string{
		"receiverId": receiverID,
		"message":    text,
	}, http.StatusCreated, nil)
}

func (s *BaseRelaySuite) postJSON(path, token string, body any, expected int, out any) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, "http://"+s.Config.HTTPAddr+path, bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(expected, resp.StatusCode, "POST %s", path)
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
}

// Connect opens a websocket and identifies as the account.
func (s *BaseRelaySuite) Connect(account Account) *websocket.Conn {
	s.header(s.T(), "Websocket "+account.ID)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Config.HTTPAddr+"/ws", nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	s.Send(conn, ws.EventIdentify, auth.IdentifyRequest{ID: account.ID, Type: "user", Token: account.Token})
	return conn
}

func (s *BaseRelaySuite) Send(conn *websocket.Conn, name string, data any) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(ws.Envelope{Event: name, Data: raw}))
}

// Await reads frames until one named name arrives.
func (s *BaseRelaySuite) Await(conn *websocket.Conn, name string) ws.Envelope {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var envelope ws.Envelope
		s.Require().NoError(conn.ReadJSON(&envelope))
		if envelope.Event == name {
			return envelope
		}
	}
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseRelaySuite) GrpcConn(t *testing.T, name string) *grpc.ClientConn {
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(s.Config.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GRPCAddr)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
