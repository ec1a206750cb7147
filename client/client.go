package main

import (
	"bufio"
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	ws "chat-relay/infrastructure/websocket"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	RelayURL     string `env:"RELAY_URL,default=ws://localhost:8080/ws"`
	IdentityID   string `env:"IDENTITY_ID,required=true"`
	IdentityType string `env:"IDENTITY_TYPE,default=user"`
	Token        string `env:"TOKEN"`
	Conversation string `env:"CONVERSATION"`
	LogLevel     string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run identifies on the relay, optionally joins a conversation and prints
// every realtime event. Typing "/join <id>" or "/leave <id>" on stdin sends
// the matching event.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.RelayURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.RelayURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	identify := auth.IdentifyRequest{ID: config.IdentityID, Type: config.IdentityType, Token: config.Token}
	if err := send(conn, ws.EventIdentify, identify); err != nil {
		return exitRuntime, err
	}
	if config.Conversation != "" {
		if err := send(conn, ws.EventJoin, config.Conversation); err != nil {
			return exitRuntime, err
		}
	}
	log.Info("Connected to relay (Ctrl+C to quit)", "url", config.RelayURL, "identity", config.IdentityID)

	go readCommands(os.Stdin, conn)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var envelope ws.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("read error: %w", err)
		}
		fmt.Println(render(envelope))
	}
}

func send(conn *websocket.Conn, name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(ws.Envelope{Event: name, Data: raw})
}

func readCommands(r io.Reader, conn *websocket.Conn) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			fmt.Println(color.Yellow.Render("usage: /join <conversation> | /leave <conversation>"))
			continue
		}
		switch fields[0] {
		case "/join":
			_ = send(conn, ws.EventJoin, fields[1])
		case "/leave":
			_ = send(conn, ws.EventLeave, fields[1])
		default:
			fmt.Println(color.Yellow.Render("unknown command " + fields[0]))
		}
	}
}

func render(envelope ws.Envelope) string {
	switch envelope.Event {
	case event.NameNewMessage:
		var record domain.MessageRecord
		if err := json.Unmarshal(envelope.Data, &record); err != nil {
			return color.Red.Render("unreadable message: " + err.Error())
		}
		body := record.Text
		if record.File != nil {
			body = strings.TrimSpace(body + " [" + record.File.Name + "]")
		}
		return fmt.Sprintf("%s %s %s",
			color.Gray.Render(record.CreatedAt.Format(time.TimeOnly)),
			color.Cyan.Render(record.SenderID+":"),
			body)
	case event.NamePresenceUpdate:
		var update event.PresenceUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			return color.Red.Render("unreadable presence update")
		}
		if update.Status == event.StatusOnline {
			return color.Green.Render("● " + update.UserID + " is online")
		}
		return color.Gray.Render("○ " + update.UserID + " is offline")
	case event.NamePresenceList:
		var online []string
		_ = json.Unmarshal(envelope.Data, &online)
		return color.Green.Render(fmt.Sprintf("online: %s", strings.Join(online, ", ")))
	case event.NameError:
		var notice event.ErrorNotice
		_ = json.Unmarshal(envelope.Data, &notice)
		return color.Red.Render(fmt.Sprintf("error (%s): %s", notice.Event, notice.Message))
	default:
		return fmt.Sprintf("%s %s", envelope.Event, string(envelope.Data))
	}
}
