package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/websocket"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle so deferred
// cleanups execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectMapper)
	}

	// 3. Repositories & services
	messageRepository := repositories.NewMessageRepository(db, logger)
	accountRepository := repositories.NewAccountRepository(db)
	moderator, err := moderation.NewModerator(config.CensoredWordList(), charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator error: %w", err)
	}
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(logger, accountRepository, tokens, config.RequireIdentifyToken)
	if config.AdminEmail != "" {
		if _, err := authService.SeedAdmin(config.AdminName, config.AdminEmail, config.AdminPassword); err != nil {
			return exitConfig, fmt.Errorf("admin seeding failed: %w", err)
		}
	}

	// 4. Realtime core
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewProcessMonitorWorker(logger, config.MetricInterval))
	orchestrator := runtime.NewOrchestrator(logger, sup, config.CommandBufferSize, runtime.WithDedup(config.DeliveryDedup))
	chatService := services.NewChatService(logger, messageRepository, accountRepository, authService, orchestrator, moderator,
		services.ChatConfig{
			MaxMessageLength: config.MaxMessageLength,
			DefaultPageLimit: config.DefaultPageLimit,
			MaxPageLimit:     config.MaxPageLimit,
		})

	// 5. Transports
	uploads, err := storage.NewUploadStore(logger, config.UploadDir, "/uploads/", config.MaxUploadSize)
	if err != nil {
		return exitRuntime, err
	}
	wsHandler := websocket.NewHandler(logger, orchestrator, authService, authService, websocket.Config{
		SendBuffer:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PongWait:       config.PongWait,
		MaxMessageSize: config.MaxFrameSize,
		AllowedOrigins: config.AllowedOriginList(),
	})
	httpServer := httpapi.NewServer(logger, authService, chatService, orchestrator, uploads, tokens, wsHandler, config.MaxUploadSize).
		HTTPServer(config.httpAddress())
	ops := server.NewOpsServer(logger, orchestrator)
	listener, err := net.Listen("tcp", config.grpcAddress())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.grpcAddress(), err)
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(gCtx); err != nil {
			return fmt.Errorf("orchestrator error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ops.Track(gCtx, orchestrator.Ready())
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting gRPC server", "address", listener.Addr().String())
		if err := ops.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	// 7. Graceful shutdown once a signal arrives or any component fails
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown failed", "err", err)
		}
		ops.GracefulStop()
		orchestrator.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
