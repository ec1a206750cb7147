package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
)

// EventLoopWorker drains a command channel on a single goroutine so that the
// handler never runs concurrently with itself.
type EventLoopWorker[C any] struct {
	commands <-chan C
	handle   func(ctx context.Context, cmd C)
	log      *slog.Logger
}

var _ contract.Worker = (*EventLoopWorker[struct{}])(nil)

func NewEventLoopWorker[C any](log *slog.Logger, commands <-chan C, handle func(ctx context.Context, cmd C)) *EventLoopWorker[C] {
	return &EventLoopWorker[C]{commands: commands, handle: handle, log: log}
}

// Run returns nil when the channel is closed. A panic in the handler escapes
// to the supervisor, which restarts the loop on the same channel.
func (w *EventLoopWorker[C]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping event loop")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Command channel is closed")
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}
