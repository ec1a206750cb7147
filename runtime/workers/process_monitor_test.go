package workers

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestProcessMonitorWorker_Records_Samples(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given a monitor ticking every few milliseconds
	w := NewProcessMonitorWorker(logs.GetLoggerFromLevel(slog.LevelDebug), 5*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then a sample of the current process shows up
	req.Eventually(func() bool {
		return w.Latest().PID == int32(os.Getpid())
	}, time.Second, 5*time.Millisecond)
	req.NotZero(w.Latest().Goroutines)

	// When the context is cancelled the worker returns cleanly
	cancel()
	req.NoError(<-done)
}

func TestProcessMonitorWorker_Keeps_Last_Sample_On_Error(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given a sampler that fails after the first call
	calls := 0
	w := NewProcessMonitorWorker(logs.GetLoggerFromLevel(slog.LevelDebug), 5*time.Millisecond)
	w.sample = func(pid int32) (ProcessUsage, error) {
		calls++
		if calls > 1 {
			return ProcessUsage{}, os.ErrNotExist
		}
		return ProcessUsage{PID: pid, Status: "R"}, nil
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then the first sample survives later failures
	req.Eventually(func() bool { return w.Latest().Status == "R" }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	req.NoError(<-done)
	req.Equal("R", w.Latest().Status)
}
