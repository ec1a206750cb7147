package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessUsage is one resource sample of the relay process.
type ProcessUsage struct {
	PID        int32
	Status     string
	CPUPercent float64
	RAMPercent float32
	Threads    int32
	Goroutines int
	SampledAt  time.Time
}

// ProcessMonitorWorker samples the relay's own CPU and memory usage at a
// fixed interval and logs it.
type ProcessMonitorWorker struct {
	mu       sync.RWMutex
	log      *slog.Logger
	interval time.Duration
	pid      int32
	latest   ProcessUsage
	sample   func(pid int32) (ProcessUsage, error)
}

func NewProcessMonitorWorker(log *slog.Logger, interval time.Duration) *ProcessMonitorWorker {
	return &ProcessMonitorWorker{
		log:      log,
		interval: interval,
		pid:      int32(os.Getpid()),
		sample:   sampleProcess,
	}
}

func (w *ProcessMonitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process monitoring")
			return nil
		case <-ticker.C:
			usage, err := w.sample(w.pid)
			if err != nil {
				w.log.Error("Error while sampling process usage", "pid", w.pid, "err", err)
				continue
			}
			w.mu.Lock()
			w.latest = usage
			w.mu.Unlock()
			w.log.Debug("Relay process usage",
				"pid", usage.PID,
				"status", usage.Status,
				"cpu", usage.CPUPercent,
				"ram", usage.RAMPercent,
				"threads", usage.Threads,
				"goroutines", usage.Goroutines)
		}
	}
}

// Latest returns the most recent sample, zero before the first tick.
func (w *ProcessMonitorWorker) Latest() ProcessUsage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func sampleProcess(pid int32) (ProcessUsage, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessUsage{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessUsage{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return ProcessUsage{}, err
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		return ProcessUsage{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return ProcessUsage{}, err
	}
	return ProcessUsage{
		PID:        pid,
		Status:     status,
		CPUPercent: cpu,
		RAMPercent: ram,
		Threads:    threads,
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}, nil
}
