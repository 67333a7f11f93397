package monitor

import (
	"context"
	"errors"
	"time"
)

// ErrNoBattery is returned by [Sampler.Battery] on hosts without a battery.
// The monitor disables its battery check when it sees it.
var ErrNoBattery = errors.New("monitor: no battery present")

// Battery is a battery reading.
type Battery struct {
	Percent int
	Plugged bool
}

// Memory is a system memory reading in bytes.
type Memory struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
}

// Disk is a filesystem usage reading in bytes.
type Disk struct {
	Path        string
	Total       uint64
	Free        uint64
	UsedPercent float64
}

// Process is one running process.
type Process struct {
	PID  int
	Name string
	RSS  uint64
}

// Sampler reads host metrics. Implementations must be safe for concurrent
// use; the monitor calls them from one goroutine per check.
type Sampler interface {
	Battery(ctx context.Context) (Battery, error)
	Memory(ctx context.Context) (Memory, error)
	// CPUPercent returns the average utilisation of all CPUs over window,
	// blocking for that long.
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	Uptime(ctx context.Context) (time.Duration, error)
	Disk(ctx context.Context, path string) (Disk, error)
	// Processes lists running processes. Processes that cannot be read are
	// skipped.
	Processes(ctx context.Context) ([]Process, error)
}
