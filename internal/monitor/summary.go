package monitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// summaryCPUWindow is how long StatusSummary samples CPU load.
const summaryCPUWindow = 500 * time.Millisecond

// ErrNoProcesses is returned by [Monitor.TopProcess] when the process list is
// empty.
var ErrNoProcesses = errors.New("monitor: no processes listed")

// StatusSummary returns a spoken summary of battery, memory, and CPU load.
// Readings that fail are reported as unknown.
func (m *Monitor) StatusSummary(ctx context.Context) string {
	var parts []string

	if b, err := m.sampler.Battery(ctx); err == nil {
		state := "on battery"
		if b.Plugged {
			state = "charging"
		}
		parts = append(parts, fmt.Sprintf("Battery is at %d%% and %s.", b.Percent, state))
	} else {
		parts = append(parts, "Battery status is unknown.")
	}

	if mem, err := m.sampler.Memory(ctx); err == nil {
		parts = append(parts, fmt.Sprintf("Memory usage is %d%%.", int(mem.UsedPercent+0.5)))
	} else {
		parts = append(parts, "Memory usage is unknown.")
	}

	if pct, err := m.sampler.CPUPercent(ctx, summaryCPUWindow); err == nil {
		parts = append(parts, fmt.Sprintf("CPU usage is around %d%%.", int(pct+0.5)))
	} else {
		parts = append(parts, "CPU usage is unknown.")
	}

	return strings.Join(parts, " ")
}

// TopProcess returns the process with the largest resident memory.
func (m *Monitor) TopProcess(ctx context.Context) (Process, error) {
	procs, err := m.sampler.Processes(ctx)
	if err != nil {
		return Process{}, fmt.Errorf("monitor: list processes: %w", err)
	}
	if len(procs) == 0 {
		return Process{}, ErrNoProcesses
	}
	return slices.MaxFunc(procs, func(a, b Process) int {
		// Ties go to the lower PID so the answer is stable.
		if c := cmp.Compare(a.RSS, b.RSS); c != 0 {
			return c
		}
		return cmp.Compare(b.PID, a.PID)
	}), nil
}

// TopMemoryProcess returns a spoken answer naming the process that uses the
// most memory.
func (m *Monitor) TopMemoryProcess(ctx context.Context) string {
	p, err := m.TopProcess(ctx)
	if err != nil {
		return "I couldn't list the running processes."
	}
	return fmt.Sprintf("%s is using the most memory, %s.", p.Name, humanize.Bytes(p.RSS))
}
