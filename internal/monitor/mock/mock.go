// Package mock provides a test double for monitor.Sampler.
//
// Battery readings are consumed in order; the last one repeats once the
// sequence is exhausted. The other readings are fixed fields.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/vigil/internal/monitor"
)

var _ monitor.Sampler = (*Sampler)(nil)

// Sampler is a mock implementation of monitor.Sampler.
type Sampler struct {
	mu sync.Mutex

	Batteries  []monitor.Battery
	BatteryErr error

	MemoryResult monitor.Memory
	MemoryErr    error

	CPUResult float64
	CPUErr    error

	UptimeResult time.Duration
	UptimeErr    error

	DiskResult monitor.Disk
	DiskErr    error

	ProcessesResult []monitor.Process
	ProcessesErr    error

	// CPUWindows records the window passed to every CPUPercent call.
	CPUWindows []time.Duration
	// DiskPaths records the path passed to every Disk call.
	DiskPaths []string

	batteryCalls int
}

// Battery returns the next reading of Batteries.
func (s *Sampler) Battery(_ context.Context) (monitor.Battery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BatteryErr != nil {
		return monitor.Battery{}, s.BatteryErr
	}
	if len(s.Batteries) == 0 {
		return monitor.Battery{}, monitor.ErrNoBattery
	}
	i := min(s.batteryCalls, len(s.Batteries)-1)
	s.batteryCalls++
	return s.Batteries[i], nil
}

// BatteryCalls returns how many successful Battery calls were made.
func (s *Sampler) BatteryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batteryCalls
}

// Memory returns MemoryResult, MemoryErr.
func (s *Sampler) Memory(_ context.Context) (monitor.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.MemoryResult, s.MemoryErr
}

// CPUPercent records window and returns CPUResult, CPUErr without waiting.
func (s *Sampler) CPUPercent(_ context.Context, window time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CPUWindows = append(s.CPUWindows, window)
	return s.CPUResult, s.CPUErr
}

// Uptime returns UptimeResult, UptimeErr.
func (s *Sampler) Uptime(_ context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UptimeResult, s.UptimeErr
}

// Disk records path and returns DiskResult, DiskErr.
func (s *Sampler) Disk(_ context.Context, path string) (monitor.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DiskPaths = append(s.DiskPaths, path)
	return s.DiskResult, s.DiskErr
}

// Processes returns ProcessesResult, ProcessesErr.
func (s *Sampler) Processes(_ context.Context) ([]monitor.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ProcessesResult, s.ProcessesErr
}

// Set updates fields under the lock while checks may be running.
func (s *Sampler) Set(f func(s *Sampler)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}
