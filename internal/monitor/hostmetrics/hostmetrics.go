// Package hostmetrics reads host health from procfs and sysfs.
//
// It implements monitor.Sampler on Linux, including Android under Termux
// where /proc is readable. Disk usage comes from statfs(2).
package hostmetrics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"

	"github.com/MrWong99/vigil/internal/monitor"
)

var _ monitor.Sampler = (*Sampler)(nil)

// Option configures a [Sampler].
type Option func(*Sampler)

// WithProcPath sets the procfs mount point. Defaults to /proc.
func WithProcPath(path string) Option {
	return func(s *Sampler) { s.procPath = path }
}

// WithSysPath sets the sysfs mount point. Defaults to /sys.
func WithSysPath(path string) Option {
	return func(s *Sampler) { s.sysPath = path }
}

// WithClock overrides the clock used to derive uptime.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// Sampler implements monitor.Sampler on top of procfs.
type Sampler struct {
	procPath string
	sysPath  string
	now      func() time.Time

	proc procfs.FS
	sys  sysfs.FS
}

// New opens the proc and sys filesystems.
func New(opts ...Option) (*Sampler, error) {
	s := &Sampler{
		procPath: procfs.DefaultMountPoint,
		sysPath:  sysfs.DefaultMountPoint,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	var err error
	if s.proc, err = procfs.NewFS(s.procPath); err != nil {
		return nil, fmt.Errorf("hostmetrics: open procfs: %w", err)
	}
	if s.sys, err = sysfs.NewFS(s.sysPath); err != nil {
		return nil, fmt.Errorf("hostmetrics: open sysfs: %w", err)
	}
	return s, nil
}

// Battery reads the first battery in the power_supply class. A host
// without one yields monitor.ErrNoBattery.
func (s *Sampler) Battery(_ context.Context) (monitor.Battery, error) {
	class, err := s.sys.PowerSupplyClass()
	if errors.Is(err, fs.ErrNotExist) {
		return monitor.Battery{}, monitor.ErrNoBattery
	}
	if err != nil {
		return monitor.Battery{}, fmt.Errorf("hostmetrics: power supplies: %w", err)
	}
	return batteryFrom(class)
}

func batteryFrom(class sysfs.PowerSupplyClass) (monitor.Battery, error) {
	var (
		bat     *sysfs.PowerSupply
		mainsOn bool
	)
	for name, ps := range class {
		switch ps.Type {
		case "Battery":
			if ps.Capacity == nil {
				continue
			}
			// Map order is random; pick the lowest name for a stable answer.
			if bat == nil || name < bat.Name {
				p := ps
				p.Name = name
				bat = &p
			}
		case "Mains", "USB", "USB_C", "USB_PD":
			if ps.Online != nil && *ps.Online == 1 {
				mainsOn = true
			}
		}
	}
	if bat == nil {
		return monitor.Battery{}, monitor.ErrNoBattery
	}
	plugged := mainsOn
	switch bat.Status {
	case "Charging", "Full", "Not charging":
		plugged = true
	}
	return monitor.Battery{Percent: int(*bat.Capacity), Plugged: plugged}, nil
}

// Memory reads /proc/meminfo.
func (s *Sampler) Memory(_ context.Context) (monitor.Memory, error) {
	mi, err := s.proc.Meminfo()
	if err != nil {
		return monitor.Memory{}, fmt.Errorf("hostmetrics: meminfo: %w", err)
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return monitor.Memory{}, errors.New("hostmetrics: meminfo has no MemTotal")
	}
	total := *mi.MemTotal * 1024
	var avail uint64
	switch {
	case mi.MemAvailable != nil:
		avail = *mi.MemAvailable * 1024
	case mi.MemFree != nil:
		// Kernels before 3.14 lack MemAvailable.
		avail = *mi.MemFree * 1024
		if mi.Cached != nil {
			avail += *mi.Cached * 1024
		}
	}
	avail = min(avail, total)
	return monitor.Memory{
		Total:       total,
		Available:   avail,
		UsedPercent: float64(total-avail) / float64(total) * 100,
	}, nil
}

// CPUPercent samples /proc/stat twice, window apart.
func (s *Sampler) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	before, err := s.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("hostmetrics: stat: %w", err)
	}
	timer := time.NewTimer(window)
	select {
	case <-ctx.Done():
		timer.Stop()
		return 0, ctx.Err()
	case <-timer.C:
	}
	after, err := s.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("hostmetrics: stat: %w", err)
	}
	return busyPercent(before.CPUTotal, after.CPUTotal), nil
}

func busyPercent(a, b procfs.CPUStat) float64 {
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	total := cpuTotal(b) - cpuTotal(a)
	if total <= 0 {
		return 0
	}
	return max(0, min(100, (total-idle)/total*100))
}

func cpuTotal(c procfs.CPUStat) float64 {
	// Guest time is already counted in User and Nice.
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
}

// Uptime derives uptime from the boot time in /proc/stat.
func (s *Sampler) Uptime(_ context.Context) (time.Duration, error) {
	st, err := s.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("hostmetrics: stat: %w", err)
	}
	if st.BootTime == 0 {
		return 0, errors.New("hostmetrics: stat has no btime")
	}
	return max(0, s.now().Sub(time.Unix(int64(st.BootTime), 0))), nil
}

// Processes lists processes with their resident set size. Processes that
// exit or deny access while listing are skipped.
func (s *Sampler) Processes(ctx context.Context) ([]monitor.Process, error) {
	procs, err := s.proc.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("hostmetrics: list processes: %w", err)
	}
	out := make([]monitor.Process, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st, err := p.Stat()
		if err != nil {
			continue
		}
		name, err := p.Comm()
		if err != nil || name == "" {
			name = st.Comm
		}
		out = append(out, monitor.Process{
			PID:  p.PID,
			Name: name,
			RSS:  uint64(max(0, st.ResidentMemory())),
		})
	}
	return out, nil
}
