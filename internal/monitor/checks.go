package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Levels recorded by the checks.
const (
	LevelNormal   = "normal"
	LevelCritical = "critical"
	LevelLow      = "low"
	LevelSaver    = "saver"
	LevelCharging = "charging"
	LevelFull     = "full"
	LevelHigh     = "high"
)

// reading is the outcome of one check: the level it observed and, when that
// level warrants a notification, its category and message.
type reading struct {
	level    string
	category Category
	message  string
}

func (m *Monitor) readBattery(ctx context.Context, cfg Config) (reading, error) {
	b, err := m.sampler.Battery(ctx)
	if err != nil {
		return reading{}, err
	}
	return batteryReading(b, cfg.Thresholds), nil
}

func batteryReading(b Battery, t Thresholds) reading {
	if b.Plugged {
		if b.Percent >= t.BatteryFull {
			return reading{LevelFull, BatteryFull, fmt.Sprintf(
				"Battery is at %d percent and charging. You might want to unplug to preserve battery health.", b.Percent)}
		}
		return reading{level: LevelCharging}
	}
	switch {
	case b.Percent <= t.BatteryCritical:
		return reading{LevelCritical, BatteryCritical, fmt.Sprintf(
			"Battery is critically low at %d percent. Connect the charger now.", b.Percent)}
	case b.Percent <= t.BatteryLow:
		return reading{LevelLow, BatteryLow, fmt.Sprintf(
			"Battery is low at %d percent. Please connect the charger.", b.Percent)}
	case b.Percent <= t.BatteryEnergySaver:
		return reading{LevelSaver, BatteryEnergySaver, fmt.Sprintf(
			"Battery is at %d percent. You might want to turn on energy saver.", b.Percent)}
	}
	return reading{level: LevelNormal}
}

func (m *Monitor) readMemory(ctx context.Context, cfg Config) (reading, error) {
	mem, err := m.sampler.Memory(ctx)
	if err != nil {
		return reading{}, err
	}
	r := memoryReading(mem, cfg.Thresholds)
	if r.category != "" {
		if p, err := m.TopProcess(ctx); err == nil {
			r.message += fmt.Sprintf(" %s is using %s.", p.Name, humanize.Bytes(p.RSS))
		}
	}
	return r, nil
}

func memoryReading(mem Memory, t Thresholds) reading {
	pct := int(mem.UsedPercent + 0.5)
	switch {
	case mem.UsedPercent >= t.MemoryCritical:
		return reading{LevelCritical, MemoryCritical, fmt.Sprintf(
			"Memory usage is critical at %d percent. Close some applications now.", pct)}
	case mem.UsedPercent >= t.MemoryHigh:
		return reading{LevelHigh, MemoryHigh, fmt.Sprintf(
			"Memory usage is high at %d percent. Consider closing unused applications.", pct)}
	}
	return reading{level: LevelNormal}
}

func (m *Monitor) readUptime(ctx context.Context, cfg Config) (reading, error) {
	up, err := m.sampler.Uptime(ctx)
	if err != nil {
		return reading{}, err
	}
	return uptimeReading(up, cfg.Thresholds), nil
}

// uptimeReading uses the number of whole reboot periods as the level, so a
// reminder repeats once per period rather than on every check.
func uptimeReading(up time.Duration, t Thresholds) reading {
	if t.UptimeReboot <= 0 {
		return reading{level: "0"}
	}
	periods := int(up / t.UptimeReboot)
	if periods == 0 {
		return reading{level: "0"}
	}
	days := int(up / (24 * time.Hour))
	return reading{strconv.Itoa(periods), UptimeReboot, fmt.Sprintf(
		"Your computer has been running for %d days. A restart would keep it running smoothly.", days)}
}

func (m *Monitor) readDisk(ctx context.Context, cfg Config) (reading, error) {
	d, err := m.sampler.Disk(ctx, cfg.DiskPath)
	if err != nil {
		return reading{}, err
	}
	return diskReading(d, cfg.Thresholds), nil
}

func diskReading(d Disk, t Thresholds) reading {
	if d.UsedPercent < t.DiskFull {
		return reading{level: LevelNormal}
	}
	return reading{LevelFull, DiskFull, fmt.Sprintf(
		"Disk storage is %d percent full, only %s left. You should clean up some files.",
		int(d.UsedPercent+0.5), humanize.Bytes(d.Free))}
}

// readCPU averages utilisation over the sustain window, so a short spike does
// not count as high load.
func (m *Monitor) readCPU(ctx context.Context, cfg Config) (reading, error) {
	pct, err := m.sampler.CPUPercent(ctx, cfg.Thresholds.CPUSustain)
	if err != nil {
		return reading{}, err
	}
	return cpuReading(pct, cfg.Thresholds), nil
}

func cpuReading(pct float64, t Thresholds) reading {
	if pct < t.CPUHigh {
		return reading{level: LevelNormal}
	}
	return reading{LevelHigh, CPUHigh, fmt.Sprintf(
		"CPU usage has been high for over %s. You might want to check which program is busy.",
		humanDuration(t.CPUSustain))}
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "a minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}
