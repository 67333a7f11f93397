package monitor

import "time"

// Thresholds are the levels at which checks change state. Percentages are
// 0 to 100.
type Thresholds struct {
	BatteryCritical    int
	BatteryLow         int
	BatteryEnergySaver int
	BatteryFull        int
	MemoryHigh         float64
	MemoryCritical     float64
	UptimeReboot       time.Duration
	DiskFull           float64
	CPUHigh            float64
	CPUSustain         time.Duration
}

// Intervals are the per-check sampling periods.
type Intervals struct {
	Battery time.Duration
	Memory  time.Duration
	Uptime  time.Duration
	Disk    time.Duration
	CPU     time.Duration
	// Retry replaces the regular interval after a failed check.
	Retry time.Duration
}

// Config configures a [Monitor].
type Config struct {
	Thresholds Thresholds
	Intervals  Intervals
	// Cooldown is the minimum time between two notifications of the same
	// category.
	Cooldown time.Duration
	// DiskPath is the filesystem checked for free space.
	DiskPath string
}

// DefaultConfig returns the built-in thresholds and cadences.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			BatteryCritical:    10,
			BatteryLow:         20,
			BatteryEnergySaver: 45,
			BatteryFull:        95,
			MemoryHigh:         85,
			MemoryCritical:     95,
			UptimeReboot:       7 * 24 * time.Hour,
			DiskFull:           90,
			CPUHigh:            90,
			CPUSustain:         30 * time.Second,
		},
		Intervals: Intervals{
			Battery: 2 * time.Minute,
			Memory:  30 * time.Minute,
			Uptime:  24 * time.Hour,
			Disk:    30 * time.Minute,
			CPU:     time.Minute,
			Retry:   time.Minute,
		},
		Cooldown: 5 * time.Minute,
		DiskPath: "/",
	}
}
