package monitor

import (
	"context"
	"time"
)

// Category identifies an alert kind. Each category has its own cooldown.
type Category string

const (
	BatteryCritical    Category = "battery_critical"
	BatteryLow         Category = "battery_low"
	BatteryEnergySaver Category = "battery_energy_saver"
	BatteryFull        Category = "battery_full"
	MemoryHigh         Category = "memory_high"
	MemoryCritical     Category = "memory_critical"
	UptimeReboot       Category = "uptime_reboot"
	DiskFull           Category = "disk_full"
	CPUHigh            Category = "cpu_high"
)

// Severity distinguishes alerts that need attention from suggestions.
type Severity int

const (
	SeveritySuggestion Severity = iota
	SeverityAlert
)

func (s Severity) String() string {
	if s == SeverityAlert {
		return "alert"
	}
	return "suggestion"
}

// Severity returns the severity of c.
func (c Category) Severity() Severity {
	switch c {
	case BatteryCritical, BatteryLow, MemoryCritical:
		return SeverityAlert
	default:
		return SeveritySuggestion
	}
}

// Alert is one notification produced by the monitor.
type Alert struct {
	Category Category
	Severity Severity
	Message  string
	Time     time.Time
}

// Notifier receives alerts. Notify is called from the monitor's check
// goroutines and should return promptly.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, alert Alert) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error { return f(ctx, alert) }
