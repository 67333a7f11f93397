package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/MrWong99/vigil/internal/monitor"
)

const appName = "Vigil"

// DesktopSink shows alerts as desktop notifications. Alert-severity
// notifications also play the system alert sound.
type DesktopSink struct {
	icon   string
	notify func(title, message, icon string) error
	alert  func(title, message, icon string) error
}

// DesktopOption configures a [DesktopSink].
type DesktopOption func(*DesktopSink)

// WithIcon sets the notification icon path.
func WithIcon(path string) DesktopOption {
	return func(d *DesktopSink) {
		d.icon = path
	}
}

// withPoster replaces the beeep calls. Used by tests.
func withPoster(notify, alert func(title, message, icon string) error) DesktopOption {
	return func(d *DesktopSink) {
		d.notify, d.alert = notify, alert
	}
}

// NewDesktopSink creates a [DesktopSink].
func NewDesktopSink(opts ...DesktopOption) *DesktopSink {
	d := &DesktopSink{notify: beeep.Notify, alert: beeep.Alert}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *DesktopSink) Name() string { return "desktop" }

// Send posts the notification. The desktop APIs are not cancellable, so ctx
// is only checked before posting.
func (d *DesktopSink) Send(ctx context.Context, a monitor.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	post := d.notify
	if a.Severity == monitor.SeverityAlert {
		post = d.alert
	}
	if err := post(appName+": "+title(a.Category), a.Message, d.icon); err != nil {
		return fmt.Errorf("desktop: post: %w", err)
	}
	return nil
}

// title returns a short heading for a notification.
func title(c monitor.Category) string {
	switch c {
	case monitor.BatteryCritical, monitor.BatteryLow, monitor.BatteryEnergySaver, monitor.BatteryFull:
		return "Battery"
	case monitor.MemoryHigh, monitor.MemoryCritical:
		return "Memory"
	case monitor.DiskFull:
		return "Disk"
	case monitor.CPUHigh:
		return "CPU"
	case monitor.UptimeReboot:
		return "Restart"
	default:
		return string(c)
	}
}
