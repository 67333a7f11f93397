package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/vigil/internal/monitor"
)

func TestDesktopSink_Send(t *testing.T) {
	t.Parallel()
	var got []string
	post := func(kind string) func(title, message, icon string) error {
		return func(title, message, icon string) error {
			got = append(got, kind+"|"+title+"|"+message+"|"+icon)
			return nil
		}
	}
	d := NewDesktopSink(WithIcon("/usr/share/icons/vigil.png"), withPoster(post("notify"), post("alert")))

	ctx := context.Background()
	_ = d.Send(ctx, monitor.Alert{Category: monitor.DiskFull, Severity: monitor.SeveritySuggestion, Message: "Disk is full."})
	_ = d.Send(ctx, monitor.Alert{Category: monitor.MemoryCritical, Severity: monitor.SeverityAlert, Message: "Memory is critical."})

	want := []string{
		"notify|Vigil: Disk|Disk is full.|/usr/share/icons/vigil.png",
		"alert|Vigil: Memory|Memory is critical.|/usr/share/icons/vigil.png",
	}
	if len(got) != len(want) {
		t.Fatalf("posts = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("post %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDesktopSink_Errors(t *testing.T) {
	t.Parallel()
	errNoDBus := errors.New("no dbus")
	fail := func(string, string, string) error { return errNoDBus }
	d := NewDesktopSink(withPoster(fail, fail))

	if err := d.Send(context.Background(), monitor.Alert{}); !errors.Is(err, errNoDBus) {
		t.Errorf("err = %v, want wrapped poster error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Send(ctx, monitor.Alert{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()
	tests := map[monitor.Category]string{
		monitor.BatteryFull:   "Battery",
		monitor.MemoryHigh:    "Memory",
		monitor.CPUHigh:       "CPU",
		monitor.UptimeReboot:  "Restart",
		monitor.Category("x"): "x",
	}
	for c, want := range tests {
		if got := title(c); got != want {
			t.Errorf("title(%s) = %q, want %q", c, got, want)
		}
	}
}
