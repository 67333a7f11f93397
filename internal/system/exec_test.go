package system

import "testing"

func TestPlatformFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, prefix string
		want         Platform
	}{
		{goos: "darwin", want: PlatformMac},
		{goos: "linux", want: PlatformLinux},
		{goos: "linux", prefix: "/data/data/com.termux/files/usr", want: PlatformAndroid},
		{goos: "android", want: PlatformAndroid},
		{goos: "windows", want: PlatformOther},
	}
	for _, tt := range tests {
		if got := platformFor(tt.goos, tt.prefix); got != tt.want {
			t.Errorf("platformFor(%q, %q) = %q, want %q", tt.goos, tt.prefix, got, tt.want)
		}
	}
}
