// Package system runs host commands on behalf of spoken requests: launching
// and quitting applications, opening URLs and web searches, and powering the
// machine off. Every command goes through a [Runner] so tests can observe
// the exact invocation without touching the host.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Runner executes one task and returns its result. Implementations must
// honour ctx cancellation.
type Runner func(ctx context.Context, task execute.ExecTask) (execute.ExecResult, error)

// Exec is the default [Runner]. It runs task with go-execute and treats a
// non-zero exit code as an error.
func Exec(ctx context.Context, task execute.ExecTask) (execute.ExecResult, error) {
	slog.Debug("executing command", "command", task.Command, "args", task.Args)
	res, err := task.Execute(ctx)
	if err != nil {
		return res, fmt.Errorf("system: run %s: %w", task.Command, err)
	}
	if res.Cancelled {
		return res, fmt.Errorf("system: run %s: %w", task.Command, context.Canceled)
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("system: run %s: exit code %d: %s", task.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// Platform identifies the host flavour that determines which commands exist.
type Platform string

const (
	PlatformMac     Platform = "mac"
	PlatformLinux   Platform = "linux"
	PlatformAndroid Platform = "android"
	PlatformOther   Platform = "other"
)

// DetectPlatform inspects the running host. Termux on Android reports
// GOOS=linux (or android) and is recognized by its PREFIX.
func DetectPlatform() Platform {
	return platformFor(runtime.GOOS, os.Getenv("PREFIX"))
}

func platformFor(goos, prefix string) Platform {
	if strings.Contains(prefix, "com.termux") || goos == "android" {
		return PlatformAndroid
	}
	switch goos {
	case "darwin":
		return PlatformMac
	case "linux", "freebsd", "openbsd", "netbsd":
		return PlatformLinux
	default:
		return PlatformOther
	}
}
