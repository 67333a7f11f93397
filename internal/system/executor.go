package system

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Sentinel errors returned by [Executor]. The dispatcher maps each to a short
// spoken reply.
var (
	ErrUnknownApp           = errors.New("system: unknown application")
	ErrUnsupported          = errors.New("system: not supported on this platform")
	ErrPowerActionsDisabled = errors.New("system: power actions are disabled")
)

const defaultSearchURL = "https://duckduckgo.com/?q="

// App describes a launchable application. Name is what the user says and
// what macOS knows the bundle as. Launch and Quit override the platform
// defaults with an explicit argv.
type App struct {
	Name   string
	Launch []string
	Quit   []string
}

// Option is a functional option for configuring an [Executor].
type Option func(*Executor)

// WithRunner replaces the command runner. Default: [Exec].
func WithRunner(r Runner) Option {
	return func(e *Executor) {
		e.run = r
	}
}

// WithPlatform overrides platform detection.
func WithPlatform(p Platform) Option {
	return func(e *Executor) {
		e.platform = p
	}
}

// WithApps sets the applications the user may open and close by name.
func WithApps(apps []App) Option {
	return func(e *Executor) {
		e.apps = slices.Clone(apps)
	}
}

// WithPowerActions enables Shutdown and Restart. They are disabled by
// default.
func WithPowerActions(enabled bool) Option {
	return func(e *Executor) {
		e.allowPower = enabled
	}
}

// WithSearchURL sets the URL prefix a query-escaped search term is appended
// to. Default: DuckDuckGo.
func WithSearchURL(prefix string) Option {
	return func(e *Executor) {
		e.searchURL = prefix
	}
}

// Executor performs host actions. It is safe for concurrent use; it holds
// no mutable state after construction.
type Executor struct {
	run        Runner
	platform   Platform
	apps       []App
	allowPower bool
	searchURL  string
}

// NewExecutor creates an Executor for the detected platform.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		run:       Exec,
		platform:  DetectPlatform(),
		searchURL: defaultSearchURL,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Platform returns the platform the executor issues commands for.
func (e *Executor) Platform() Platform { return e.platform }

// PowerActionsEnabled reports whether Shutdown and Restart may run.
func (e *Executor) PowerActionsEnabled() bool { return e.allowPower }

// AppNames returns the configured application names in configuration order.
func (e *Executor) AppNames() []string {
	names := make([]string, len(e.apps))
	for i, a := range e.apps {
		names[i] = a.Name
	}
	return names
}

// OpenApp launches the application with the given configured name.
func (e *Executor) OpenApp(ctx context.Context, name string) error {
	app, err := e.lookup(name)
	if err != nil {
		return err
	}
	var argv []string
	switch {
	case len(app.Launch) > 0:
		argv = app.Launch
	case e.platform == PlatformMac:
		argv = []string{"open", "-a", app.Name}
	case e.platform == PlatformLinux:
		argv = []string{"gtk-launch", strings.ToLower(app.Name)}
	default:
		return fmt.Errorf("open %s: %w", app.Name, ErrUnsupported)
	}
	if e.platform == PlatformLinux && argv[0] != "setsid" {
		// Detach so the launched program outlives the command runner.
		argv = append([]string{"setsid", "-f"}, argv...)
	}
	return e.exec(ctx, argv)
}

// CloseApp quits the application with the given configured name.
func (e *Executor) CloseApp(ctx context.Context, name string) error {
	app, err := e.lookup(name)
	if err != nil {
		return err
	}
	var argv []string
	switch {
	case len(app.Quit) > 0:
		argv = app.Quit
	case e.platform == PlatformMac:
		argv = []string{"osascript", "-e", fmt.Sprintf("tell application %q to quit", app.Name)}
	case e.platform == PlatformLinux:
		argv = []string{"pkill", "-x", strings.ToLower(app.Name)}
	default:
		return fmt.Errorf("close %s: %w", app.Name, ErrUnsupported)
	}
	return e.exec(ctx, argv)
}

// OpenURL opens rawURL in the default browser. Only http and https URLs are
// accepted.
func (e *Executor) OpenURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("system: invalid URL %q", rawURL)
	}
	switch e.platform {
	case PlatformMac:
		return e.exec(ctx, []string{"open", u.String()})
	case PlatformLinux:
		return e.exec(ctx, []string{"xdg-open", u.String()})
	case PlatformAndroid:
		return e.exec(ctx, []string{"termux-open-url", u.String()})
	default:
		return fmt.Errorf("open URL: %w", ErrUnsupported)
	}
}

// Search opens a web search for query.
func (e *Executor) Search(ctx context.Context, query string) error {
	return e.OpenURL(ctx, e.searchURL+url.QueryEscape(strings.TrimSpace(query)))
}

// Shutdown powers the machine off.
func (e *Executor) Shutdown(ctx context.Context) error {
	return e.power(ctx, "shut down", []string{"systemctl", "poweroff"})
}

// Restart reboots the machine.
func (e *Executor) Restart(ctx context.Context) error {
	return e.power(ctx, "restart", []string{"systemctl", "reboot"})
}

func (e *Executor) power(ctx context.Context, verb string, linux []string) error {
	if !e.allowPower {
		return ErrPowerActionsDisabled
	}
	switch e.platform {
	case PlatformMac:
		return e.exec(ctx, []string{"osascript", "-e", fmt.Sprintf("tell application \"System Events\" to %s", verb)})
	case PlatformLinux:
		return e.exec(ctx, linux)
	default:
		return fmt.Errorf("%s: %w", verb, ErrUnsupported)
	}
}

func (e *Executor) lookup(name string) (App, error) {
	for _, a := range e.apps {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return App{}, fmt.Errorf("%w: %q", ErrUnknownApp, name)
}

func (e *Executor) exec(ctx context.Context, argv []string) error {
	_, err := e.run(ctx, execute.ExecTask{
		Command: argv[0],
		Args:    argv[1:],
	})
	return err
}
