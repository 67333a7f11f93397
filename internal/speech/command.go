package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	execute "github.com/alexellis/go-execute/v2"

	"github.com/MrWong99/vigil/internal/system"
)

var (
	_ Voice       = (*CommandVoice)(nil)
	_ SoundPlayer = (*CommandVoice)(nil)
)

// CommandVoice speaks with the host's command-line speech tool and plays
// sound files with its command-line player. Cancelling the context kills the
// running process, which is how speech is interrupted.
type CommandVoice struct {
	speak []string // argv prefix; text is appended
	play  []string // argv prefix; path is appended
	run   system.Runner
}

// CommandVoiceOption is a functional option for configuring a [CommandVoice].
type CommandVoiceOption func(*CommandVoice)

// WithSpeakCommand overrides the speech argv prefix.
func WithSpeakCommand(argv ...string) CommandVoiceOption {
	return func(v *CommandVoice) {
		v.speak = argv
	}
}

// WithRunner replaces the command runner. Default: system.Exec.
func WithRunner(r system.Runner) CommandVoiceOption {
	return func(v *CommandVoice) {
		v.run = r
	}
}

// NewCommandVoice returns the command voice for platform. On Linux espeak
// is preferred over spd-say when both are installed.
func NewCommandVoice(platform system.Platform, opts ...CommandVoiceOption) (*CommandVoice, error) {
	v := &CommandVoice{run: system.Exec}
	switch platform {
	case system.PlatformMac:
		v.speak = []string{"say", "-v", "Samantha"}
		v.play = []string{"afplay"}
	case system.PlatformAndroid:
		v.speak = []string{"termux-tts-speak"}
		v.play = []string{"termux-media-player", "play"}
	case system.PlatformLinux:
		v.speak = []string{"spd-say", "--wait"}
		if _, err := exec.LookPath("espeak"); err == nil {
			v.speak = []string{"espeak"}
		}
		v.play = []string{"aplay", "-q"}
	}
	for _, o := range opts {
		o(v)
	}
	if len(v.speak) == 0 {
		return nil, fmt.Errorf("speech: no command voice for platform %q", platform)
	}
	return v, nil
}

// Say runs the speech command and waits for it to exit.
func (v *CommandVoice) Say(ctx context.Context, text string) error {
	return v.exec(ctx, v.speak, text)
}

// PlaySound runs the sound player on path and waits for it to exit.
func (v *CommandVoice) PlaySound(ctx context.Context, path string) error {
	if len(v.play) == 0 {
		return errors.New("speech: no sound player configured")
	}
	return v.exec(ctx, v.play, path)
}

func (v *CommandVoice) exec(ctx context.Context, prefix []string, arg string) error {
	args := append(append([]string(nil), prefix[1:]...), arg)
	_, err := v.run(ctx, execute.ExecTask{Command: prefix[0], Args: args})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
