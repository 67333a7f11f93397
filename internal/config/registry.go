package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/llm"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	"github.com/MrWong99/vigil/pkg/provider/tts"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is the name-to-constructor table for one provider kind.
type factories[T any] map[string]func(ProviderEntry) (T, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	capture  factories[audio.Source]
	stt      factories[stt.Provider]
	tts      factories[tts.Provider]
	wakeword factories[wakeword.Detector]
	llm      factories[llm.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		capture:  make(factories[audio.Source]),
		stt:      make(factories[stt.Provider]),
		tts:      make(factories[tts.Provider]),
		wakeword: make(factories[wakeword.Detector]),
		llm:      make(factories[llm.Provider]),
	}
}

// RegisterCapture registers an audio capture source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterCapture(name string, factory func(ProviderEntry) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterWakeword registers a trigger-phrase detector factory under name.
func (r *Registry) RegisterWakeword(name string, factory func(ProviderEntry) (wakeword.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wakeword[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateCapture instantiates a capture source using the factory registered
// under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateCapture(entry ProviderEntry) (audio.Source, error) {
	return create(r, r.capture, "capture", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreateWakeword instantiates a detector using the factory registered under entry.Name.
func (r *Registry) CreateWakeword(entry ProviderEntry) (wakeword.Detector, error) {
	return create(r, r.wakeword, "wakeword", entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// Names returns the sorted provider names registered for kind ("capture",
// "stt", "tts", "wakeword" or "llm").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "capture":
		return names(r.capture)
	case "stt":
		return names(r.stt)
	case "tts":
		return names(r.tts)
	case "wakeword":
		return names(r.wakeword)
	case "llm":
		return names(r.llm)
	}
	return nil
}

func create[T any](r *Registry, f factories[T], kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := f[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func names[T any](f factories[T]) []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
