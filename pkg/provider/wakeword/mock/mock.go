// Package mock provides a scripted test double for wakeword.Detector.
package mock

import (
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
)

var _ wakeword.Detector = (*Detector)(nil)

// Detector is a scripted wakeword.Detector. Each call to Process consumes
// the next entry of Results; once exhausted it reports NoMatch.
type Detector struct {
	mu sync.Mutex

	// Results holds the keyword index returned by successive Process calls.
	Results []int

	// Errs, if non-nil at the same position as Results, is returned
	// alongside it.
	Errs []error

	// FormatResult is returned by Format.
	FormatResult audio.Format

	// KeywordsResult is returned by Keywords.
	KeywordsResult []string

	// ProcessCallCount is the number of Process calls.
	ProcessCallCount int

	// CloseCallCount is the number of Close calls.
	CloseCallCount int
}

// Process returns the next scripted result.
func (d *Detector) Process(_ audio.AudioFrame) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.ProcessCallCount
	d.ProcessCallCount++
	if i >= len(d.Results) {
		return wakeword.NoMatch, nil
	}
	var err error
	if i < len(d.Errs) {
		err = d.Errs[i]
	}
	return d.Results[i], err
}

// Format returns FormatResult.
func (d *Detector) Format() audio.Format { return d.FormatResult }

// Keywords returns KeywordsResult.
func (d *Detector) Keywords() []string { return d.KeywordsResult }

// Close records the call.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return nil
}

// Calls returns the number of Process calls so far.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ProcessCallCount
}
