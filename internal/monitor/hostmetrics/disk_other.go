//go:build !unix

package hostmetrics

import (
	"context"
	"errors"

	"github.com/MrWong99/vigil/internal/monitor"
)

// Disk is not supported on this platform.
func (s *Sampler) Disk(_ context.Context, path string) (monitor.Disk, error) {
	return monitor.Disk{Path: path}, errors.New("hostmetrics: disk usage not supported on this platform")
}
