//go:build unix

package hostmetrics

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/MrWong99/vigil/internal/monitor"
)

// Disk reports usage of the filesystem containing path.
func (s *Sampler) Disk(_ context.Context, path string) (monitor.Disk, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return monitor.Disk{}, fmt.Errorf("hostmetrics: statfs %s: %w", path, err)
	}
	return diskFrom(path, uint64(st.Blocks), uint64(st.Bavail), uint64(st.Bsize)), nil
}
