package hostmetrics

import "github.com/MrWong99/vigil/internal/monitor"

// diskFrom converts statfs block counts. Free counts blocks available to
// unprivileged users, matching what df reports.
func diskFrom(path string, blocks, avail, bsize uint64) monitor.Disk {
	d := monitor.Disk{Path: path, Total: blocks * bsize, Free: avail * bsize}
	if d.Total > 0 {
		d.UsedPercent = float64(d.Total-min(d.Free, d.Total)) / float64(d.Total) * 100
	}
	return d
}
