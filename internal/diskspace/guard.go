// Package diskspace implements the pre-write admission check for the
// import pipeline: a point-in-time probe of free space on the volume
// backing the database, compared against a configured floor.
package diskspace

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/disk"
)

// Guard checks available space on one path against a minimum. It has no
// side effects and holds no state beyond its configuration.
type Guard struct {
	path    string
	minFree uint64

	// usage is swappable in tests; defaults to gopsutil's statfs probe.
	usage func(path string) (*disk.UsageStat, error)
}

// New returns a Guard for the given mount path and free-byte floor.
func New(path string, minFreeBytes int64) *Guard {
	min := uint64(0)
	if minFreeBytes > 0 {
		min = uint64(minFreeBytes)
	}
	return &Guard{
		path:    path,
		minFree: min,
		usage:   disk.Usage,
	}
}

// IsLow reports whether free space is below the configured floor.
//
// Policy for a failed probe: a filesystem that cannot be statted is
// treated as low. Halting ingestion on a broken probe loses progress; an
// unchecked write onto a full disk loses the database.
func (g *Guard) IsLow() bool {
	stat, err := g.usage(g.path)
	if err != nil {
		slog.Warn("disk space probe failed, treating as low",
			"path", g.path,
			"error", err,
		)
		return true
	}
	return stat.Free < g.minFree
}
