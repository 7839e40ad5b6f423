// Package diskspace implements the recording disk-space guard: a
// Statfs call against the filesystem backing the recordings
// root, with human-readable logging via go-humanize.
package diskspace

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// Info is the free/total space on the filesystem backing a path.
type Info struct {
	AvailableBytes uint64
	TotalBytes     uint64
}

// String renders Info using human-readable byte sizes, e.g. "12 GB free of 256 GB".
func (i Info) String() string {
	return fmt.Sprintf("%s free of %s", humanize.Bytes(i.AvailableBytes), humanize.Bytes(i.TotalBytes))
}

// Stat runs unix.Statfs against path (which may be a file or
// directory; only its containing filesystem matters) and reports
// available/total bytes. path should be the recordings root, not the
// process's working directory or root filesystem, since recordings
// may live on a separate mount.
func Stat(path string) (Info, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Info{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	blockSize := uint64(st.Bsize) // #nosec G115 -- Bsize is always positive on supported platforms
	return Info{
		AvailableBytes: st.Bavail * blockSize,
		TotalBytes:     st.Blocks * blockSize,
	}, nil
}

// Guard evaluates Info against configured thresholds.
type Guard struct {
	MinBytes     uint64
	WarningBytes uint64
}

// Level is the guard's verdict for the current free space.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelExhausted Level = "exhausted"
)

// Evaluate classifies info against the guard's thresholds. Exhausted
// takes priority over warning.
func (g Guard) Evaluate(info Info) Level {
	if info.AvailableBytes <= g.MinBytes {
		return LevelExhausted
	}
	if g.WarningBytes > 0 && info.AvailableBytes <= g.WarningBytes {
		return LevelWarning
	}
	return LevelOK
}
