//go:build unix

package manager

import (
	"os"
	"syscall"
)

// freeDiskMB reports the free space in MB of the filesystem holding dir
// (or the current directory when dir does not exist yet). ok is false
// when the probe itself fails, in which case the preflight is skipped.
func freeDiskMB(dir string) (int64, bool) {
	probe := dir
	if _, err := os.Stat(probe); err != nil {
		probe = "."
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(probe, &st); err != nil {
		return 0, false
	}
	return int64(st.Bavail) * int64(st.Bsize) / (1 << 20), true
}
