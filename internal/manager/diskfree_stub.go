//go:build !unix

package manager

// freeDiskMB is unavailable on this platform; the preflight is skipped.
func freeDiskMB(dir string) (int64, bool) { return 0, false }
