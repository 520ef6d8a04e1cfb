package utils

import (
	"os"
	"path/filepath"
)

// CheckPid reports whether a process with this pid exists, by probing
// its /proc directory.
func CheckPid(pid string) bool {
	path := filepath.Join("/proc", pid)
	_, err := os.Stat(path)
	return err == nil
}
