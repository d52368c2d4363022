//go:build linux || darwin

package artifact

import (
	"os"

	"golang.org/x/sys/unix"
)

func getFreeDiskSpace(path string) int64 {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return -1
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}

	return int64(fs.Bavail) * int64(fs.Bsize)
}
