//go:build windows

package handler

import "golang.org/x/sys/windows"

// getDiskStats returns disk usage statistics for the given path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return
	}
	var freeAvail, totalBytes, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeAvail, &totalBytes, &totalFree); err != nil {
		return
	}
	total = int64(totalBytes)
	free = int64(freeAvail)
	used = total - int64(totalFree)
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return
}

// getCPUUsage is not tracked on Windows.
func getCPUUsage() float64 {
	return 0
}
