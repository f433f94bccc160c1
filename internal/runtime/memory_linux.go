package runtime

import "golang.org/x/sys/unix"

// totalMemoryBytes reports physical memory for pool sizing. Zero on failure
// keeps the caller on the minimum worker count.
func totalMemoryBytes() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
