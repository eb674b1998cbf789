package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// Default cgroup v1 limit_in_bytes when memory isn't restricted.
	// See https://unix.stackexchange.com/questions/420906/what-is-the-value-for-the-cgroups-limit-in-bytes-if-the-memory-is-not-restricte
	unrestrictedMemoryLimit = 9223372036854771712

	// cgroup v2 reports an unrestricted limit as "max"
	unrestrictedMemoryMax = "max"
)

var (
	cgroupV1MemoryLimitLocation = "/sys/fs/cgroup/memory/memory.limit_in_bytes"
	cgroupV2MemoryLimitLocation = "/sys/fs/cgroup/memory.max"
)

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	totalMemory := memory.TotalMemory()

	if limit, ok := readCgroupLimit(cgroupV2MemoryLimitLocation); ok {
		return limit
	}
	if limit, ok := readCgroupLimit(cgroupV1MemoryLimitLocation); ok {
		return limit
	}
	return totalMemory
}

func readCgroupLimit(path string) (uint64, bool) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	value := strings.TrimSpace(string(contents))
	if value == unrestrictedMemoryMax {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil || limit == unrestrictedMemoryLimit || limit == 0 {
		return 0, false
	}
	return limit, true
}
