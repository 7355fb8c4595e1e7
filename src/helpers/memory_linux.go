//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// availableMemoryMB prefers the cgroup v2 limit over physical memory.
func availableMemoryMB() int {
	total := meminfoTotalMB()
	if limit := cgroupLimitMB(); limit > 0 && (total == 0 || limit < total) {
		return limit
	}
	return total
}

func meminfoTotalMB() int {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.Atoi(fields[1])
			if err == nil {
				return kb / 1024
			}
		}
	}
	return 0
}

func cgroupLimitMB() int {
	data, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0
	}
	return parseCgroupLimitMB(string(data))
}

// "max" means unlimited.
func parseCgroupLimitMB(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "max" {
		return 0
	}
	b, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return int(b >> 20)
}
