package helpers

import (
	"runtime/debug"

	"portfolio-stream/src/logger"
)

const minMemoryLimitMB = 512

// ApplyMemoryLimit sets the GC soft memory limit to 75% of the memory
// available to the process and returns it in MB. Nothing is changed when the
// amount cannot be determined.
func ApplyMemoryLimit(log *logger.Logger) int {
	limit := recommendedMemoryLimitMB(availableMemoryMB())
	if limit == 0 {
		log.Warning("Could not determine available memory, leaving GC memory limit unset")
		return 0
	}

	debug.SetMemoryLimit(int64(limit) << 20)
	log.Info("GC soft memory limit set to %d MB", limit)
	return limit
}

// -----------------------------------------------------------------------------

func recommendedMemoryLimitMB(totalMB int) int {
	if totalMB <= 0 {
		return 0
	}

	limit := int(float64(totalMB) * 0.75)
	if limit < minMemoryLimitMB {
		if totalMB < minMemoryLimitMB {
			return totalMB
		}
		return minMemoryLimitMB
	}
	return limit
}
