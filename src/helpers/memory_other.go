//go:build !linux

package helpers

func availableMemoryMB() int {
	return 0
}
