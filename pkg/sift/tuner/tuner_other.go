//go:build !darwin && !linux

package tuner

import (
	"runtime"
)

// Detect detects available system resources (CPU and RAM).
// Memory detection is not implemented here, so a fixed total is assumed.
func Detect() (SystemResources, error) {
	totalRAM := int64(defaultTotalRAM)

	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     totalRAM,
		AvailableRAM: totalRAM / 2,
	}, nil
}
