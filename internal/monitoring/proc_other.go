//go:build !linux

package monitoring

import (
	"fmt"
	"runtime"
)

func readCPUStats() (*CPUReading, error) {
	return nil, fmt.Errorf("cpu usage is not available on %s", runtime.GOOS)
}

func readMemoryPercent() (float64, error) {
	return 0, fmt.Errorf("memory usage is not available on %s", runtime.GOOS)
}
