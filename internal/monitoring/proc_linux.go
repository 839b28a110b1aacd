//go:build linux

package monitoring

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

func readCPUStats() (*CPUReading, error) {
	return readCPUStatsFrom("/proc/stat")
}

// readCPUStatsFrom parses the aggregate line of /proc/stat:
//
//	cpu  user nice system idle iowait irq softirq steal [guest guest_nice]
//
// guest time is already counted in user and nice.
func readCPUStatsFrom(path string) (*CPUReading, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%s is empty", path)
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return nil, fmt.Errorf("unexpected format in %s", path)
	}

	values := make([]uint64, len(fields)-1)
	for i := 1; i < len(fields); i++ {
		parsed, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected value %q in %s", fields[i], path)
		}
		values[i-1] = parsed
	}

	busy := values[0] + values[1] + values[2] + values[5] + values[6] + values[7]
	idle := values[3] + values[4]
	return &CPUReading{Busy: busy, Idle: idle}, nil
}

func readMemoryPercent() (float64, error) {
	if percent, err := readMemInfoFrom("/proc/meminfo"); err == nil {
		return percent, nil
	}
	return sysinfoMemoryPercent()
}

// readMemInfoFrom computes used memory as (MemTotal - MemAvailable) / MemTotal
func readMemInfoFrom(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var total, available uint64
	var haveTotal, haveAvailable bool

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, err = strconv.ParseUint(fields[1], 10, 64)
			haveTotal = err == nil
		case "MemAvailable:":
			available, err = strconv.ParseUint(fields[1], 10, 64)
			haveAvailable = err == nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	if !haveTotal || !haveAvailable || total == 0 || available > total {
		return 0, fmt.Errorf("MemTotal or MemAvailable missing from %s", path)
	}
	return float64(total-available) / float64(total) * 100, nil
}

func sysinfoMemoryPercent() (float64, error) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, err
	}

	totalBytes := uint64(info.Totalram) * uint64(info.Unit)
	freeBytes := uint64(info.Freeram) * uint64(info.Unit)
	if totalBytes == 0 || totalBytes < freeBytes {
		return 0, fmt.Errorf("sysinfo reported no memory")
	}
	return float64(totalBytes-freeBytes) / float64(totalBytes) * 100, nil
}
