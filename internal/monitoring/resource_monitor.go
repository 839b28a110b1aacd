package monitoring

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rama-kairi/minios/internal/logger"
)

// ResourceMetrics holds one telemetry reading
type ResourceMetrics struct {
	Timestamp     time.Time     `json:"timestamp"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	Uptime        time.Duration `json:"uptime"`
	Goroutines    int           `json:"goroutines"`
	Processes     int           `json:"processes"`
}

// CPUReading is cumulative busy and idle jiffies
type CPUReading struct {
	Busy uint64
	Idle uint64
}

// ResourceMonitor answers the cpu, memory and uptime commands. CPU usage
// is measured between consecutive calls; the first call samples over a
// short interval.
type ResourceMonitor struct {
	logger    *logger.Logger
	startedAt time.Time
	interval  time.Duration

	mutex    sync.Mutex
	previous *CPUReading

	now          func() time.Time
	readCPU      func() (*CPUReading, error)
	readMemory   func() (float64, error)
	processCount func() int
}

// NewResourceMonitor creates a new resource monitor. Uptime is measured
// from the moment it is created.
func NewResourceMonitor(log *logger.Logger, interval time.Duration) *ResourceMonitor {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &ResourceMonitor{
		logger:     log,
		startedAt:  time.Now(),
		interval:   interval,
		now:        time.Now,
		readCPU:    readCPUStats,
		readMemory: readMemoryPercent,
	}
}

// SetProcessCounter sets the callback reporting supervised process count
func (rm *ResourceMonitor) SetProcessCounter(counter func() int) {
	rm.processCount = counter
}

// CPUPercent returns system-wide CPU utilization since the previous call
func (rm *ResourceMonitor) CPUPercent() (float64, error) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if rm.previous == nil {
		first, err := rm.readCPU()
		if err != nil {
			return 0, err
		}
		rm.previous = first
		time.Sleep(rm.interval)
	}

	current, err := rm.readCPU()
	if err != nil {
		return 0, err
	}

	percent := cpuPercent(rm.previous, current)
	rm.previous = current
	return percent, nil
}

// MemoryPercent returns the share of physical memory in use
func (rm *ResourceMonitor) MemoryPercent() (float64, error) {
	return rm.readMemory()
}

// Uptime returns the time elapsed since the monitor was created
func (rm *ResourceMonitor) Uptime() time.Duration {
	return rm.now().Sub(rm.startedAt)
}

// GetCurrentMetrics takes a reading. Telemetry failures leave the
// corresponding fields at zero and are logged.
func (rm *ResourceMonitor) GetCurrentMetrics() ResourceMetrics {
	metrics := ResourceMetrics{
		Timestamp:  rm.now(),
		Uptime:     rm.Uptime(),
		Goroutines: runtime.NumGoroutine(),
	}

	if cpu, err := rm.CPUPercent(); err == nil {
		metrics.CPUPercent = cpu
	} else {
		rm.logger.Warn("cpu reading failed", map[string]interface{}{"error": err.Error()})
	}

	if mem, err := rm.MemoryPercent(); err == nil {
		metrics.MemoryPercent = mem
	} else {
		rm.logger.Warn("memory reading failed", map[string]interface{}{"error": err.Error()})
	}

	if rm.processCount != nil {
		metrics.Processes = rm.processCount()
	}

	return metrics
}

// GetResourceSummary returns the current reading as log fields
func (rm *ResourceMonitor) GetResourceSummary() map[string]interface{} {
	current := rm.GetCurrentMetrics()

	return map[string]interface{}{
		"timestamp":      current.Timestamp.Format(time.RFC3339),
		"cpu_percent":    FormatPercent(current.CPUPercent),
		"memory_percent": FormatPercent(current.MemoryPercent),
		"uptime_seconds": int64(current.Uptime / time.Second),
		"goroutines":     current.Goroutines,
		"processes":      current.Processes,
	}
}

func cpuPercent(previous, current *CPUReading) float64 {
	if previous == nil || current == nil {
		return 0
	}
	if current.Busy < previous.Busy || current.Idle < previous.Idle {
		return 0
	}

	busyDelta := current.Busy - previous.Busy
	idleDelta := current.Idle - previous.Idle
	totalDelta := busyDelta + idleDelta
	if totalDelta == 0 {
		return 0
	}
	return float64(busyDelta) / float64(totalDelta) * 100
}

// FormatPercent renders a percentage with one decimal, e.g. "12.5"
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f", p)
}

// FormatUptime renders d as "H hours, M minutes, S seconds"
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%d hours, %d minutes, %d seconds", hours, minutes, seconds)
}
