package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ResourceConfig holds configuration for resource management.
type ResourceConfig struct {
	MaxMemoryBytes  uint64        // Heap ceiling in bytes (0 = no limit)
	MemoryThreshold float64       // Fraction of MaxMemoryBytes that counts as pressure (0.0-1.0)
	MonitorInterval time.Duration // How often the background monitor samples the heap
}

// DefaultResourceConfig returns sensible defaults for resource management.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		MaxMemoryBytes:  0,
		MemoryThreshold: 0.8,
		MonitorInterval: 250 * time.Millisecond,
	}
}

// ResourceStats holds resource usage statistics.
type ResourceStats struct {
	CurrentMemoryBytes   uint64    `json:"current_memory_bytes"`
	PeakMemoryBytes      uint64    `json:"peak_memory_bytes"`
	AverageMemoryBytes   uint64    `json:"average_memory_bytes"`
	MemoryPressureEvents int       `json:"memory_pressure_events"`
	LastMemoryPressure   time.Time `json:"last_memory_pressure"`
	MemoryUtilization    float64   `json:"memory_utilization"` // 0.0-1.0
}

// ResourceManager watches heap usage during a run and tells the windowed
// scheduler when to shrink its windows.
type ResourceManager struct {
	maxMemoryBytes  uint64
	memoryThreshold float64
	memoryMonitor   *MemoryMonitor

	statsMutex sync.Mutex
	stats      ResourceStats
}

// NewResourceManager creates a resource manager with the given configuration.
func NewResourceManager(config ResourceConfig) *ResourceManager {
	rm := &ResourceManager{
		maxMemoryBytes:  config.MaxMemoryBytes,
		memoryThreshold: config.MemoryThreshold,
		memoryMonitor:   NewMemoryMonitor(config.MonitorInterval),
	}
	if rm.memoryThreshold <= 0 || rm.memoryThreshold > 1.0 {
		rm.memoryThreshold = 0.8
	}
	return rm
}

// Start begins background memory sampling.
func (rm *ResourceManager) Start() {
	rm.memoryMonitor.Start()
}

// Stop ends background memory sampling.
func (rm *ResourceManager) Stop() {
	rm.memoryMonitor.Stop()
}

// CheckMemoryPressure takes a fresh heap sample and reports whether usage is
// above the threshold fraction of the limit. Without a limit it is always
// false.
func (rm *ResourceManager) CheckMemoryPressure() bool {
	if rm.maxMemoryBytes == 0 {
		return false
	}

	current := rm.memoryMonitor.Sample()
	utilization := float64(current) / float64(rm.maxMemoryBytes)

	rm.statsMutex.Lock()
	defer rm.statsMutex.Unlock()

	rm.stats.MemoryUtilization = utilization
	if utilization > rm.memoryThreshold {
		rm.stats.MemoryPressureEvents++
		rm.stats.LastMemoryPressure = time.Now()
		return true
	}
	return false
}

// ShouldThrottle implements scheduler.Throttle.
func (rm *ResourceManager) ShouldThrottle() bool {
	return rm.CheckMemoryPressure()
}

// GetStats returns a copy of current resource statistics.
func (rm *ResourceManager) GetStats() ResourceStats {
	rm.statsMutex.Lock()
	defer rm.statsMutex.Unlock()

	stats := rm.stats
	stats.CurrentMemoryBytes = rm.memoryMonitor.GetCurrentUsage()
	stats.PeakMemoryBytes = rm.memoryMonitor.GetPeakUsage()
	stats.AverageMemoryBytes = rm.memoryMonitor.GetAverageUsage()
	return stats
}

// MemoryMonitor samples heap usage periodically and remembers the peak.
type MemoryMonitor struct {
	interval   time.Duration
	maxSamples int
	read       func() uint64

	mutex        sync.RWMutex
	currentUsage uint64
	peakUsage    uint64
	samples      []uint64
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewMemoryMonitor creates a memory monitor sampling every interval.
func NewMemoryMonitor(interval time.Duration) *MemoryMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &MemoryMonitor{
		interval:   interval,
		maxSamples: 60,
		samples:    make([]uint64, 0, 60),
		read:       func() uint64 { return GetMemStats().HeapAllocBytes },
	}
}

// Start begins sampling in the background. Calling Start on a running
// monitor is a no-op.
func (mm *MemoryMonitor) Start() {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()

	if mm.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	mm.cancel = cancel
	mm.done = make(chan struct{})
	go mm.monitor(ctx, mm.done)
}

// Stop stops sampling and waits for the sampler to exit.
func (mm *MemoryMonitor) Stop() {
	mm.mutex.Lock()
	cancel, done := mm.cancel, mm.done
	mm.cancel, mm.done = nil, nil
	mm.mutex.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Sample reads the heap now and records it.
func (mm *MemoryMonitor) Sample() uint64 {
	usage := mm.read()

	mm.mutex.Lock()
	defer mm.mutex.Unlock()

	mm.currentUsage = usage
	if usage > mm.peakUsage {
		mm.peakUsage = usage
	}
	mm.samples = append(mm.samples, usage)
	if len(mm.samples) > mm.maxSamples {
		copy(mm.samples, mm.samples[1:])
		mm.samples = mm.samples[:mm.maxSamples]
	}
	return usage
}

// GetCurrentUsage returns the most recent sample in bytes.
func (mm *MemoryMonitor) GetCurrentUsage() uint64 {
	mm.mutex.RLock()
	defer mm.mutex.RUnlock()
	return mm.currentUsage
}

// GetPeakUsage returns the largest sample in bytes.
func (mm *MemoryMonitor) GetPeakUsage() uint64 {
	mm.mutex.RLock()
	defer mm.mutex.RUnlock()
	return mm.peakUsage
}

// GetAverageUsage returns the average over the retained samples.
func (mm *MemoryMonitor) GetAverageUsage() uint64 {
	mm.mutex.RLock()
	defer mm.mutex.RUnlock()

	if len(mm.samples) == 0 {
		return mm.currentUsage
	}
	var sum uint64
	for _, s := range mm.samples {
		sum += s
	}
	return sum / uint64(len(mm.samples))
}

func (mm *MemoryMonitor) monitor(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	mm.Sample()
	for {
		select {
		case <-ticker.C:
			mm.Sample()
		case <-ctx.Done():
			return
		}
	}
}

// ParseMemoryLimit parses sizes such as "512MB", "1.5GB", "2GiB" or a plain
// byte count. The empty string and "auto" mean no limit.
func ParseMemoryLimit(limit string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(limit))
	if s == "" || s == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
		{"B", 1},
	}
	factor := 1.0
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			factor = u.factor
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, fmt.Errorf("invalid memory limit %q", limit)
	}
	return uint64(n * factor), nil
}
