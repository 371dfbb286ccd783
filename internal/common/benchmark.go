package common

import (
	"fmt"
	"io"
	"runtime"
	"time"
)

// MemoryStats holds the memory figures reported by benchmarks.
type MemoryStats struct {
	Alloc         uint64
	TotalAlloc    uint64
	Sys           uint64
	Mallocs       uint64
	Frees         uint64
	HeapAlloc     uint64
	HeapInuse     uint64
	NumGC         uint32
	GCCPUFraction float64
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		Mallocs:       m.Mallocs,
		Frees:         m.Frees,
		HeapAlloc:     m.HeapAlloc,
		HeapInuse:     m.HeapInuse,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024,
		m.TotalAlloc/1024,
		m.Sys/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// BenchmarkResult holds the measurements of one benchmark.
type BenchmarkResult struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration per iteration.
func (br BenchmarkResult) Average() time.Duration {
	if br.Iterations <= 0 {
		return 0
	}
	return br.Duration / time.Duration(br.Iterations)
}

// AllocatedBytes returns the bytes allocated while the benchmark ran.
func (br BenchmarkResult) AllocatedBytes() uint64 {
	if br.MemoryAfter.TotalAlloc < br.MemoryBefore.TotalAlloc {
		return 0
	}
	return br.MemoryAfter.TotalAlloc - br.MemoryBefore.TotalAlloc
}

// String returns a formatted string representation of the benchmark result.
func (br BenchmarkResult) String() string {
	if br.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", br.Name, br.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		br.Name, br.Iterations, br.Average(), br.Duration, br.AllocatedBytes()/1024)
}

type benchmark struct {
	name string
	fn   func() error
}

// BenchmarkSuite runs named functions repeatedly and records their timings.
type BenchmarkSuite struct {
	benchmarks []benchmark
	results    []BenchmarkResult
}

// NewBenchmarkSuite creates an empty benchmark suite.
func NewBenchmarkSuite() *BenchmarkSuite {
	return &BenchmarkSuite{}
}

// Add registers fn under name.
func (bs *BenchmarkSuite) Add(name string, fn func() error) {
	bs.benchmarks = append(bs.benchmarks, benchmark{name: name, fn: fn})
}

// RunAll runs every benchmark for the given number of iterations, in the
// order they were added. A benchmark stops at its first error.
func (bs *BenchmarkSuite) RunAll(iterations int) []BenchmarkResult {
	iterations = max(1, iterations)
	bs.results = make([]BenchmarkResult, 0, len(bs.benchmarks))
	for _, b := range bs.benchmarks {
		bs.results = append(bs.results, runBenchmark(b, iterations))
	}
	return bs.results
}

// Results returns the results of the last RunAll.
func (bs *BenchmarkSuite) Results() []BenchmarkResult {
	return bs.results
}

// Fastest returns the successful result with the lowest average, if any.
func (bs *BenchmarkSuite) Fastest() (BenchmarkResult, bool) {
	var best BenchmarkResult
	found := false
	for _, r := range bs.results {
		if r.Error != nil {
			continue
		}
		if !found || r.Average() < best.Average() {
			best, found = r, true
		}
	}
	return best, found
}

// PrintResults writes one line per result.
func (bs *BenchmarkSuite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range bs.results {
		_, _ = fmt.Fprintln(w, r.String())
	}
	if best, ok := bs.Fastest(); ok {
		_, _ = fmt.Fprintf(w, "Fastest: %s (%v per iteration)\n", best.Name, best.Average())
	}
}

func runBenchmark(b benchmark, iterations int) BenchmarkResult {
	runtime.GC()
	memBefore := GetMemoryStats()
	timer := NewNamedTimer(b.name)

	var err error
	completed := 0
	for range iterations {
		if err = b.fn(); err != nil {
			break
		}
		completed++
	}

	return BenchmarkResult{
		Name:         b.name,
		Duration:     timer.Stop(),
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   completed,
		Error:        err,
	}
}
