package common

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.Alloc)
	assert.Positive(t, stats.Sys)

	str := stats.String()
	assert.Contains(t, str, "Alloc:")
	assert.Contains(t, str, "KB")
}

func TestBenchmarkResult(t *testing.T) {
	result := BenchmarkResult{
		Name:         "test_result",
		Duration:     100 * time.Millisecond,
		Iterations:   10,
		MemoryBefore: MemoryStats{TotalAlloc: 1024},
		MemoryAfter:  MemoryStats{TotalAlloc: 5 * 1024},
	}

	str := result.String()
	assert.Contains(t, str, "test_result")
	assert.Contains(t, str, "10 iterations")
	assert.Contains(t, str, "avg: 10ms")
	assert.Contains(t, str, "total: 100ms")
	assert.Contains(t, str, "alloc: 4 KB")

	errorResult := BenchmarkResult{Name: "error_result", Error: errors.New("test error")}
	str = errorResult.String()
	assert.Contains(t, str, "error_result: ERROR - test error")
	assert.Zero(t, errorResult.Average())
}

func TestBenchmarkResult_AllocatedBytesNeverUnderflows(t *testing.T) {
	r := BenchmarkResult{MemoryBefore: MemoryStats{TotalAlloc: 10}, MemoryAfter: MemoryStats{TotalAlloc: 5}}
	assert.Zero(t, r.AllocatedBytes())
}

func TestBenchmarkSuite(t *testing.T) {
	suite := NewBenchmarkSuite()
	calls := map[string]int{}
	suite.Add("slow", func() error {
		calls["slow"]++
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	suite.Add("fast", func() error {
		calls["fast"]++
		return nil
	})
	suite.Add("broken", func() error {
		calls["broken"]++
		return errors.New("boom")
	})

	results := suite.RunAll(3)
	require.Len(t, results, 3)
	assert.Equal(t, 3, calls["slow"])
	assert.Equal(t, 3, calls["fast"])
	assert.Equal(t, 1, calls["broken"], "stops at first error")
	assert.Equal(t, 3, results[0].Iterations)
	assert.Error(t, results[2].Error)
	assert.Equal(t, results, suite.Results())

	best, ok := suite.Fastest()
	require.True(t, ok)
	assert.Equal(t, "fast", best.Name)

	var buf bytes.Buffer
	suite.PrintResults(&buf)
	assert.Contains(t, buf.String(), "Benchmark Results:")
	assert.Contains(t, buf.String(), "broken: ERROR - boom")
	assert.Contains(t, buf.String(), "Fastest: fast")
}

func TestBenchmarkSuite_Empty(t *testing.T) {
	suite := NewBenchmarkSuite()
	assert.Empty(t, suite.RunAll(0))
	_, ok := suite.Fastest()
	assert.False(t, ok)
}

func BenchmarkMemoryStatsRetrieval(b *testing.B) {
	for range b.N {
		GetMemoryStats()
	}
}
