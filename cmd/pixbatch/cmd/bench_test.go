package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchCommand(t *testing.T) {
	root := isolate(t)
	in := writeCorpus(t, root, 3)
	out := filepath.Join(root, "bench")

	stdout, _, err := execute(t, "bench", in,
		"--policies", "flat,windowed",
		"--iterations", "2",
		"--output", out,
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Benchmark Results:")
	assert.Contains(t, stdout, "flat: 2 iterations")
	assert.Contains(t, stdout, "windowed: 2 iterations")
	assert.Contains(t, stdout, "Fastest:")
	assert.Equal(t, []string{"1.png", "2.png", "3.png"}, testutil.ListFiles(t, filepath.Join(out, "flat", "negated")))
	assert.Equal(t, []string{"1.png", "2.png", "3.png"}, testutil.ListFiles(t, filepath.Join(out, "windowed", "blurred")))
}

func TestBenchCommand_TempOutput(t *testing.T) {
	root := isolate(t)
	in := writeCorpus(t, root, 1)

	stdout, _, err := execute(t, "bench", in, "--policies", "sections")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sections: 1 iterations")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "negated", e.Name())
	}
}

func TestBenchCommand_Invalid(t *testing.T) {
	root := isolate(t)
	in := writeCorpus(t, root, 1)

	_, _, err := execute(t, "bench", in, "--policies", "random")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheduling policy")

	_, _, err = execute(t, "bench", in, "--iterations", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid iterations")

	_, _, err = execute(t, "bench", filepath.Join(root, "missing"), "--policies", "flat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "benchmark flat failed")
}
