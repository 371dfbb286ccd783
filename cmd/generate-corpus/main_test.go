package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndices(t *testing.T) {
	got, err := parseIndices(" 3, 7,,9 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 9}, got)

	got, err = parseIndices("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseIndices("3,x")
	require.Error(t, err)
	_, err = parseIndices("0")
	require.Error(t, err)
}

func TestWriteManifest(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	cfg := testutil.CorpusConfig{
		Dir:       dir,
		Count:     3,
		Size:      testutil.TinySize,
		Extension: "png",
		Missing:   []int{2},
	}
	paths := testutil.CreateCorpus(t, cfg)
	require.NoError(t, writeManifest(cfg, paths))

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, []string{"1.png", "3.png"}, m.Files)
	assert.Equal(t, []int{2}, m.Missing)
	assert.Equal(t, 16, m.Width)
}
