package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/MeKo-Tech/pixbatch/internal/testutil"
)

func benchmarkPolicy(b *testing.B, policy scheduler.Policy) {
	b.Helper()
	root := b.TempDir()
	in := filepath.Join(root, "in")
	if _, err := testutil.WriteCorpus(testutil.CorpusConfig{
		Dir:   in,
		Count: 16,
		Size:  testutil.SmallSize,
	}); err != nil {
		b.Fatal(err)
	}

	p, err := NewBuilder().
		WithInputDir(in).
		WithOutputDir(filepath.Join(root, "out")).
		WithTransforms("negate", "grayscale", "brightness", "blur").
		WithPolicy(policy).
		WithBatchSize(4).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if _, err := p.Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRun_Flat(b *testing.B)     { benchmarkPolicy(b, scheduler.PolicyFlat) }
func BenchmarkRun_Sections(b *testing.B) { benchmarkPolicy(b, scheduler.PolicySections) }
func BenchmarkRun_Fanout(b *testing.B)   { benchmarkPolicy(b, scheduler.PolicyFanOut) }
func BenchmarkRun_Windowed(b *testing.B) { benchmarkPolicy(b, scheduler.PolicyWindowed) }
