// Package scheduler runs the decode, transform and encode work items of a
// corpus under a configurable concurrency policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/codec"
	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
	"github.com/MeKo-Tech/pixbatch/internal/transform"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the window size used when none is configured.
const DefaultBatchSize = 100

// Scheduler executes every (image, transform) work item exactly once.
//
// Sources are decoded once per image. In-place transforms always run on a
// private copy unless they are the final consumer of the source; the blur
// reads the shared source directly. Every buffer is released as soon as its
// last consumer is done.
type Scheduler struct {
	Codec      codec.Codec
	Transforms []transform.Transform
	Policy     Policy
	// Workers bounds the number of concurrently processed images or tasks
	// (0 = runtime.NumCPU()).
	Workers int
	// BatchSize is the window size for PolicyWindowed and the auto
	// threshold (0 = DefaultBatchSize).
	BatchSize int
	// OutputDir is the root under which each transform's directory lives.
	OutputDir string

	Throttle Throttle
	Progress Progress
	Metrics  Recorder
	Logger   *slog.Logger
}

// OutputPath returns where transform t writes the result for img.
func (s *Scheduler) OutputPath(img WorkImage, t transform.Transform) string {
	return filepath.Join(s.OutputDir, t.Dir(), img.Name)
}

func (s *Scheduler) batchSize() int {
	if s.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

func (s *Scheduler) workers() int {
	if s.Workers <= 0 {
		return runtime.NumCPU()
	}
	return s.Workers
}

// Run processes images and returns one ItemResult per work item, ordered by
// image then transform. Per-item failures are recorded in the outcome and
// never abort the run. If ctx is canceled, items not yet started are marked
// StatusCanceled and the context error is returned along with the outcome.
func (s *Scheduler) Run(ctx context.Context, images []WorkImage) (*Outcome, error) {
	if s.Codec == nil {
		return nil, errors.New("scheduler: no codec configured")
	}
	if len(s.Transforms) == 0 {
		return nil, errors.New("scheduler: no transforms configured")
	}

	start := time.Now()
	policy := s.Policy.Resolve(len(images), s.batchSize())
	r := newRun(ctx, s, images)

	r.logger.Info("Scheduling work items",
		"policy", policy.String(),
		"images", len(images),
		"transforms", len(s.Transforms),
		"workers", r.workers,
	)

	if s.Progress != nil {
		s.Progress.OnStart(len(r.items))
	}

	var windows int
	switch policy {
	case PolicyFlat:
		r.flat()
	case PolicySections:
		r.sections()
	case PolicyFanOut:
		r.fanOut()
	case PolicyWindowed:
		windows = r.windowed(s.batchSize())
	default:
		return nil, fmt.Errorf("scheduler: unsupported policy %s", policy)
	}

	if s.Progress != nil {
		s.Progress.OnComplete()
	}

	out := &Outcome{
		Policy:  policy,
		Images:  len(images),
		Items:   r.items,
		Phases:  r.phases(),
		Wall:    time.Since(start),
		Windows: windows,
	}
	out.tally()

	if s.Metrics != nil {
		s.Metrics.ObservePhase("read", out.Phases.Read)
		s.Metrics.ObservePhase("process", out.Phases.Process)
		s.Metrics.ObservePhase("write", out.Phases.Write)
	}

	if err := ctx.Err(); err != nil {
		r.logger.Warn("Scheduling canceled", "canceled_items", out.Canceled, "error", err)
		return out, fmt.Errorf("scheduler canceled: %w", err)
	}
	return out, nil
}

// run holds the state of one Run call. items has one slot per work item;
// each slot is written by exactly one goroutine.
type run struct {
	ctx     context.Context
	s       *Scheduler
	ts      []transform.Transform
	images  []WorkImage
	items   []ItemResult
	workers int
	logger  *slog.Logger

	readNs    atomic.Int64
	processNs atomic.Int64
	writeNs   atomic.Int64
	done      atomic.Int64
	progMu    sync.Mutex
}

func newRun(ctx context.Context, s *Scheduler, images []WorkImage) *run {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := len(s.Transforms)
	items := make([]ItemResult, len(images)*m)
	for i, img := range images {
		for j, t := range s.Transforms {
			items[i*m+j] = ItemResult{
				Index:     img.Index,
				Transform: t.Name(),
				Output:    s.OutputPath(img, t),
				Status:    StatusCanceled,
			}
		}
	}
	return &run{
		ctx:     ctx,
		s:       s,
		ts:      s.Transforms,
		images:  images,
		items:   items,
		workers: s.workers(),
		logger:  logger,
	}
}

func (r *run) phases() PhaseTimes {
	return PhaseTimes{
		Read:    time.Duration(r.readNs.Load()),
		Process: time.Duration(r.processNs.Load()),
		Write:   time.Duration(r.writeNs.Load()),
	}
}

func (r *run) item(pos, j int) *ItemResult {
	return &r.items[pos*len(r.ts)+j]
}

func (r *run) record(pos, j int, status Status, err error, d time.Duration) {
	it := r.item(pos, j)
	it.Status = status
	it.Err = err
	it.Duration = d

	if r.s.Metrics != nil {
		r.s.Metrics.ObserveItem(it.Transform, status, d)
	}
	if r.s.Progress != nil {
		n := int(r.done.Add(1))
		r.progMu.Lock()
		if err != nil {
			r.s.Progress.OnError(n, err)
		}
		r.s.Progress.OnProgress(n, len(r.items))
		r.progMu.Unlock()
	}
}

func (r *run) fail(pos, j int, stage string, err error, d time.Duration) {
	img := r.images[pos]
	name := r.ts[j].Name()
	r.logger.Warn("Work item failed",
		"index", img.Index,
		"path", img.Source,
		"transform", name,
		"stage", stage,
		"error", err,
	)
	r.record(pos, j, StatusFailed, &ItemError{Index: img.Index, Transform: name, Stage: stage, Err: err}, d)
}

// read decodes image pos. It returns nil when the image is missing or
// unreadable, in which case all of its items have been recorded.
func (r *run) read(pos int) *imagebuf.Buffer {
	img := r.images[pos]
	t0 := time.Now()
	buf, err := r.s.Codec.Decode(img.Source)
	r.readNs.Add(int64(time.Since(t0)))

	if err != nil {
		buf.Release()
		for j := range r.ts {
			r.fail(pos, j, StageDecode, err, 0)
		}
		return nil
	}
	if buf.Empty() {
		r.logger.Debug("Source missing, skipping", "index", img.Index, "path", img.Source)
		for j := range r.ts {
			r.record(pos, j, StatusSkipped, nil, 0)
		}
		return nil
	}
	return buf
}

// apply runs transform j for image pos and writes the result. With owned
// set, src is consumed; otherwise it is only read.
func (r *run) apply(pos, j int, src *imagebuf.Buffer, owned bool) {
	t := r.ts[j]
	t0 := time.Now()
	var out *imagebuf.Buffer
	var err error
	if owned {
		out, err = transform.Consume(src, t)
	} else {
		out, err = transform.Derive(src, t)
	}
	elapsed := time.Since(t0)
	r.processNs.Add(int64(elapsed))
	if err != nil {
		r.fail(pos, j, StageTransform, err, elapsed)
		return
	}

	t1 := time.Now()
	err = r.s.Codec.Encode(r.item(pos, j).Output, out)
	out.Release()
	written := time.Since(t1)
	r.writeNs.Add(int64(written))
	if err != nil {
		r.fail(pos, j, StageEncode, err, elapsed+written)
		return
	}
	r.record(pos, j, StatusWritten, nil, elapsed+written)
}

// processImage applies every transform to src in order and releases src.
// The last transform takes src itself, so it is copied at most M-1 times.
func (r *run) processImage(pos int, src *imagebuf.Buffer) {
	last := len(r.ts) - 1
	for j := range r.ts {
		if r.ctx.Err() != nil {
			src.Release()
			return
		}
		r.apply(pos, j, src, j == last)
	}
}

// forEach calls fn for 0..n-1 on at most r.workers goroutines and waits.
// Indices not yet started when the context ends are skipped.
func (r *run) forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range n {
		if r.ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r.ctx.Err() == nil {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) flat() {
	r.forEach(len(r.images), func(pos int) {
		if src := r.read(pos); src != nil {
			r.processImage(pos, src)
		}
	})
}

func (r *run) sections() {
	n := len(r.images)
	srcs := make([]*imagebuf.Buffer, n)
	r.forEach(n, func(pos int) {
		srcs[pos] = r.read(pos)
	})

	// In-place transforms each get a private copy of every source before
	// any stream starts. Out-of-place transforms share the source.
	copies := make([][]*imagebuf.Buffer, len(r.ts))
	for j, t := range r.ts {
		if t.InPlace() {
			copies[j] = make([]*imagebuf.Buffer, n)
		}
	}
	r.forEach(n, func(pos int) {
		if srcs[pos] == nil {
			return
		}
		t0 := time.Now()
		for j := range copies {
			if copies[j] != nil {
				copies[j][pos] = srcs[pos].Clone()
			}
		}
		r.processNs.Add(int64(time.Since(t0)))
	})

	var g errgroup.Group
	for j := range r.ts {
		g.Go(func() error {
			for pos := range n {
				if r.ctx.Err() != nil {
					return nil
				}
				if srcs[pos] == nil {
					continue
				}
				if copies[j] == nil {
					r.apply(pos, j, srcs[pos], false)
					continue
				}
				cp := copies[j][pos]
				copies[j][pos] = nil
				if cp != nil {
					r.apply(pos, j, cp, true)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for j := range copies {
		for _, b := range copies[j] {
			b.Release()
		}
	}
	for _, b := range srcs {
		b.Release()
	}
}

func (r *run) fanOut() {
	var g errgroup.Group
	g.SetLimit(r.workers)
	for pos := range r.images {
		if r.ctx.Err() != nil {
			break
		}
		src := r.read(pos)
		if src == nil {
			continue
		}

		var refs atomic.Int32
		refs.Store(int32(len(r.ts)))
		for j := range r.ts {
			g.Go(func() error {
				if r.ctx.Err() == nil {
					r.apply(pos, j, src, false)
				}
				if refs.Add(-1) == 0 {
					src.Release()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// windowed processes the corpus in contiguous windows. At most one window of
// sources and their copies is resident at a time. Under memory pressure the
// next window is halved.
func (r *run) windowed(size int) int {
	windows := 0
	for start := 0; start < len(r.images) && r.ctx.Err() == nil; {
		if r.s.Throttle != nil && r.s.Throttle.ShouldThrottle() {
			runtime.GC()
			if size > 1 {
				size = max(1, size/2)
				r.logger.Warn("Memory pressure detected, shrinking window", "window", size)
			}
		}

		end := min(start+size, len(r.images))
		srcs := make([]*imagebuf.Buffer, end-start)
		r.forEach(len(srcs), func(i int) {
			srcs[i] = r.read(start + i)
		})
		r.forEach(len(srcs), func(i int) {
			if srcs[i] != nil {
				r.processImage(start+i, srcs[i])
				srcs[i] = nil
			}
		})
		for _, b := range srcs {
			b.Release()
		}

		windows++
		r.logger.Debug("Window complete",
			"window", windows,
			"first_index", r.images[start].Index,
			"last_index", r.images[end-1].Index,
		)
		start = end
	}
	return windows
}
