package transform

import "golang.org/x/sync/errgroup"

// forRows splits [0, height) into contiguous bands and runs fn on each band
// concurrently. Bands never overlap, so fn may write its rows without locks.
func forRows(height, workers int, fn func(y0, y1 int)) {
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	band := (height + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < height; y0 += band {
		y1 := min(y0+band, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}
