// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package basins builds the terminal-basin raster described in §4.4:
// an H×W grid labelling every pixel with the ID of the
// furthest-downstream terminal segment whose catchment contains it.
// The serial path delegates to segments.Segments' own cached builder;
// this package adds the worker-pool-backed parallel path, built on
// github.com/alitto/pond, the same way
// sixy6e-go-gsf/cmd/main.go fans a fixed worker pool out over a batch
// of independent conversion jobs.
package basins

import (
	"runtime"
	"sort"

	"github.com/alitto/pond"

	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// Build runs the serial terminal-basin raster construction (§4.4),
// reusing Segments' own cache.
func Build(s *segments.Segments) (*raster.Raster, error) {
	return s.TerminalBasins()
}

// ParallelOptions configures BuildParallel. Workers <= 0 defaults to
// runtime.NumCPU().
//
// Per §4.4, this path must only be invoked from a program's top-level
// entry point, not from within an interactive session: pond workers
// are plain goroutines rather than spawned OS processes, so this
// engine carries none of the fork-safety restrictions the original
// Python implementation had to document, but the call-site discipline
// is preserved here for parity with §4.4's stated contract.
type ParallelOptions struct {
	Workers int
}

// BuildParallel splits the terminal segments into disjoint groups,
// paints each group's catchments onto a private buffer on its own
// worker, then reduces the buffers by keeping, at each pixel, the
// label belonging to the terminal with the larger catchment — the
// same "most downstream basin wins" rule Build applies serially,
// since a larger D8 catchment sharing a pixel always contains any
// smaller one that shares it.
func BuildParallel(s *segments.Segments, opts ParallelOptions) (*raster.Raster, error) {
	terminals := s.TerminalIds()
	if len(terminals) == 0 {
		return s.TerminalBasins()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(terminals) {
		workers = len(terminals)
	}

	npixelsOf := make(map[int]int, len(terminals))
	for _, id := range terminals {
		n, err := s.Npixels(id)
		if err != nil {
			return nil, err
		}
		npixelsOf[id] = n
	}

	groups := partition(terminals, workers)
	h, w := s.RasterShape()
	buffers := make([][]float64, len(groups))

	pool := pond.New(workers, 0, pond.MinWorkers(workers))
	errs := make([]error, len(groups))
	for gi, group := range groups {
		gi, group := gi, group
		pool.Submit(func() {
			buf, err := paintGroup(s, group, npixelsOf, h, w)
			if err != nil {
				errs[gi] = err
				return
			}
			buffers[gi] = buf
		})
	}
	pool.StopAndWait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	final := make([]float64, h*w)
	for _, buf := range buffers {
		for i, v := range buf {
			if v == 0 {
				continue
			}
			if final[i] == 0 || npixelsOf[int(v)] > npixelsOf[int(final[i])] {
				final[i] = v
			}
		}
	}

	// No NoData sentinel: 0 is the meaningful "outside all basins" label
	// (§3), not a missing value, so it must never collapse to NaN under
	// raster.Value.
	transform := s.Transform()
	crs := s.CRS()
	return raster.Construct(final, h, w, raster.Int32, raster.Options{
		Transform: &transform,
		CRS:       &crs,
	})
}

// paintGroup is each worker's private job: stamp its own subset of
// terminal catchments onto a fresh buffer, smallest catchment first,
// so a later, larger catchment in the same group correctly overwrites
// an earlier, smaller one it contains.
func paintGroup(s *segments.Segments, group []int, npixelsOf map[int]int, h, w int) ([]float64, error) {
	sorted := append([]int(nil), group...)
	sort.Slice(sorted, func(i, j int) bool { return npixelsOf[sorted[i]] < npixelsOf[sorted[j]] })

	buf := make([]float64, h*w)
	for _, id := range sorted {
		mask, err := s.CatchmentMask(id)
		if err != nil {
			return nil, err
		}
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				if mask.Value(row, col) != 0 {
					buf[row*w+col] = float64(id)
				}
			}
		}
	}
	return buf, nil
}

// partition splits ids into n roughly-equal contiguous groups.
func partition(ids []int, n int) [][]int {
	groups := make([][]int, n)
	per := (len(ids) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * per
		if start >= len(ids) {
			break
		}
		end := start + per
		if end > len(ids) {
			end = len(ids)
		}
		groups[i] = ids[start:end]
	}
	var nonEmpty [][]int
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	return nonEmpty
}
