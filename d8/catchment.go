// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package d8

import (
	"github.com/rogerlew/usgs-pfdf/internal/queue"
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// Catchment returns a boolean H×W raster whose True cells are the
// upstream set of (row, col), inclusive of (row, col) itself (§4.2).
// It walks the flow graph backwards: an iterative BFS following only
// incoming edges, the mirror image of the teacher's forward pixel
// queue in d8FlowAccumulation.go.
func Catchment(flow *raster.Raster, row, col int) (*raster.Raster, error) {
	g, err := newFlowGrid(flow)
	if err != nil {
		return nil, err
	}
	if !g.inBounds(row, col) {
		return nil, pfdferrors.Range("row/col", "pixel is out of bounds for the flow raster shape", [2]int{row, col}, [2]int{g.height, g.width})
	}

	h, w := g.height, g.width
	visited := make([]bool, h*w)
	visited[row*w+col] = true

	q := queue.New()
	q.Push(row, col)
	for q.Len() > 0 {
		r, c := q.Pop()
		for _, in := range g.inNeighbors(r, c) {
			ir, ic := in[0], in[1]
			i := ir*w + ic
			if !visited[i] {
				visited[i] = true
				q.Push(ir, ic)
			}
		}
	}

	out := make([]float64, h*w)
	for i, v := range visited {
		if v {
			out[i] = 1
		}
	}
	// No NoData sentinel: 0 here means "outside the catchment," a real
	// boolean false, not a missing value, so it must never collapse to
	// NaN under raster.Value (see stats.nanIndicator for the same
	// concern on an indicator raster).
	transform, _ := flow.Transform()
	crs, _ := flow.CRS()
	return raster.Construct(out, h, w, raster.Bool, raster.Options{
		Transform: &transform,
		CRS:       &crs,
	})
}

// CatchmentCount returns the number of upstream pixels (including the
// outlet): the count of Catchment's true cells. The segment graph does
// not call it (npixels comes from the accumulation kernel, §4.3 step
// 5, and IsNested reads the basin raster); it is a standalone
// cross-check against Accumulation.
func CatchmentCount(flow *raster.Raster, row, col int) (int, error) {
	r, err := Catchment(flow, row, col)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, v := range r.Data() {
		if v != 0 {
			count++
		}
	}
	return count, nil
}
