// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package d8

import (
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// flowGrid is the decoded, boundary-screened view of a flow-direction
// raster: every cell is either one of the eight valid Direction codes
// or zero (boundary). Decoding once up front, rather than on every
// lookup, matches the teacher's approach in d8FlowAccumulation.go of
// precomputing a `flowdir [][]int8` grid before the accumulation
// sweep.
type flowGrid struct {
	height, width int
	dirs          []Direction
}

func newFlowGrid(flow *raster.Raster) (*flowGrid, error) {
	if _, ok := flow.CRS(); !ok {
		return nil, pfdferrors.MissingMetadata("flow", "the flow direction raster must have a CRS")
	}
	if _, ok := flow.Transform(); !ok {
		return nil, pfdferrors.MissingMetadata("flow", "the flow direction raster must have an affine transform")
	}

	h, w := flow.Height(), flow.Width()
	dirs := make([]Direction, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := flow.Value(row, col)
			d := Direction(int(v))
			if float64(int(v)) == v && IsValid(d) {
				dirs[row*w+col] = d
			}
			// else: NoData or any out-of-set value -> 0 (boundary).
		}
	}
	return &flowGrid{height: h, width: w, dirs: dirs}, nil
}

func (g *flowGrid) at(row, col int) Direction {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return 0
	}
	return g.dirs[row*g.width+col]
}

func (g *flowGrid) inBounds(row, col int) bool {
	return row >= 0 && row < g.height && col >= 0 && col < g.width
}

// receiver returns the downstream neighbour of (row, col), and
// whether (row,col) has a valid outgoing direction that lands inside
// the grid.
func (g *flowGrid) receiver(row, col int) (int, int, bool) {
	d := g.at(row, col)
	if d == 0 {
		return row, col, false
	}
	nr, nc, ok := Step(row, col, d)
	if !ok || !g.inBounds(nr, nc) {
		return row, col, false
	}
	return nr, nc, true
}

// inNeighbors returns the (row, col) of every neighbour of (row, col)
// whose flow direction points at (row, col): the neighbour at
// (row,col)+off carries an in-flow direction iff that direction is
// the opposite of off, per the opposite table in direction.go.
func (g *flowGrid) inNeighbors(row, col int) [][2]int {
	var ins [][2]int
	for _, d := range allDirections {
		nr, nc, ok := Step(row, col, d)
		if !ok || !g.inBounds(nr, nc) {
			continue
		}
		if g.at(nr, nc) == opposite[d] {
			ins = append(ins, [2]int{nr, nc})
		}
	}
	return ins
}
