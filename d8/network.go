// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package d8

import (
	"math"

	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// Units enumerates the length units §4.2/§6 recognise for max_length.
type Units int

const (
	UnitsBase Units = iota
	UnitsMeters
	UnitsKilometers
	UnitsFeet
	UnitsMiles
)

func toMeters(v float64, u Units) float64 {
	switch u {
	case UnitsKilometers:
		return v * 1000
	case UnitsFeet:
		return v * 0.3048
	case UnitsMiles:
		return v * 1609.344
	default: // base, meters: this engine has no CRS unit-introspection
		// library (see DESIGN.md), so "base" units are treated as
		// already being meters, which is exact for the projected
		// rasters this engine targets.
		return v
	}
}

// Pixel is a (row, col) grid location.
type Pixel struct {
	Row, Col int
}

// Point is a world (x, y) coordinate.
type Point struct {
	X, Y float64
}

// Polyline is one stream segment's pixel walk and matching
// world-coordinate vertices, ordered upstream to downstream.
//
// Pixels lists exactly the raster cells this segment owns: unlike the
// Python reference this engine was distilled from (which derives
// pixel indices by rounding coordinates out of a shapely geometry,
// requiring an after-the-fact "drop the last coordinate, and also the
// first if it duplicates the previous segment's last" correction —
// see pfdf/segments/_segments.py's constructor), this engine builds
// the pixel walk directly off the flow graph, so no cell is ever
// double-counted and no post-hoc dropping is needed.
//
// Points holds one world coordinate per pixel, plus — whenever the
// segment's last pixel has a valid flow direction — one extra trailing
// coordinate at the receiving cell's center. The receiving cell may be
// the next split piece, a confluence, a mask-false cell, or a cell past
// the grid edge; only a last pixel with no valid direction gets no
// trailing coordinate. That phantom vertex lets a child segment's
// first Point coincide exactly with its parent's last Point, which is
// how §3's parent/child coordinate invariant is satisfied without
// sharing a raster cell between the two segments.
type Polyline struct {
	Pixels []Pixel
	Points []Point
}

func arcLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total
}

func centers(pixels []Pixel, transform raster.Transform) []Point {
	points := make([]Point, len(pixels))
	for i, p := range pixels {
		x, y := transform.XY(float64(p.Row)+0.5, float64(p.Col)+0.5)
		points[i] = Point{X: x, Y: y}
	}
	return points
}

// Network extracts the ordered list of stream segment polylines from
// a flow-direction raster restricted to a boolean mask, splitting any
// run longer than maxLength into pieces grown greedily from the
// upstream end (see splitByLength), so the last piece of a run may be
// shorter than the others (§4.2).
//
// Algorithm: walk the mask-true subgraph of the D8 flow graph, one
// pass per channel head. A pixel starts a walk when it has no
// mask-true in-neighbour (a channel head) or when more than one
// mask-true in-neighbour flows into it (a confluence — the merged
// channel continues as a fresh walk whose first pixel is the
// confluence pixel itself). A walk ends when its next pixel falls
// outside the mask or the grid, or when its next pixel is a
// confluence (which is not added to this walk; it belongs to the
// confluence's own walk). This mirrors the teacher's D8
// traversal style — follow flow directions pixel by pixel, as in
// d8FlowAccumulation.go — generalized to stop at topological events
// instead of running to the grid edge.
func Network(flow *raster.Raster, mask *raster.Raster, maxLength float64, units Units) ([]Polyline, error) {
	g, err := newFlowGrid(flow)
	if err != nil {
		return nil, err
	}
	if err := flow.RequireMatch(mask, "mask"); err != nil {
		return nil, err
	}
	transform, _ := flow.Transform()
	diag := transform.PixelDiagonal()
	maxLengthMeters := toMeters(maxLength, units)
	if maxLengthMeters < diag {
		return nil, pfdferrors.Range("max_length", "max_length must be at least as long as the diagonal of the raster pixels", maxLengthMeters, diag)
	}

	h, w := g.height, g.width
	maskTrue := make([]bool, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := mask.Value(row, col)
			maskTrue[row*w+col] = v != 0 && !math.IsNaN(v)
		}
	}
	isMaskTrue := func(row, col int) bool {
		if row < 0 || row >= h || col < 0 || col >= w {
			return false
		}
		return maskTrue[row*w+col]
	}

	// In-degree counted only over the mask-true induced subgraph.
	inDegree := make([]int, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !isMaskTrue(row, col) {
				continue
			}
			nr, nc, ok := g.receiver(row, col)
			if ok && isMaskTrue(nr, nc) {
				inDegree[nr*w+nc]++
			}
		}
	}
	isConfluence := func(row, col int) bool {
		return inDegree[row*w+col] > 1
	}

	var starts []Pixel
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !isMaskTrue(row, col) {
				continue
			}
			i := row*w + col
			if inDegree[i] == 0 || inDegree[i] > 1 {
				starts = append(starts, Pixel{Row: row, Col: col})
			}
		}
	}

	var result []Polyline
	for _, s := range starts {
		pixels := []Pixel{s}
		cur := s
		for {
			nr, nc, ok := g.receiver(cur.Row, cur.Col)
			if !ok || !isMaskTrue(nr, nc) {
				break // terminal: ran off the mask or the grid
			}
			if isConfluence(nr, nc) {
				break // the next cell is a merge point; it belongs to its own walk, not this one
			}
			cur = Pixel{Row: nr, Col: nc}
			pixels = append(pixels, cur)
		}

		// The phantom point one step past this walk's final pixel,
		// used to close the coordinate gap to whatever continues
		// downstream (a split piece, the next walk at a confluence,
		// or nothing at all if the direction is itself invalid).
		var phantom *Point
		if last := pixels[len(pixels)-1]; g.at(last.Row, last.Col) != 0 {
			nr, nc, _ := Step(last.Row, last.Col, g.at(last.Row, last.Col))
			x, y := transform.XY(float64(nr)+0.5, float64(nc)+0.5)
			phantom = &Point{X: x, Y: y}
		}

		pieces := splitByLength(pixels, transform, maxLengthMeters, phantom)
		if phantom != nil {
			last := &pieces[len(pieces)-1]
			last.Points = append(last.Points, *phantom)
		}
		result = append(result, pieces...)
	}
	return result, nil
}

// chunkLength reports the arc length of a candidate piece
// pixels[start:start+size], extended by one more hop to whatever the
// piece links to once split off: the next pixel of the same walk when
// one remains, otherwise trailing (the walk's own phantom receiver)
// when the walk continues past its last pixel. A piece that neither
// has a following pixel nor a trailing receiver is truly the end of
// the line, and its length is its own arc length with no extra hop.
func chunkLength(points []Point, start, size, n int, trailing *Point) float64 {
	end := start + size
	seq := points[start:end]
	var extra *Point
	switch {
	case end < n:
		extra = &points[end]
	case trailing != nil:
		extra = trailing
	}
	if extra != nil {
		seq = append(append([]Point(nil), seq...), *extra)
	}
	return arcLength(seq)
}

// splitByLength divides a pixel walk into pieces each spanning at most
// maxLength, per §4.2's "long runs are bisected so every piece has
// length <= max_length." A piece that links downstream — to the next
// piece of the same walk, or (for the walk's very last piece) to the
// phantom point the whole walk continues into — spans one hop more
// than its own pixel count would suggest, since that phantom vertex is
// itself part of the piece's geometry; chunkLength accounts for that
// hop when measuring how far a piece can grow before it must split.
// Growing forward greedily (rather than a length-blind midpoint
// bisection) is what reproduces §8 scenario 3's worked example — a
// 10-pixel run at max_length=3*dx splits 3+3+3+1, not a "balanced"
// 3+2+3+2.
func splitByLength(pixels []Pixel, transform raster.Transform, maxLength float64, trailing *Point) []Polyline {
	points := centers(pixels, transform)
	n := len(pixels)

	var pieces []Polyline
	for start := 0; start < n; {
		size := 1
		for start+size < n && chunkLength(points, start, size+1, n, trailing) <= maxLength {
			size++
		}
		end := start + size
		pieces = append(pieces, Polyline{
			Pixels: append([]Pixel(nil), pixels[start:end]...),
			Points: append([]Point(nil), points[start:end]...),
		})
		start = end
	}

	for i := 0; i < len(pieces)-1; i++ {
		pieces[i].Points = append(pieces[i].Points, pieces[i+1].Points[0])
	}
	return pieces
}
