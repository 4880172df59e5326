// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package segments builds and queries the parent/child DAG of stream
// segments extracted by package d8, per pfdf/segments/_segments.py (the
// Python this engine was distilled from). A Segments value owns the
// flow raster it was built from and a table of segment records keyed
// by a stable, sequentially-assigned ID; every accessor returns a
// defensive copy, matching _segments.py's "never hand back a live
// reference to interior state" convention.
package segments

import (
	"github.com/samber/lo"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// segment is one node of the DAG. Unlike _segments.py, which stores a
// fixed-width (N, K) parents matrix padded with -1 and grows K when a
// confluence needs it, this engine keeps parents as a plain []int:
// Go's slice already expresses variable arity without a padding
// sentinel, so the matrix-growth mechanism has no work left to do
// (documented in DESIGN.md as a resolved simplification).
type segment struct {
	id      int
	pixels  []d8.Pixel
	points  []d8.Point
	npixels int
	parents []int
	child   int // -1 if this segment is a terminus
}

// Segments is the constructed DAG plus the flow raster it was derived
// from. Zero value is not usable; construct with New.
type Segments struct {
	flow      *raster.Raster
	transform raster.Transform
	crs       raster.CRS
	height    int
	width     int

	order []int // current ids, in construction order, shrinks under Keep/Remove
	byID  map[int]*segment

	basinCache *raster.Raster
}

// New builds the segment graph from a flow-direction raster restricted
// to a boolean channel mask, splitting any run longer than maxLength
// (in the given units) into pieces as d8.Network does. This is §4.3's
// five-step constructor: extract polylines (step 1), assign sequential
// IDs (step 2), take the polylines' own pixel lists as the per-segment
// indices (step 3 — see the step 3 note in the body below for why this
// engine skips the coordinate-inversion/split-pixel bookkeeping
// _segments.py performs), link parent/child by coordinate adjacency
// (step 4), and populate npixels via accumulation (step 5).
func New(flow, mask *raster.Raster, maxLength float64, units d8.Units) (*Segments, error) {
	lines, err := d8.Network(flow, mask, maxLength, units)
	if err != nil {
		return nil, err
	}
	transform, _ := flow.Transform()
	crs, _ := flow.CRS()

	s := &Segments{
		flow:      flow,
		transform: transform,
		crs:       crs,
		height:    flow.Height(),
		width:     flow.Width(),
		byID:      make(map[int]*segment, len(lines)),
	}

	// step 3: this engine's d8.Network already returns each segment's
	// exact, disjoint pixel ownership (see d8/network.go's Polyline
	// doc comment) — no rounding-and-drop correction is needed here,
	// unlike _segments.py's constructor.
	for i, line := range lines {
		id := i + 1
		s.order = append(s.order, id)
		s.byID[id] = &segment{
			id:      id,
			pixels:  append([]d8.Pixel(nil), line.Pixels...),
			points:  append([]d8.Point(nil), line.Points...),
			parents: nil,
			child:   -1,
		}
	}

	// step 4: a segment's phantom trailing point (if any) coincides
	// exactly with its child's first point, since both are the same
	// pixel center computed through the same transform.
	firstPoint := make(map[d8.Point][]int, len(s.order))
	for _, id := range s.order {
		seg := s.byID[id]
		firstPoint[seg.points[0]] = append(firstPoint[seg.points[0]], id)
	}
	for _, id := range s.order {
		seg := s.byID[id]
		if len(seg.points) <= len(seg.pixels) {
			continue // no phantom tail: this segment is terminal
		}
		tail := seg.points[len(seg.points)-1]
		children := firstPoint[tail]
		if len(children) == 0 {
			continue
		}
		childID := children[0]
		seg.child = childID
		s.byID[childID].parents = append(s.byID[childID].parents, id)
	}

	// step 5: npixels is the full upstream drainage count at each
	// segment's own outlet (its last pixel), using unweighted,
	// unmasked accumulation over the whole flow network.
	acc, err := d8.Accumulation(flow, d8.AccumulationOptions{})
	if err != nil {
		return nil, err
	}
	for _, id := range s.order {
		seg := s.byID[id]
		outlet := seg.pixels[len(seg.pixels)-1]
		seg.npixels = int(acc.Value(outlet.Row, outlet.Col))
	}

	return s, nil
}

func (s *Segments) get(id int) (*segment, error) {
	seg, ok := s.byID[id]
	if !ok {
		return nil, pfdferrors.Range("id", "no segment with this ID exists in the graph", id, s.order)
	}
	return seg, nil
}

// Size is the current number of segments in the graph.
func (s *Segments) Size() int { return len(s.order) }

// Nlocal is the number of pixels segment id owns directly (excluding
// its catchment's upstream contributors).
func (s *Segments) Nlocal(id int) (int, error) {
	seg, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return len(seg.pixels), nil
}

// Ids returns a copy of every current segment ID, in construction
// order.
func (s *Segments) Ids() []int {
	return append([]int(nil), s.order...)
}

// TerminalIds returns the IDs of every segment with no child.
func (s *Segments) TerminalIds() []int {
	return lo.Filter(s.Ids(), func(id int, _ int) bool {
		return s.byID[id].child == -1
	})
}

// Segment returns the polyline (pixel list and world points) for id.
func (s *Segments) Segment(id int) (d8.Polyline, error) {
	seg, err := s.get(id)
	if err != nil {
		return d8.Polyline{}, err
	}
	return d8.Polyline{
		Pixels: append([]d8.Pixel(nil), seg.pixels...),
		Points: append([]d8.Point(nil), seg.points...),
	}, nil
}

// Indices returns a copy of segment id's own pixel list.
func (s *Segments) Indices(id int) ([]d8.Pixel, error) {
	seg, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]d8.Pixel(nil), seg.pixels...), nil
}

// Npixels returns segment id's catchment pixel count at its own
// outlet.
func (s *Segments) Npixels(id int) (int, error) {
	seg, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return seg.npixels, nil
}

// RasterShape returns the (height, width) of the raster this graph
// was built over.
func (s *Segments) RasterShape() (int, int) { return s.height, s.width }

// Transform returns the affine transform of the raster this graph was
// built over.
func (s *Segments) Transform() raster.Transform { return s.transform }

// Bounds returns the world bounding box of the raster this graph was
// built over.
func (s *Segments) Bounds() (raster.BoundingBox, error) { return s.flow.Bounds() }

// CRS returns the coordinate reference system of the raster this graph
// was built over.
func (s *Segments) CRS() raster.CRS { return s.crs }

// Flow returns the flow-direction raster backing this graph. Safe to
// share: raster.Raster is never mutated in place once constructed.
func (s *Segments) Flow() *raster.Raster { return s.flow }

// IsTerminal reports, for each requested ID, whether it has no child.
func (s *Segments) IsTerminal(ids []int) ([]bool, error) {
	out := make([]bool, len(ids))
	for i, id := range ids {
		seg, err := s.get(id)
		if err != nil {
			return nil, err
		}
		out[i] = seg.child == -1
	}
	return out, nil
}

// Parents returns a copy of the IDs that flow directly into id, or nil
// if id is a channel head.
func (s *Segments) Parents(id int) ([]int, error) {
	seg, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), seg.parents...), nil
}

// Child returns the ID that id flows directly into, and false if id is
// a terminus.
func (s *Segments) Child(id int) (int, bool, error) {
	seg, err := s.get(id)
	if err != nil {
		return 0, false, err
	}
	return seg.child, seg.child != -1, nil
}

// Ancestors returns every segment that flows into id, transitively,
// via breadth-first traversal over Parents. The traversal is bounded
// by the graph size; exceeding that bound means the parent/child
// tables have a cycle, which should be impossible and is reported as
// an internal invariant violation rather than hung forever.
func (s *Segments) Ancestors(id int) ([]int, error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	var result []int
	frontier := []int{id}
	visited := map[int]bool{id: true}
	limit := len(s.order) + 1
	for steps := 0; len(frontier) > 0; steps++ {
		if steps > limit {
			return nil, pfdferrors.InternalInvariant("ancestor traversal exceeded the graph size bound; parent/child tables may be cyclic")
		}
		var next []int
		for _, cur := range frontier {
			for _, p := range s.byID[cur].parents {
				if !visited[p] {
					visited[p] = true
					result = append(result, p)
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return result, nil
}

// Descendents returns the downstream chain from id to its terminus,
// exclusive of id itself.
func (s *Segments) Descendents(id int) ([]int, error) {
	seg, err := s.get(id)
	if err != nil {
		return nil, err
	}
	var result []int
	cur := seg.child
	limit := len(s.order) + 1
	for i := 0; cur != -1; i++ {
		if i > limit {
			return nil, pfdferrors.InternalInvariant("descendent traversal exceeded the graph size bound; parent/child tables may be cyclic")
		}
		result = append(result, cur)
		cur = s.byID[cur].child
	}
	return result, nil
}

// Family returns id's terminus together with every ancestor of that
// terminus: the full set of segments draining to the same outlet as
// id, per §4.3.
func (s *Segments) Family(id int) ([]int, error) {
	terminus, err := s.terminus(id)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.Ancestors(terminus)
	if err != nil {
		return nil, err
	}
	return append([]int{terminus}, ancestors...), nil
}

func (s *Segments) terminus(id int) (int, error) {
	seg, err := s.get(id)
	if err != nil {
		return 0, err
	}
	cur := id
	limit := len(s.order) + 1
	for i := 0; seg.child != -1; i++ {
		if i > limit {
			return 0, pfdferrors.InternalInvariant("terminus traversal exceeded the graph size bound; parent/child tables may be cyclic")
		}
		cur = seg.child
		seg = s.byID[cur]
	}
	return cur, nil
}

// Termini returns, for each requested ID, the terminal ID of its
// family.
func (s *Segments) Termini(ids []int) ([]int, error) {
	out := make([]int, len(ids))
	for i, id := range ids {
		t, err := s.terminus(id)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// IsNested reports, for each requested ID, whether that segment's
// terminal outlet pixel lies inside a *different* terminal's basin —
// i.e. whether this terminal's drainage is fully enclosed by another
// terminal's catchment in the painted basin raster. Computing this
// builds (and caches) the terminal-basin raster.
func (s *Segments) IsNested(ids []int) ([]bool, error) {
	basins, err := s.terminalBasinRaster()
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(ids))
	for i, id := range ids {
		terminus, err := s.terminus(id)
		if err != nil {
			return nil, err
		}
		outlet := s.byID[terminus].pixels[len(s.byID[terminus].pixels)-1]
		painted := basins.Value(outlet.Row, outlet.Col)
		out[i] = int(painted) != terminus
	}
	return out, nil
}

// SelectionType distinguishes whether a selection names segments by
// their position in Ids() or by their stable segment ID.
type SelectionType int

const (
	ByIndices SelectionType = iota
	ByIDs
)

func (s *Segments) resolveIDs(selection []int, kind SelectionType) ([]int, error) {
	if kind == ByIDs {
		for _, id := range selection {
			if _, err := s.get(id); err != nil {
				return nil, err
			}
		}
		return append([]int(nil), selection...), nil
	}
	ids := make([]int, len(selection))
	for i, idx := range selection {
		if idx < 0 || idx >= len(s.order) {
			return nil, pfdferrors.Range("selection", "index out of range for the current segment count", idx, len(s.order))
		}
		ids[i] = s.order[idx]
	}
	return ids, nil
}

// Outlets returns the outlet pixel for each requested ID: the
// terminal outlet by default, or the segment's own last pixel when
// segmentOutlets is true.
func (s *Segments) Outlets(ids []int, segmentOutlets bool) ([]d8.Pixel, error) {
	out := make([]d8.Pixel, len(ids))
	for i, id := range ids {
		seg, err := s.get(id)
		if err != nil {
			return nil, err
		}
		if segmentOutlets {
			out[i] = seg.pixels[len(seg.pixels)-1]
			continue
		}
		terminus, err := s.terminus(id)
		if err != nil {
			return nil, err
		}
		tseg := s.byID[terminus]
		out[i] = tseg.pixels[len(tseg.pixels)-1]
	}
	return out, nil
}
