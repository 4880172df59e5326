// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package export

import (
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// corner is a lattice point at pixel grid row/col cr, cc — the
// top-left corner of pixel (cr, cc) when both are in-bounds. §4.7's
// basin export needs a raster-to-polygon boundary tracer, and no
// vectorization library exists anywhere in this engine's dependency
// surface (github.com/paulmach/orb supplies geometry types, not a
// rasterizer/vectorizer pair), so this is written from scratch; see
// DESIGN.md's note on export.traceRegion for the justification this
// repo's standard-library-only code otherwise always carries.
type corner struct {
	row, col float64
}

// traceRegion returns every closed boundary ring of the cells in r
// equal to id, via directed edge-chaining ("square tracing"): walk
// each cell's 2x2 corner square clockwise (north, east, south, west
// edge in that fixed order), keep only the edges that border a
// non-matching neighbor, then chain those directed edges corner to
// corner until each returns to its start. A region's own boundary is
// always traced with its interior on the right of the travel
// direction, so an outer ring and any hole it contains emerge with
// opposite handedness automatically, the way a GeoJSON polygon's
// exterior/interior rings are expected to.
func traceRegion(r *raster.Raster, id float64) ([]orbRing, error) {
	h, w := r.Height(), r.Width()
	at := func(row, col int) bool {
		if row < 0 || row >= h || col < 0 || col >= w {
			return false
		}
		return r.Value(row, col) == id
	}

	edges := make(map[corner]corner)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !at(row, col) {
				continue
			}
			tl := corner{float64(row), float64(col)}
			tr := corner{float64(row), float64(col + 1)}
			br := corner{float64(row + 1), float64(col + 1)}
			bl := corner{float64(row + 1), float64(col)}

			if !at(row-1, col) { // north edge, travelling east
				edges[tl] = tr
			}
			if !at(row, col+1) { // east edge, travelling south
				edges[tr] = br
			}
			if !at(row+1, col) { // south edge, travelling west
				edges[br] = bl
			}
			if !at(row, col-1) { // west edge, travelling north
				edges[bl] = tl
			}
		}
	}

	var rings []orbRing
	visited := make(map[corner]bool, len(edges))
	for start := range edges {
		if visited[start] {
			continue
		}
		var ring orbRing
		cur := start
		for {
			next, ok := edges[cur]
			if !ok {
				return nil, pfdferrors.InternalInvariant("basin boundary tracing produced an open contour")
			}
			visited[cur] = true
			ring = append(ring, cur)
			cur = next
			if cur == start {
				break
			}
		}
		ring = append(ring, start) // close the ring per GeoJSON's linear-ring convention
		rings = append(rings, ring)
	}
	return rings, nil
}

type orbRing []corner
