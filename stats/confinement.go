// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package stats

import (
	"math"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// Confinement computes each segment's mean confinement angle, per
// §4.5's algorithm: for every pixel, look N cells out along each of
// the two directions perpendicular to the local flow direction, take
// the largest DEM rise found along each ray, and combine the two
// rise/run slopes into an angle. A tightly confined channel (steep
// valley walls close on both sides) has a small angle; a channel on
// an open fan has one near 180 degrees.
//
// demPerM converts dem's elevation units to meters (1.0 if dem is
// already in meters).
func Confinement(s *segments.Segments, dem *raster.Raster, neighborhood int, demPerM float64) ([]float64, error) {
	if neighborhood < 1 {
		return nil, pfdferrors.Range("neighborhood", "neighborhood must be a positive pixel count", neighborhood, 1)
	}
	flow := s.Flow()
	if err := flow.RequireMatch(dem, "dem"); err != nil {
		return nil, err
	}
	transform := s.Transform()
	dx, dy := transform.DX, transform.DY

	ids := s.Ids()
	out := make([]float64, len(ids))
	for i, id := range ids {
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		angles := make([]float64, 0, len(pixels))
		for _, p := range pixels {
			angle, ok := pixelConfinement(flow, dem, p, neighborhood, demPerM, dx, dy)
			if ok {
				angles = append(angles, angle)
			}
		}
		out[i] = reduce(Mean, angles)
	}
	return out, nil
}

func pixelConfinement(flow, dem *raster.Raster, p d8.Pixel, n int, demPerM, dx, dy float64) (float64, bool) {
	dir := flowDirectionAt(flow, p)
	if dir == 0 {
		return 0, false
	}
	d1, d2, ok := d8.Perpendiculars(dir)
	if !ok {
		return 0, false
	}
	base := dem.Value(p.Row, p.Col)
	if math.IsNaN(base) {
		return 0, false
	}
	length := float64(n) * d8.PerpendicularLength(dir, dx, dy)
	if length == 0 {
		return 0, false
	}

	h1 := maxRise(dem, p, d1, n, base) * demPerM
	h2 := maxRise(dem, p, d2, n, base) * demPerM
	s1 := h1 / length
	s2 := h2 / length
	angleDeg := 180 - radToDeg(math.Atan(s1)) - radToDeg(math.Atan(s2))
	return angleDeg, true
}

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// maxRise walks n pixels from p in direction d, returning the largest
// DEM value found minus base (never negative: a cell off the grid or
// holding NoData contributes no rise, and the walk still examines the
// cells beyond it).
func maxRise(dem *raster.Raster, p d8.Pixel, d d8.Direction, n int, base float64) float64 {
	row, col := p.Row, p.Col
	best := 0.0
	for i := 0; i < n; i++ {
		nr, nc, ok := d8.Step(row, col, d)
		if !ok {
			break
		}
		v := dem.Value(nr, nc)
		if !math.IsNaN(v) && v-base > best {
			best = v - base
		}
		row, col = nr, nc
	}
	return best
}

func flowDirectionAt(flow *raster.Raster, p d8.Pixel) d8.Direction {
	v := flow.Value(p.Row, p.Col)
	if math.IsNaN(v) {
		return 0
	}
	d := d8.Direction(int(v))
	if float64(int(v)) != v || !d8.IsValid(d) {
		return 0
	}
	return d
}
