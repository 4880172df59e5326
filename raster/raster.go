// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package raster implements the engine's grid primitive: a 2-D array
// of numeric cells plus an optional CRS, an optional affine
// transform, and an optional NoData sentinel. It is the sole raster
// type every other package in this module consumes. Rasters are built
// from in-memory row-major arrays via Construct; this package reads no
// raster files.
package raster

import (
	"math"
	"strings"

	"github.com/rogerlew/usgs-pfdf/pfdferrors"
)

// DType enumerates the supported cell element types, mirroring the
// DT_* constants of the teacher's raster.RasterConfig.DataType field.
type DType int

const (
	Int8 DType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Bool
)

// Casting enumerates the NoData-assignment casting policies of §4.1.
// CastSafe is the zero value, matching §4.1's stated default.
type Casting int

const (
	CastSafe Casting = iota
	CastNo
	CastEquiv
	CastSameKind
	CastUnsafe
)

func dtypeRange(dtype DType) (lo, hi float64, bounded bool) {
	switch dtype {
	case Int8:
		return -128, 127, true
	case Uint8:
		return 0, 255, true
	case Int16:
		return -32768, 32767, true
	case Uint16:
		return 0, 65535, true
	case Int32:
		return -2147483648, 2147483647, true
	case Uint32:
		return 0, 4294967295, true
	case Int64:
		return -9223372036854775808, 9223372036854775807, true
	case Uint64:
		return 0, 18446744073709551615, true
	case Bool:
		return 0, 1, true
	default: // Float32, Float64
		return 0, 0, false
	}
}

// canCast reports whether value may be assigned as a NoData sentinel
// on a raster of dtype under casting, per §4.1's "NoData assignment is
// subject to a casting policy". No numpy-style can_cast equivalent
// exists in this module's dependency surface, so the policies below
// are this engine's own reading of the same five names: no/equiv both
// require an exact, lossless value (an integer dtype only accepts a
// whole number already in range); safe additionally tolerates a
// lossless numeric kind change (still whole-number-and-in-range for an
// integer dtype, unrestricted for a float dtype); same_kind further
// tolerates truncation toward zero; unsafe accepts anything.
func canCast(value float64, dtype DType, casting Casting) bool {
	if casting == CastUnsafe {
		return true
	}
	if math.IsNaN(value) {
		return dtype == Float32 || dtype == Float64
	}
	lo, hi, bounded := dtypeRange(dtype)
	if !bounded {
		return true // Float32/Float64 accept any finite value under every policy
	}
	switch casting {
	case CastSameKind:
		return value >= lo && value <= hi
	default: // CastNo, CastEquiv, CastSafe
		return value == math.Trunc(value) && value >= lo && value <= hi
	}
}

// CRS is a coordinate reference system expressed as an EPSG code or,
// failing that, a WKT string. Exactly one of the two is expected to
// be meaningful; EPSG == 0 with a non-empty WKT means "WKT-only".
type CRS struct {
	EPSG int
	WKT  string
}

// Equal reports whether two CRS values name the same system. This is
// a literal comparison, not a semantic/projection-aware one: the
// engine has no geodetic projection library in its dependency
// surface (see DESIGN.md), so CRS identity is the only relation it
// can safely assert.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 && o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	return c.WKT == o.WKT
}

func (c CRS) IsZero() bool {
	return c.EPSG == 0 && c.WKT == ""
}

// geographicEPSG lists the common geographic (lon/lat degrees) EPSG
// codes, the way the teacher's geotiff package tells a geographic CRS
// from a projected one by looking the EPSG code up against its own
// geographicTypeMap rather than inspecting units directly.
var geographicEPSG = map[int]bool{
	4326: true, // WGS 84
	4267: true, // NAD27
	4269: true, // NAD83
	4283: true, // GDA94
	4617: true, // NAD83(CSRS)
}

// IsGeographic reports whether c describes a geographic (lon/lat
// degrees) coordinate system rather than a projected (linear units)
// one. An EPSG code is checked against the common geographic codes
// above; a WKT-only CRS is judged by whether its root node names a
// geographic CRS.
func (c CRS) IsGeographic() bool {
	if c.EPSG != 0 {
		return geographicEPSG[c.EPSG]
	}
	upper := strings.ToUpper(c.WKT)
	return strings.Contains(upper, "GEOGCS") || strings.Contains(upper, "GEOGCRS")
}

// Transform is the 6-parameter affine mapping pixel (row, col)
// corners to world (x, y), in the order named by §6: (dx,
// rotation_row, left, rotation_col, dy, top).
type Transform struct {
	DX       float64
	RotRow   float64
	Left     float64
	RotCol   float64
	DY       float64
	Top      float64
}

// XY converts a (row, col) pixel coordinate (fractional pixel corner
// offsets allowed) to world (x, y) under this transform.
func (t Transform) XY(row, col float64) (x, y float64) {
	x = t.Left + col*t.DX + row*t.RotCol
	y = t.Top + col*t.RotRow + row*t.DY
	return x, y
}

// RowCol inverts XY, returning fractional (row, col) pixel
// coordinates for a world (x, y) point. Panics if the transform is
// degenerate (zero determinant), which cannot happen for any
// transform derived from non-degenerate Bounds or a nonzero DX/DY pair.
func (t Transform) RowCol(x, y float64) (row, col float64) {
	det := t.DX*t.DY - t.RotCol*t.RotRow
	dx, dy := x-t.Left, y-t.Top
	col = (dx*t.DY - dy*t.RotCol) / det
	row = (dy*t.DX - dx*t.RotRow) / det
	return row, col
}

// PixelDiagonal returns the length of the diagonal of one pixel,
// using the axis resolutions |DX| and |DY|.
func (t Transform) PixelDiagonal() float64 {
	return math.Hypot(math.Abs(t.DX), math.Abs(t.DY))
}

// BoundingBox is a world-coordinate rectangle, used to construct a
// Transform in place of an explicit one, and by Clip/Buffer.
type BoundingBox struct {
	Left, Bottom, Right, Top float64
}

// transformFromBounds derives transform = (dx, 0, left, 0, dy, top)
// with dx = (right-left)/W and dy = -(top-bottom)/H, per §4.1.
func transformFromBounds(b BoundingBox, height, width int) Transform {
	dx := (b.Right - b.Left) / float64(width)
	dy := -(b.Top - b.Bottom) / float64(height)
	return Transform{DX: dx, Left: b.Left, DY: dy, Top: b.Top}
}

// Raster is a rectangular grid of float64 cells (the canonical
// in-memory representation; integer/boolean dtypes are tracked via
// DType for casting/rounding purposes but stored as float64 so that
// NoData collapses uniformly to NaN for every computation in this
// module, per §3's "NoData and NaN semantics").
type Raster struct {
	height, width int
	dtype         DType
	nodata        *float64
	crs           *CRS
	transform     *Transform
	data          []float64 // row-major, len == height*width
}

// Options configures Construct. Exactly one of Transform or Bounds
// may be set. Casting governs whether NoData may be assigned onto
// dtype; it defaults to CastSafe, the zero value, per §4.1.
type Options struct {
	NoData    *float64
	Casting   Casting
	CRS       *CRS
	Transform *Transform
	Bounds    *BoundingBox
}

// Construct builds a Raster from a row-major in-memory grid. data
// must have exactly height*width elements.
func Construct(data []float64, height, width int, dtype DType, opts Options) (*Raster, error) {
	if height < 0 || width < 0 {
		return nil, pfdferrors.Array("height/width", "raster dimensions must be non-negative", [2]int{height, width})
	}
	if len(data) != height*width {
		return nil, pfdferrors.Array("data", "raster data length must equal height*width", len(data))
	}
	if opts.Transform != nil && opts.Bounds != nil {
		return nil, pfdferrors.Range("transform/bounds", "exactly one of transform or bounds may be set", "both", "one")
	}
	if opts.NoData != nil && !canCast(*opts.NoData, dtype, opts.Casting) {
		return nil, pfdferrors.Casting("nodata", "NoData value cannot be cast to the raster's dtype under the requested casting policy", *opts.NoData, dtype)
	}

	r := &Raster{
		height: height,
		width:  width,
		dtype:  dtype,
		data:   data,
	}
	if opts.NoData != nil {
		nd := *opts.NoData
		r.nodata = &nd
	}
	if opts.CRS != nil {
		c := *opts.CRS
		r.crs = &c
	}
	switch {
	case opts.Transform != nil:
		t := *opts.Transform
		r.transform = &t
	case opts.Bounds != nil:
		t := transformFromBounds(*opts.Bounds, height, width)
		r.transform = &t
	}
	return r, nil
}

func (r *Raster) Height() int   { return r.height }
func (r *Raster) Width() int    { return r.width }
func (r *Raster) DType() DType  { return r.dtype }
func (r *Raster) Size() int     { return r.height * r.width }

// NoData reports the NoData sentinel and whether one is set.
func (r *Raster) NoData() (float64, bool) {
	if r.nodata == nil {
		return 0, false
	}
	return *r.nodata, true
}

// CRS reports the raster's coordinate reference system, if any.
func (r *Raster) CRS() (CRS, bool) {
	if r.crs == nil {
		return CRS{}, false
	}
	return *r.crs, true
}

// Transform reports the raster's affine transform, if any.
func (r *Raster) Transform() (Transform, bool) {
	if r.transform == nil {
		return Transform{}, false
	}
	return *r.transform, true
}

// Bounds derives the world-coordinate bounding rectangle from the
// transform and raster shape. Requires a transform.
func (r *Raster) Bounds() (BoundingBox, error) {
	if r.transform == nil {
		return BoundingBox{}, pfdferrors.MissingMetadata("transform", "raster has no affine transform")
	}
	x0, y0 := r.transform.XY(0, 0)
	x1, y1 := r.transform.XY(float64(r.height), float64(r.width))
	left, right := math.Min(x0, x1), math.Max(x0, x1)
	bottom, top := math.Min(y0, y1), math.Max(y0, y1)
	return BoundingBox{Left: left, Bottom: bottom, Right: right, Top: top}, nil
}

// index returns the flat offset of (row, col), or -1 if out of
// bounds.
func (r *Raster) index(row, col int) int {
	if row < 0 || row >= r.height || col < 0 || col >= r.width {
		return -1
	}
	return row*r.width + col
}

// At returns the raw cell value at (row, col). Out-of-bounds reads
// return the NoData sentinel if one is set, else NaN — matching the
// teacher's boundary screening in d8FlowAccumulation.go, where
// off-grid neighbours are treated as "no flow".
func (r *Raster) At(row, col int) float64 {
	i := r.index(row, col)
	if i < 0 {
		if r.nodata != nil {
			return *r.nodata
		}
		return math.NaN()
	}
	return r.data[i]
}

// Value converts the cell at (row, col) to NaN-for-NoData, per §3:
// "the engine converts NoData to NaN internally for statistic
// computation".
func (r *Raster) Value(row, col int) float64 {
	v := r.At(row, col)
	if r.nodata != nil && (v == *r.nodata || (math.IsNaN(*r.nodata) && math.IsNaN(v))) {
		return math.NaN()
	}
	return v
}

// Set writes a raw cell value at (row, col). Used only during
// construction of derived rasters within this module; rasters
// supplied by a caller are never mutated (§3 lifecycle).
func (r *Raster) Set(row, col int, value float64) {
	i := r.index(row, col)
	if i >= 0 {
		r.data[i] = value
	}
}

// Data returns a defensive copy of the row-major backing buffer.
func (r *Raster) Data() []float64 {
	out := make([]float64, len(r.data))
	copy(out, r.data)
	return out
}

// NoDataMask returns an H×W boolean grid, true where the cell equals
// the NoData sentinel (or is NaN, for a NaN sentinel).
func (r *Raster) NoDataMask() [][]bool {
	mask := make([][]bool, r.height)
	for row := 0; row < r.height; row++ {
		mask[row] = make([]bool, r.width)
		for col := 0; col < r.width; col++ {
			v := r.At(row, col)
			if r.nodata != nil && (v == *r.nodata || (math.IsNaN(*r.nodata) && math.IsNaN(v))) {
				mask[row][col] = true
			}
		}
	}
	return mask
}

// DataMask is the logical complement of NoDataMask.
func (r *Raster) DataMask() [][]bool {
	nodata := r.NoDataMask()
	mask := make([][]bool, r.height)
	for row := range mask {
		mask[row] = make([]bool, r.width)
		for col := range mask[row] {
			mask[row][col] = !nodata[row][col]
		}
	}
	return mask
}

// Override replaces CRS, Transform, and/or NoData metadata in place,
// without reprojecting pixel values, per §4.1's override operation.
func (r *Raster) Override(opts Options) error {
	if opts.Transform != nil && opts.Bounds != nil {
		return pfdferrors.Range("transform/bounds", "exactly one of transform or bounds may be set", "both", "one")
	}
	if opts.NoData != nil && !canCast(*opts.NoData, r.dtype, opts.Casting) {
		return pfdferrors.Casting("nodata", "NoData value cannot be cast to the raster's dtype under the requested casting policy", *opts.NoData, r.dtype)
	}
	if opts.NoData != nil {
		nd := *opts.NoData
		r.nodata = &nd
	}
	if opts.CRS != nil {
		c := *opts.CRS
		r.crs = &c
	}
	switch {
	case opts.Transform != nil:
		t := *opts.Transform
		r.transform = &t
	case opts.Bounds != nil:
		t := transformFromBounds(*opts.Bounds, r.height, r.width)
		r.transform = &t
	}
	return nil
}

// RequireMatch validates that other's shape, and (when both specify
// one) CRS and transform, agree with r's. param names the offending
// argument in the returned error. Every operation that reads two
// rasters cell-by-cell against each other (weights/mask against a
// flow grid, a values raster against a segment graph's raster) calls
// this first, per §7: "two rasters whose CRS, transform, or shape
// must agree do not."
func (r *Raster) RequireMatch(other *Raster, param string) error {
	if other == nil {
		return nil
	}
	if r.height != other.height || r.width != other.width {
		return pfdferrors.RasterMismatch(param, "raster shape does not match", [2]int{other.height, other.width}, [2]int{r.height, r.width})
	}
	if r.crs != nil && other.crs != nil && !r.crs.Equal(*other.crs) {
		return pfdferrors.RasterMismatch(param, "raster CRS does not match", *other.crs, *r.crs)
	}
	if r.transform != nil && other.transform != nil && *r.transform != *other.transform {
		return pfdferrors.RasterMismatch(param, "raster transform does not match", *other.transform, *r.transform)
	}
	return nil
}

// Subset returns the sub-raster covering rows [rowStart, rowEnd) and
// cols [colStart, colEnd), with the transform shifted so that world
// coordinates of the subset are preserved (§4.1 "value indexing").
func (r *Raster) Subset(rowStart, rowEnd, colStart, colEnd int) (*Raster, error) {
	if rowStart < 0 || colStart < 0 || rowEnd > r.height || colEnd > r.width || rowStart >= rowEnd || colStart >= colEnd {
		return nil, pfdferrors.Range("rows/cols", "subset bounds out of range", [4]int{rowStart, rowEnd, colStart, colEnd}, [2]int{r.height, r.width})
	}
	h, w := rowEnd-rowStart, colEnd-colStart
	data := make([]float64, h*w)
	for row := 0; row < h; row++ {
		copy(data[row*w:(row+1)*w], r.data[(row+rowStart)*r.width+colStart:(row+rowStart)*r.width+colStart+w])
	}
	out := &Raster{height: h, width: w, dtype: r.dtype, data: data}
	if r.nodata != nil {
		nd := *r.nodata
		out.nodata = &nd
	}
	if r.crs != nil {
		c := *r.crs
		out.crs = &c
	}
	if r.transform != nil {
		x, y := r.transform.XY(float64(rowStart), float64(colStart))
		t := *r.transform
		t.Left, t.Top = x, y
		out.transform = &t
	}
	return out, nil
}
