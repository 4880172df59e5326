// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package stats

import (
	"math"

	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// onesLike returns a raster of 1.0, shaped and georeferenced like r,
// used to turn a pixel count into a catchment_summary(Sum, ...) call.
func onesLike(r *raster.Raster) (*raster.Raster, error) {
	h, w := r.Height(), r.Width()
	data := make([]float64, h*w)
	for i := range data {
		data[i] = 1
	}
	opts := raster.Options{}
	if t, ok := r.Transform(); ok {
		opts.Transform = &t
	}
	if c, ok := r.CRS(); ok {
		opts.CRS = &c
	}
	return raster.Construct(data, h, w, raster.Float64, opts)
}

// metersPerDegree approximates the ground distance spanned by one
// degree of latitude (and, at the equator, one degree of longitude)
// on a spherical earth — the same approximation pfdf's Python basin
// module uses to rescale a geographic raster's degree-sized cells
// into square meters.
const metersPerDegree = 111320.0

// pixelArea returns the area of one pixel in square meters. For a
// projected CRS, cells are already uniform squares, so this is just
// the transform's cell size. For a geographic CRS (degrees of
// longitude/latitude), a degree of longitude spans less ground
// distance the further a cell sits from the equator, so area must be
// computed at the basin's own latitude (§4.5): lat is the world Y
// coordinate of the pixel the area is being evaluated at.
func pixelArea(s *segments.Segments, lat float64) float64 {
	t := s.Transform()
	dx, dy := math.Abs(t.DX), math.Abs(t.DY)
	if !s.CRS().IsGeographic() {
		return dx * dy
	}
	dyMeters := dy * metersPerDegree
	dxMeters := dx * metersPerDegree * math.Cos(lat*math.Pi/180)
	return dxMeters * dyMeters
}

// Area returns each catchment's area in square meters, optionally
// restricted to mask. A geographic raster's cells are scaled by the
// latitude of that catchment's own outlet pixel (§4.5), so each
// catchment can carry a different per-pixel area.
func Area(s *segments.Segments, mask *raster.Raster, terminal bool) ([]float64, error) {
	ones, err := onesLike(s.Flow())
	if err != nil {
		return nil, err
	}
	counts, err := CatchmentSummary(Sum, ones, s, mask, terminal)
	if err != nil {
		return nil, err
	}

	ids := s.Ids()
	if terminal {
		ids = s.TerminalIds()
	}
	transform := s.Transform()
	for i, id := range ids {
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		outlet := pixels[len(pixels)-1]
		_, lat := transform.XY(float64(outlet.Row)+0.5, float64(outlet.Col)+0.5)
		counts[i] *= pixelArea(s, lat)
	}
	return counts, nil
}

// InMask returns, for each catchment, the fraction of its pixels for
// which test is true (NoData/false counts as 0), optionally further
// restricted to mask.
func InMask(s *segments.Segments, test, mask *raster.Raster, terminal bool) ([]float64, error) {
	if err := s.Flow().RequireMatch(test, "test"); err != nil {
		return nil, err
	}
	h, w := test.Height(), test.Width()
	data := make([]float64, h*w)
	for i := range data {
		if v := test.Value(i/w, i%w); !math.IsNaN(v) && v != 0 {
			data[i] = 1
		}
	}
	// No NoData sentinel, as in nanIndicator: 0 is a real "false".
	indicator, err := raster.Construct(data, h, w, raster.Float64, raster.Options{})
	if err != nil {
		return nil, err
	}
	return CatchmentSummary(Mean, indicator, s, mask, terminal)
}

// InPerimeter is InMask specialized to a fire-perimeter raster, with
// no additional masking.
func InPerimeter(s *segments.Segments, perimeter *raster.Raster, terminal bool) ([]float64, error) {
	return InMask(s, perimeter, nil, terminal)
}

// BurnRatio returns each catchment's fraction of burned pixels, given
// a raster that is nonzero wherever the catchment burned.
func BurnRatio(s *segments.Segments, burned, mask *raster.Raster, terminal bool) ([]float64, error) {
	return InMask(s, burned, mask, terminal)
}

// CatchmentRatio returns, for each catchment, the fraction of its
// pixels for which test is true — an alias of InMask kept distinct so
// callers reaching for a generically-named reducer and callers
// reaching for the mask-membership-specific one both find an obvious
// name.
func CatchmentRatio(s *segments.Segments, test, mask *raster.Raster, terminal bool) ([]float64, error) {
	return InMask(s, test, mask, terminal)
}

func scaledArea(s *segments.Segments, ratios []float64, mask *raster.Raster, terminal bool) ([]float64, error) {
	areas, err := Area(s, mask, terminal)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ratios))
	for i := range ratios {
		out[i] = ratios[i] * areas[i]
	}
	return out, nil
}

// BurnedArea returns each catchment's burned area, given a raster
// that is nonzero wherever the catchment burned.
func BurnedArea(s *segments.Segments, burned, mask *raster.Raster, terminal bool) ([]float64, error) {
	ratios, err := InMask(s, burned, mask, terminal)
	if err != nil {
		return nil, err
	}
	return scaledArea(s, ratios, mask, terminal)
}

// DevelopedArea returns each catchment's developed-land area, given a
// raster that is nonzero wherever the catchment is developed.
func DevelopedArea(s *segments.Segments, developed, mask *raster.Raster, terminal bool) ([]float64, error) {
	ratios, err := InMask(s, developed, mask, terminal)
	if err != nil {
		return nil, err
	}
	return scaledArea(s, ratios, mask, terminal)
}

// KfFactor returns each catchment's mean soil-erodibility KF-factor.
func KfFactor(s *segments.Segments, kf, mask *raster.Raster, terminal bool) ([]float64, error) {
	return CatchmentSummary(NanMean, kf, s, mask, terminal)
}

// ScaledDnbr returns each catchment's mean dNBR, scaled by the
// standard 1/1000 factor used to normalize dNBR into burn-severity
// weighting.
func ScaledDnbr(s *segments.Segments, dnbr, mask *raster.Raster, terminal bool) ([]float64, error) {
	vals, err := CatchmentSummary(NanMean, dnbr, s, mask, terminal)
	if err != nil {
		return nil, err
	}
	for i := range vals {
		vals[i] /= 1000
	}
	return vals, nil
}

// ScaledThickness returns each catchment's mean soil thickness,
// converted from centimeters to meters.
func ScaledThickness(s *segments.Segments, thicknessCM, mask *raster.Raster, terminal bool) ([]float64, error) {
	vals, err := CatchmentSummary(NanMean, thicknessCM, s, mask, terminal)
	if err != nil {
		return nil, err
	}
	for i := range vals {
		vals[i] /= 100
	}
	return vals, nil
}

// SineTheta returns each catchment's mean sine of slope angle, given
// a raster of slope in degrees. The sine is taken per pixel before
// averaging, since mean(sin(x)) != sin(mean(x)).
func SineTheta(s *segments.Segments, slopeDegrees, mask *raster.Raster, terminal bool) ([]float64, error) {
	sines, err := mapRaster(slopeDegrees, func(v float64) float64 {
		return math.Sin(v * math.Pi / 180)
	})
	if err != nil {
		return nil, err
	}
	return CatchmentSummary(NanMean, sines, s, mask, terminal)
}

// Slope returns each segment's mean along-channel slope: elevation
// drop from the segment's first to last pixel, divided by its arc
// length.
func Slope(s *segments.Segments, dem *raster.Raster) ([]float64, error) {
	ids := s.Ids()
	out := make([]float64, len(ids))
	for i, id := range ids {
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		first, last := pixels[0], pixels[len(pixels)-1]
		rise := dem.Value(first.Row, first.Col) - dem.Value(last.Row, last.Col)
		length, err := segmentLength(s, id)
		if err != nil {
			return nil, err
		}
		if length == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = rise / length
	}
	return out, nil
}

// Relief returns each segment's elevation drop from its first to last
// pixel.
func Relief(s *segments.Segments, dem *raster.Raster) ([]float64, error) {
	ids := s.Ids()
	out := make([]float64, len(ids))
	for i, id := range ids {
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		first, last := pixels[0], pixels[len(pixels)-1]
		out[i] = dem.Value(first.Row, first.Col) - dem.Value(last.Row, last.Col)
	}
	return out, nil
}

// Ruggedness returns relief / sqrt(catchment area in m^2) per §4.5.
func Ruggedness(s *segments.Segments, dem *raster.Raster) ([]float64, error) {
	relief, err := Relief(s, dem)
	if err != nil {
		return nil, err
	}
	areas, err := Area(s, nil, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(relief))
	for i := range relief {
		if areas[i] <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = relief[i] / math.Sqrt(areas[i])
	}
	return out, nil
}

func segmentLength(s *segments.Segments, id int) (float64, error) {
	line, err := s.Segment(id)
	if err != nil {
		return 0, err
	}
	points := line.Points
	if len(points) > len(line.Pixels) {
		points = points[:len(line.Pixels)] // exclude the trailing phantom link point
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total, nil
}

// Length returns each segment's arc length in meters.
func Length(s *segments.Segments) ([]float64, error) {
	ids := s.Ids()
	out := make([]float64, len(ids))
	for i, id := range ids {
		l, err := segmentLength(s, id)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}
