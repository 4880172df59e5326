// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package stats implements the summary statistics of §4.5: per-segment
// summaries over a segment's own pixels, and per-segment or
// per-terminal summaries over a segment's upstream catchment. The
// additive statistics reuse package d8's accumulation kernel exactly
// as pfdf's Summary class does for its fast paths; every other
// statistic walks each catchment mask directly, the way the teacher's
// tools package walks a raster pixel by pixel.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	gonumstat "gonum.org/v1/gonum/stat"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// Statistic enumerates the fixed set of reducers this package exposes
// (§4.5: "the engine exposes this enumerated set; no others").
type Statistic int

const (
	Outlet Statistic = iota
	Min
	Max
	Mean
	Median
	Std
	Sum
	Var
	NanMin
	NanMax
	NanMean
	NanMedian
	NanStd
	NanSum
	NanVar
)

var descriptions = map[Statistic]string{
	Outlet:    "value at the segment's outlet pixel",
	Min:       "minimum",
	Max:       "maximum",
	Mean:      "arithmetic mean",
	Median:    "median (50th percentile)",
	Std:       "standard deviation",
	Sum:       "sum",
	Var:       "variance",
	NanMin:    "minimum, ignoring NaN",
	NanMax:    "maximum, ignoring NaN",
	NanMean:   "arithmetic mean, ignoring NaN",
	NanMedian: "median, ignoring NaN",
	NanStd:    "standard deviation, ignoring NaN",
	NanSum:    "sum, ignoring NaN",
	NanVar:    "variance, ignoring NaN",
}

// Statistics returns every supported statistic, in the order declared
// above.
func Statistics() []Statistic {
	return []Statistic{Outlet, Min, Max, Mean, Median, Std, Sum, Var, NanMin, NanMax, NanMean, NanMedian, NanStd, NanSum, NanVar}
}

// Descriptions returns a human-readable description for each
// statistic in Statistics(), in the same order.
func Descriptions() []string {
	all := Statistics()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = descriptions[s]
	}
	return out
}

func isNanVariant(s Statistic) bool {
	switch s {
	case NanMin, NanMax, NanMean, NanMedian, NanStd, NanSum, NanVar:
		return true
	}
	return false
}

func isAdditive(s Statistic) bool {
	switch s {
	case Sum, Mean, NanSum, NanMean:
		return true
	}
	return false
}

// reduce applies statistic to a slice of already NoData-converted
// values (NaN for missing). nan* variants filter NaN first; every
// variant returns NaN for an empty (or, for non-nan variants,
// NaN-containing) input.
func reduce(s Statistic, values []float64) float64 {
	if isNanVariant(s) {
		filtered := values[:0:0]
		for _, v := range values {
			if !math.IsNaN(v) {
				filtered = append(filtered, v)
			}
		}
		values = filtered
	}
	if len(values) == 0 {
		return math.NaN()
	}
	for _, v := range values {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}

	switch s {
	case Min, NanMin:
		return sliceMin(values)
	case Max, NanMax:
		return sliceMax(values)
	case Mean, NanMean:
		return gonumstat.Mean(values, nil)
	case Median, NanMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return gonumstat.Quantile(0.5, gonumstat.Empirical, sorted, nil)
	case Std, NanStd:
		return gonumstat.StdDev(values, nil)
	case Sum, NanSum:
		return floats.Sum(values)
	case Var, NanVar:
		return gonumstat.Variance(values, nil)
	default:
		return math.NaN()
	}
}

func sliceMin(values []float64) float64 { return floats.Min(values) }

func sliceMax(values []float64) float64 { return floats.Max(values) }

// Summary computes statistic over each segment's own pixel list,
// returning one value per segment in s.Ids() order.
func Summary(stat Statistic, values *raster.Raster, s *segments.Segments) ([]float64, error) {
	if err := s.Flow().RequireMatch(values, "values"); err != nil {
		return nil, err
	}
	ids := s.Ids()
	out := make([]float64, len(ids))
	for i, id := range ids {
		if stat == Outlet {
			pixels, err := s.Indices(id)
			if err != nil {
				return nil, err
			}
			outlet := pixels[len(pixels)-1]
			out[i] = values.Value(outlet.Row, outlet.Col)
			continue
		}
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		vals := make([]float64, len(pixels))
		for j, p := range pixels {
			vals[j] = values.Value(p.Row, p.Col)
		}
		out[i] = reduce(stat, vals)
	}
	return out, nil
}

// CatchmentSummary computes statistic over each segment's (or, when
// terminal is true, each terminus's) upstream catchment, optionally
// restricted to pixels where mask is true, per §4.5's algorithmic
// policy.
func CatchmentSummary(stat Statistic, values *raster.Raster, s *segments.Segments, mask *raster.Raster, terminal bool) ([]float64, error) {
	if err := s.Flow().RequireMatch(values, "values"); err != nil {
		return nil, err
	}
	if err := s.Flow().RequireMatch(mask, "mask"); err != nil {
		return nil, err
	}
	ids := s.Ids()
	if terminal {
		ids = s.TerminalIds()
	}

	if stat == Outlet {
		out := make([]float64, len(ids))
		for i, id := range ids {
			pixels, err := s.Indices(id)
			if err != nil {
				return nil, err
			}
			outlet := pixels[len(pixels)-1]
			out[i] = values.Value(outlet.Row, outlet.Col)
		}
		return out, nil
	}

	if isAdditive(stat) {
		return additiveCatchmentSummary(stat, values, s, mask, ids)
	}

	out := make([]float64, len(ids))
	for i, id := range ids {
		catchment, err := s.CatchmentMask(id)
		if err != nil {
			return nil, err
		}
		h, w := s.RasterShape()
		var vals []float64
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				if catchment.Value(row, col) == 0 {
					continue
				}
				if mask != nil {
					mv := mask.Value(row, col)
					if math.IsNaN(mv) || mv == 0 {
						continue
					}
				}
				vals = append(vals, values.Value(row, col))
			}
		}
		out[i] = reduce(stat, vals)
	}
	return out, nil
}

// additiveCatchmentSummary implements §4.5's fast path for sum/mean
// (and their nan* variants): two calls to d8.Accumulation, one
// weighted by values and one counting contributing pixels, instead of
// materializing every catchment mask.
func additiveCatchmentSummary(stat Statistic, values *raster.Raster, s *segments.Segments, mask *raster.Raster, ids []int) ([]float64, error) {
	flow := s.Flow()
	omitNaN := isNanVariant(stat)

	sumRaster, err := d8.Accumulation(flow, d8.AccumulationOptions{Weights: values, Mask: mask, OmitNaN: omitNaN})
	if err != nil {
		return nil, err
	}

	var countRaster *raster.Raster
	if stat == Mean || stat == NanMean {
		countOpts := d8.AccumulationOptions{Mask: mask}
		if omitNaN {
			// Count only pixels that also carry a non-NaN, non-NoData
			// value, so the mean's denominator matches its numerator.
			countOpts.Weights = nanIndicator(values)
			countOpts.OmitNaN = false
		}
		countRaster, err = d8.Accumulation(flow, countOpts)
		if err != nil {
			return nil, err
		}
	}

	out := make([]float64, len(ids))
	for i, id := range ids {
		pixels, err := s.Indices(id)
		if err != nil {
			return nil, err
		}
		outlet := pixels[len(pixels)-1]
		total := sumRaster.Value(outlet.Row, outlet.Col)
		if stat == Sum || stat == NanSum {
			out[i] = total
			continue
		}
		count := countRaster.Value(outlet.Row, outlet.Col)
		if count == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = total / count
	}
	return out, nil
}

// nanIndicator builds a raster of 1/0 marking which cells of values
// are neither NoData nor NaN, used to gate the count accumulation of
// a nan* mean so its denominator excludes the same cells its
// numerator does.
func nanIndicator(values *raster.Raster) *raster.Raster {
	h, w := values.Height(), values.Width()
	data := make([]float64, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !math.IsNaN(values.Value(row, col)) {
				data[row*w+col] = 1
			}
		}
	}
	// No NoData sentinel: a raw 0 here is a meaningful "excluded"
	// indicator, not a missing value, so it must never collapse to NaN.
	r, _ := raster.Construct(data, h, w, raster.Float64, raster.Options{})
	return r
}

// mapRaster returns a copy of r with f applied to every cell's
// NoData-converted value; NaN propagates (f is never called on NaN).
func mapRaster(r *raster.Raster, f func(float64) float64) (*raster.Raster, error) {
	h, w := r.Height(), r.Width()
	data := make([]float64, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := r.Value(row, col)
			if math.IsNaN(v) {
				data[row*w+col] = math.NaN()
				continue
			}
			data[row*w+col] = f(v)
		}
	}
	nodata := math.NaN()
	opts := raster.Options{NoData: &nodata}
	if t, ok := r.Transform(); ok {
		opts.Transform = &t
	}
	if c, ok := r.CRS(); ok {
		opts.CRS = &c
	}
	return raster.Construct(data, h, w, raster.Float64, opts)
}
