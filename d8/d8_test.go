// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package d8

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerlew/usgs-pfdf/raster"
)

func buildRaster(t *testing.T, data []float64, h, w int, nodata float64) *raster.Raster {
	t.Helper()
	r, err := raster.Construct(data, h, w, raster.Float64, raster.Options{
		NoData: &nodata,
		Bounds: &raster.BoundingBox{Left: 0, Bottom: -float64(h), Right: float64(w), Top: 0},
		CRS:    &raster.CRS{EPSG: 26911},
	})
	require.NoError(t, err)
	return r
}

func TestNetworkSingleChannel(t *testing.T) {
	flow := make([]float64, 25)
	for i := range flow {
		flow[i] = float64(East)
	}
	flowR := buildRaster(t, flow, 5, 5, -1)

	mask := make([]float64, 25)
	for col := 0; col < 5; col++ {
		mask[2*5+col] = 1
	}
	maskR := buildRaster(t, mask, 5, 5, -1)

	lines, err := Network(flowR, maskR, 1000, UnitsMeters)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	want := []Pixel{{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4}}
	assert.Equal(t, want, lines[0].Pixels)
	// off-grid receiver still yields a phantom point (pure extrapolation).
	assert.Len(t, lines[0].Points, 6)
}

func TestNetworkYConfluence(t *testing.T) {
	h, w := 3, 4
	flow := make([]float64, h*w)
	set := func(row, col int, d Direction) { flow[row*w+col] = float64(d) }
	set(0, 0, East)
	set(0, 1, East)
	set(0, 2, South)
	set(2, 0, East)
	set(2, 1, East)
	set(2, 2, North)
	set(1, 2, East)
	// row1 col3 and all unmasked cells keep flow=0 (boundary); harmless.
	flowR := buildRaster(t, flow, h, w, -1)

	mask := make([]float64, h*w)
	maskSet := func(row, col int) { mask[row*w+col] = 1 }
	maskSet(0, 0)
	maskSet(0, 1)
	maskSet(0, 2)
	maskSet(2, 0)
	maskSet(2, 1)
	maskSet(2, 2)
	maskSet(1, 2)
	maskSet(1, 3)
	maskR := buildRaster(t, mask, h, w, -1)

	lines, err := Network(flowR, maskR, 1000, UnitsMeters)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	total := 0
	for _, l := range lines {
		total += len(l.Pixels)
	}
	assert.Equal(t, 8, total, "every mask-true pixel belongs to exactly one segment")

	var confluenceArm *Polyline
	var parents []Polyline
	for i := range lines {
		l := &lines[i]
		if l.Pixels[0] == (Pixel{1, 2}) {
			confluenceArm = l
		} else {
			parents = append(parents, *l)
		}
	}
	require.NotNil(t, confluenceArm)
	assert.Equal(t, []Pixel{{1, 2}, {1, 3}}, confluenceArm.Pixels)
	assert.Len(t, confluenceArm.Points, len(confluenceArm.Pixels), "terminal segment: no trailing phantom")

	require.Len(t, parents, 2)
	for _, p := range parents {
		require.NotEmpty(t, p.Pixels)
		// Each parent arm's last Point is a phantom that coincides with
		// the confluence segment's first Point.
		last := p.Points[len(p.Points)-1]
		first := confluenceArm.Points[0]
		assert.InDelta(t, first.X, last.X, 1e-9)
		assert.InDelta(t, first.Y, last.Y, 1e-9)
		assert.Len(t, p.Points, len(p.Pixels)+1)
	}
}

func TestNetworkMaxLengthSplit(t *testing.T) {
	w := 11
	flow := make([]float64, w)
	mask := make([]float64, w)
	for col := 0; col < 10; col++ {
		flow[col] = float64(East)
		mask[col] = 1
	}
	// col 10 stays off-mask: the channel's natural terminus.
	flowR := buildRaster(t, flow, 1, w, -1)
	maskR := buildRaster(t, mask, 1, w, -1)

	lines, err := Network(flowR, maskR, 3, UnitsMeters)
	require.NoError(t, err)

	total := 0
	for _, l := range lines {
		total += len(l.Pixels)
		assert.LessOrEqual(t, arcLength(centers(l.Pixels, raster.Transform{DX: 1, DY: -1})), 3.0+1e-9)
	}
	assert.Equal(t, 10, total)

	// §8 scenario 3's worked example: a 10-pixel channel split at
	// max_length=3*dx yields 4 pieces of 3+3+3+1 pixels, not a
	// length-blind midpoint bisection's 3+2+3+2.
	sizes := make([]int, len(lines))
	for i, l := range lines {
		sizes[i] = len(l.Pixels)
	}
	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
}

func TestAccumulationSingleChannel(t *testing.T) {
	flow := make([]float64, 25)
	for i := range flow {
		flow[i] = float64(East)
	}
	flowR := buildRaster(t, flow, 5, 5, -1)

	acc, err := Accumulation(flowR, AccumulationOptions{})
	require.NoError(t, err)
	// Every cell in row 2 accumulates the full upstream run of that row.
	assert.Equal(t, 1.0, acc.Value(2, 0))
	assert.Equal(t, 5.0, acc.Value(2, 4))
}

func TestAccumulationNaNPropagation(t *testing.T) {
	flow := []float64{float64(East), float64(East), float64(East)}
	flowR := buildRaster(t, flow, 1, 3, -1)

	weights := []float64{1, math.NaN(), 1}
	weightsR := buildRaster(t, weights, 1, 3, -999)

	acc, err := Accumulation(flowR, AccumulationOptions{Weights: weightsR})
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc.Value(0, 0))
	assert.True(t, math.IsNaN(acc.Value(0, 1)))
	assert.True(t, math.IsNaN(acc.Value(0, 2)), "NaN propagates downstream through the accumulation sweep")
}

func TestAccumulationRejectsMismatchedWeights(t *testing.T) {
	flow := []float64{float64(East), float64(East), float64(East)}
	flowR := buildRaster(t, flow, 1, 3, -1)

	weights := []float64{1, 1}
	weightsR := buildRaster(t, weights, 1, 2, -999)

	_, err := Accumulation(flowR, AccumulationOptions{Weights: weightsR})
	assert.Error(t, err)
}

func TestNetworkRejectsMismatchedMask(t *testing.T) {
	flow := make([]float64, 25)
	for i := range flow {
		flow[i] = float64(East)
	}
	flowR := buildRaster(t, flow, 5, 5, -1)

	mask := make([]float64, 30)
	maskR := buildRaster(t, mask, 5, 6, -1)

	_, err := Network(flowR, maskR, 1000, UnitsMeters)
	assert.Error(t, err)
}

func TestCatchmentMatchesAccumulation(t *testing.T) {
	flow := []float64{float64(East), float64(East), float64(East)}
	flowR := buildRaster(t, flow, 1, 3, -1)

	count, err := CatchmentCount(flowR, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	acc, err := Accumulation(flowR, AccumulationOptions{})
	require.NoError(t, err)
	assert.Equal(t, float64(count), acc.Value(0, 2), "catchment size equals accumulation at the same outlet")
}
