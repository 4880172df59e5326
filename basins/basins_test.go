// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package basins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// buildTwoBasins builds two independent east-flowing channels (no
// shared pixels, no nesting) on a 3x6 grid so the serial and parallel
// paths can be checked against each other directly.
func buildTwoBasins(t *testing.T) *segments.Segments {
	t.Helper()
	h, w := 3, 6
	flow := make([]float64, h*w)
	mask := make([]float64, h*w)
	for col := 0; col < 4; col++ {
		flow[0*w+col] = float64(d8.East)
		mask[0*w+col] = 1
		flow[2*w+col] = float64(d8.East)
		mask[2*w+col] = 1
	}
	nodata := -1.0
	bounds := &raster.BoundingBox{Left: 0, Bottom: -float64(h), Right: float64(w), Top: 0}
	crs := &raster.CRS{EPSG: 26911}
	flowR, err := raster.Construct(flow, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	maskR, err := raster.Construct(mask, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)

	s, err := segments.New(flowR, maskR, 1000, d8.UnitsMeters)
	require.NoError(t, err)
	return s
}

func TestBuildLabelsEachChannel(t *testing.T) {
	s := buildTwoBasins(t)
	basin, err := Build(s)
	require.NoError(t, err)

	terminals := s.TerminalIds()
	require.Len(t, terminals, 2)

	assert.NotEqual(t, 0.0, basin.Value(0, 0))
	assert.NotEqual(t, 0.0, basin.Value(2, 0))
	assert.NotEqual(t, basin.Value(0, 0), basin.Value(2, 0))
	assert.Equal(t, 0.0, basin.Value(1, 0), "row 1 is outside both channels")
}

func TestBuildParallelMatchesSerial(t *testing.T) {
	s := buildTwoBasins(t)
	serial, err := Build(s)
	require.NoError(t, err)

	s2 := s.Copy()
	parallel, err := BuildParallel(s2, ParallelOptions{Workers: 2})
	require.NoError(t, err)

	h, w := s.RasterShape()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			assert.Equal(t, serial.Value(row, col), parallel.Value(row, col), "row %d col %d", row, col)
		}
	}
}
