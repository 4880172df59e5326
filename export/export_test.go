// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package export

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// buildChannel builds a 1x5 east-flowing channel, matching
// stats.buildChannel: a single segment draining east across the row.
func buildChannel(t *testing.T) *segments.Segments {
	t.Helper()
	h, w := 1, 5
	flow := make([]float64, w)
	mask := make([]float64, w)
	for col := 0; col < w; col++ {
		mask[col] = 1
		if col < w-1 {
			flow[col] = float64(d8.East)
		}
	}
	nodata := -1.0
	bounds := &raster.BoundingBox{Left: 0, Bottom: -1, Right: float64(w), Top: 0}
	crs := &raster.CRS{EPSG: 26911}
	flowR, err := raster.Construct(flow, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	maskR, err := raster.Construct(mask, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	s, err := segments.New(flowR, maskR, 1000, d8.UnitsMeters)
	require.NoError(t, err)
	return s
}

func TestExportSegmentsProducesOneLineStringPerSegment(t *testing.T) {
	s := buildChannel(t)
	fc, err := Export(s, FeatureSegments, Options{})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, ls, 5, "5 pixel centers, upstream to downstream")
	assert.Equal(t, 0.5, ls[0][0], "first pixel center's x coordinate")
}

func TestExportOutletsIsOnePointAtTerminus(t *testing.T) {
	s := buildChannel(t)
	fc, err := Export(s, FeatureOutlets, Options{})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	_, ok := fc.Features[0].Geometry.(orb.Point)
	assert.True(t, ok)
}

func TestExportSegmentOutletsMatchesSegmentCount(t *testing.T) {
	s := buildChannel(t)
	fc, err := Export(s, FeatureSegmentOutlets, Options{})
	require.NoError(t, err)
	assert.Len(t, fc.Features, s.Size())
}

func TestExportBasinsProducesOnePolygonPerTerminal(t *testing.T) {
	s := buildChannel(t)
	fc, err := Export(s, FeatureBasins, Options{})
	require.NoError(t, err)
	require.Len(t, fc.Features, len(s.TerminalIds()))

	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.NotEmpty(t, poly)
	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1], "a linear ring closes on itself")
}

func TestExportPropertiesAtSegmentLength(t *testing.T) {
	s := buildChannel(t)
	opts := Options{Properties: map[string]any{"length_m": []float64{42.0}}}
	fc, err := Export(s, FeatureSegments, opts)
	require.NoError(t, err)
	assert.Equal(t, 42.0, fc.Features[0].Properties["length_m"])
}

func TestExportPropertiesLengthMismatchErrors(t *testing.T) {
	s := buildChannel(t)
	opts := Options{Properties: map[string]any{"bad": []float64{1, 2, 3}}}
	_, err := Export(s, FeatureSegments, opts)
	assert.Error(t, err)
}

func TestExportProjectorReprojectsCoordinates(t *testing.T) {
	s := buildChannel(t)
	opts := Options{Projector: func(x, y float64) (float64, float64) {
		return x + 100, y + 200
	}}
	fc, err := Export(s, FeatureOutlets, opts)
	require.NoError(t, err)
	pt := fc.Features[0].Geometry.(orb.Point)
	// The terminal outlet is pixel (0, 4), centered at (4.5, -0.5).
	assert.InDelta(t, 104.5, pt[0], 1e-9)
	assert.InDelta(t, 199.5, pt[1], 1e-9)
}
