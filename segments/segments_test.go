// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package segments

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/raster"
)

func buildYConfluence(t *testing.T) (*raster.Raster, *raster.Raster) {
	t.Helper()
	h, w := 3, 4
	flow := make([]float64, h*w)
	set := func(row, col int, dir d8.Direction) { flow[row*w+col] = float64(dir) }
	set(0, 0, d8.East)
	set(0, 1, d8.East)
	set(0, 2, d8.South)
	set(2, 0, d8.East)
	set(2, 1, d8.East)
	set(2, 2, d8.North)
	set(1, 2, d8.East)

	mask := make([]float64, h*w)
	for _, rc := range [][2]int{{0, 0}, {0, 1}, {0, 2}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {1, 3}} {
		mask[rc[0]*w+rc[1]] = 1
	}

	nodata := -1.0
	bounds := &raster.BoundingBox{Left: 0, Bottom: -float64(h), Right: float64(w), Top: 0}
	crs := &raster.CRS{EPSG: 26911}
	flowR, err := raster.Construct(flow, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	maskR, err := raster.Construct(mask, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	return flowR, maskR
}

func TestNewBuildsParentChildLinks(t *testing.T) {
	flow, mask := buildYConfluence(t)
	s, err := New(flow, mask, 1000, d8.UnitsMeters)
	require.NoError(t, err)

	require.Equal(t, 3, s.Size())
	terminals := s.TerminalIds()
	require.Len(t, terminals, 1)
	terminalID := terminals[0]

	parents, err := s.Parents(terminalID)
	require.NoError(t, err)
	assert.Len(t, parents, 2, "the confluence segment has two parents")

	for _, p := range parents {
		child, ok, err := s.Child(p)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, terminalID, child)
	}

	_, hasChild, err := s.Child(terminalID)
	require.NoError(t, err)
	assert.False(t, hasChild, "the terminal segment has no child")

	family, err := s.Family(parents[0])
	require.NoError(t, err)
	assert.Contains(t, family, terminalID)
}

func TestNpixelsStrictlyIncreasesDownstream(t *testing.T) {
	flow, mask := buildYConfluence(t)
	s, err := New(flow, mask, 1000, d8.UnitsMeters)
	require.NoError(t, err)

	terminalID := s.TerminalIds()[0]
	parents, err := s.Parents(terminalID)
	require.NoError(t, err)

	nTerminal, err := s.Npixels(terminalID)
	require.NoError(t, err)
	for _, p := range parents {
		nParent, err := s.Npixels(p)
		require.NoError(t, err)
		assert.Less(t, nParent, nTerminal)
	}
}

func TestContinuousPreservesConnectivity(t *testing.T) {
	flow, mask := buildYConfluence(t)
	s, err := New(flow, mask, 1000, d8.UnitsMeters)
	require.NoError(t, err)

	terminalID := s.TerminalIds()[0]
	parents, err := s.Parents(terminalID)
	require.NoError(t, err)

	// Request removal of a parent arm (an upstream edge) and the
	// terminal (a downstream edge): both sit on an edge and should be
	// removable in one pass.
	removable, err := s.Continuous([]int{parents[0], terminalID}, ByIDs, true, false, false)
	require.NoError(t, err)

	ids := s.Ids()
	for i, id := range ids {
		if id == parents[0] || id == terminalID {
			assert.True(t, removable[i], "segment %d should be removable", id)
		} else {
			assert.False(t, removable[i], "segment %d should not be removable", id)
		}
	}
}

func TestRemoveRebuildsLinks(t *testing.T) {
	flow, mask := buildYConfluence(t)
	s, err := New(flow, mask, 1000, d8.UnitsMeters)
	require.NoError(t, err)

	terminalID := s.TerminalIds()[0]
	parents, err := s.Parents(terminalID)
	require.NoError(t, err)
	survivor := parents[0]

	require.NoError(t, s.Remove([]int{terminalID}, ByIDs))
	assert.Equal(t, 2, s.Size())

	_, hasChild, err := s.Child(survivor)
	require.NoError(t, err)
	assert.False(t, hasChild, "the survivor's child was removed, so it is now a terminus")
}

func TestCopyIsIndependent(t *testing.T) {
	flow, mask := buildYConfluence(t)
	s, err := New(flow, mask, 1000, d8.UnitsMeters)
	require.NoError(t, err)

	dup := s.Copy()
	terminalID := s.TerminalIds()[0]
	require.NoError(t, dup.Remove([]int{terminalID}, ByIDs))

	assert.Equal(t, 3, s.Size(), "the original graph is unaffected by mutating the copy")
	assert.Equal(t, 2, dup.Size())

	parents, err := s.Parents(terminalID)
	require.NoError(t, err)
	survivorID := parents[0]
	survived, err := s.Segment(survivorID)
	require.NoError(t, err)
	stillThere, err := dup.Segment(survivorID)
	require.NoError(t, err)
	if diff := cmp.Diff(survived, stillThere); diff != "" {
		t.Errorf("a segment untouched by Remove must read back identically from the copy (-original +copy):\n%s", diff)
	}
}

// buildNestedBasins builds a 3x2 grid with two disconnected local
// drainage networks whose terminals are A=(0,0) and B=(2,1). The flow
// raster (unlike the mask) routes (0,0) -> (0,1) -> (1,1) -> (2,1), so
// A's outlet pixel lies inside B's D8 catchment even though A and B
// are separate segments in the masked network, per spec.md §8 scenario 6.
func buildNestedBasins(t *testing.T) *Segments {
	t.Helper()
	h, w := 3, 2
	flow := make([]float64, h*w)
	set := func(row, col int, d d8.Direction) { flow[row*w+col] = float64(d) }
	set(0, 0, d8.East)
	set(0, 1, d8.South)
	set(1, 1, d8.South)

	mask := make([]float64, h*w)
	maskSet := func(row, col int) { mask[row*w+col] = 1 }
	maskSet(0, 0)
	maskSet(1, 1)
	maskSet(2, 1)

	nodata := -1.0
	bounds := &raster.BoundingBox{Left: 0, Bottom: -float64(h), Right: float64(w), Top: 0}
	crs := &raster.CRS{EPSG: 26911}
	flowR, err := raster.Construct(flow, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)
	maskR, err := raster.Construct(mask, h, w, raster.Float64, raster.Options{NoData: &nodata, Bounds: bounds, CRS: crs})
	require.NoError(t, err)

	s, err := New(flowR, maskR, 1000, d8.UnitsMeters)
	require.NoError(t, err)
	return s
}

func TestIsNestedDetectsOverlappingCatchment(t *testing.T) {
	s := buildNestedBasins(t)
	terminals := s.TerminalIds()
	require.Len(t, terminals, 2, "A and B are separate local drainage networks")

	var aID, bID int
	for _, id := range terminals {
		n, err := s.Npixels(id)
		require.NoError(t, err)
		if n == 1 {
			aID = id
		} else {
			bID = id
		}
	}
	require.NotZero(t, aID)
	require.NotZero(t, bID)

	nested, err := s.IsNested([]int{aID, bID})
	require.NoError(t, err)
	assert.True(t, nested[0], "A's outlet lies inside B's catchment")
	assert.False(t, nested[1], "B is the most-downstream terminal at its own outlet")
}
