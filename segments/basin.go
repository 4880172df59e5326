// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package segments

import (
	"sort"

	"github.com/rogerlew/usgs-pfdf/d8"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// terminalBasinRaster builds (and caches) the H×W raster labelling
// every pixel with the ID of the furthest-downstream terminal segment
// whose catchment contains it, per §4.4.
//
// §4.4 describes painting terminals in descending ID order and
// letting a pixel's existing label be overwritten whenever it belongs
// to a terminal nested upstream of the terminal currently being
// painted. This engine's terminal IDs are assigned by d8.Network's
// traversal order, which carries no guaranteed relationship to
// drainage nesting, so this engine instead paints terminals in
// ascending catchment-size order: since D8 catchments nest strictly
// (a smaller catchment containing a shared pixel is always wholly
// contained by any larger catchment that shares it), painting
// smallest-first and letting later, larger catchments overwrite
// earlier labels produces the identical result — every pixel ends up
// labelled with the most inclusive (furthest downstream) terminal
// whose basin contains it — without needing a pairwise "is this
// terminal's outlet upstream of that one" containment test. This
// substitution is recorded in DESIGN.md.
func (s *Segments) terminalBasinRaster() (*raster.Raster, error) {
	if s.basinCache != nil {
		return s.basinCache, nil
	}

	terminals := s.TerminalIds()
	sort.Slice(terminals, func(i, j int) bool {
		return s.byID[terminals[i]].npixels < s.byID[terminals[j]].npixels
	})

	out := make([]float64, s.height*s.width)
	for _, id := range terminals {
		seg := s.byID[id]
		outlet := seg.pixels[len(seg.pixels)-1]
		mask, err := d8.Catchment(s.flow, outlet.Row, outlet.Col)
		if err != nil {
			return nil, err
		}
		for row := 0; row < s.height; row++ {
			for col := 0; col < s.width; col++ {
				if mask.Value(row, col) != 0 {
					out[row*s.width+col] = float64(id)
				}
			}
		}
	}

	// No NoData sentinel: 0 is the meaningful "outside all basins" label
	// (§3), not a missing value, so it must never collapse to NaN under
	// raster.Value.
	r, err := raster.Construct(out, s.height, s.width, raster.Int32, raster.Options{
		Transform: &s.transform,
		CRS:       &s.crs,
	})
	if err != nil {
		return nil, err
	}
	s.basinCache = r
	return r, nil
}

// TerminalBasins exposes the serial basin-raster build for package
// basins to wrap with a parallel path; it shares this Segments' cache.
func (s *Segments) TerminalBasins() (*raster.Raster, error) {
	return s.terminalBasinRaster()
}

// invalidateBasinCache drops the cached basin raster; called whenever
// Keep/Remove may have removed a terminal segment (§4.4 "Caching").
func (s *Segments) invalidateBasinCache() {
	s.basinCache = nil
}

// LocatedBasins reports whether the terminal-basin raster is currently
// cached, mirroring the original implementation's `located_basins`
// flag (§13 of SPEC_FULL.md): callers can check this before choosing
// to pay for a (re)build via IsNested, TerminalBasins, or export of
// basin features.
func (s *Segments) LocatedBasins() bool {
	return s.basinCache != nil
}

// CatchmentMask returns the boolean upstream-catchment mask for
// segment id's own outlet pixel (its last pixel), used by stats'
// catchment_summary.
func (s *Segments) CatchmentMask(id int) (*raster.Raster, error) {
	seg, err := s.get(id)
	if err != nil {
		return nil, err
	}
	outlet := seg.pixels[len(seg.pixels)-1]
	return d8.Catchment(s.flow, outlet.Row, outlet.Col)
}
