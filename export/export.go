// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

// Package export implements the GeoJSON-style feature exporter of
// §4.7, using github.com/paulmach/orb and its geojson subpackage as
// the geometry and feature-collection types, the way
// other_examples/095f6460_...-watercolor-stages constructs orb.Point
// values directly rather than hand-rolling a coordinate pair type.
package export

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rogerlew/usgs-pfdf/basins"
	"github.com/rogerlew/usgs-pfdf/pfdferrors"
	"github.com/rogerlew/usgs-pfdf/raster"
	"github.com/rogerlew/usgs-pfdf/segments"
)

// FeatureType selects what an Export call produces.
type FeatureType int

const (
	FeatureSegments FeatureType = iota
	FeatureSegmentOutlets
	FeatureOutlets
	FeatureBasins
)

// Projector reprojects a world (x, y) coordinate in the segment
// graph's native CRS to the coordinates Options.CRS names. This
// engine has no geodetic projection library in its dependency surface
// (see DESIGN.md's note on raster.Reproject), so true CRS-to-CRS
// conversion is the caller's responsibility; Options.Projector is the
// hook §4.7's "if crs is supplied... geometries are reprojected"
// clause is built on. A nil Projector exports geometries unprojected,
// whatever Options.CRS holds.
type Projector func(x, y float64) (x2, y2 float64)

// Options configures Export.
type Options struct {
	// Properties maps a field name to a per-feature value slice.
	// Supported element types: bool, int, int64, float64, string.
	Properties map[string]any
	// CRS names the requested output CRS. Export does not read it:
	// the returned FeatureCollection carries no CRS member, and
	// coordinates change only through Projector.
	CRS *raster.CRS
	// Projector, when non-nil, is applied to every exported coordinate,
	// whether or not CRS is set; see Projector.
	Projector Projector
}

// Export produces a GeoJSON-style feature collection for featureType
// (§4.7).
func Export(s *segments.Segments, featureType FeatureType, opts Options) (*geojson.FeatureCollection, error) {
	switch featureType {
	case FeatureSegments:
		return exportSegments(s, opts)
	case FeatureSegmentOutlets:
		return exportOutlets(s, s.Ids(), true, opts)
	case FeatureOutlets:
		return exportOutlets(s, s.TerminalIds(), false, opts)
	case FeatureBasins:
		return exportBasins(s, opts)
	default:
		return nil, pfdferrors.Range("type", "unrecognized export feature type", int(featureType), []FeatureType{FeatureSegments, FeatureSegmentOutlets, FeatureOutlets, FeatureBasins})
	}
}

func (p Projector) apply(x, y float64) (float64, float64) {
	if p == nil {
		return x, y
	}
	return p(x, y)
}

func exportSegments(s *segments.Segments, opts Options) (*geojson.FeatureCollection, error) {
	ids := s.Ids()
	fc := geojson.NewFeatureCollection()
	for i, id := range ids {
		line, err := s.Segment(id)
		if err != nil {
			return nil, err
		}
		points := line.Points
		if len(points) > len(line.Pixels) {
			points = points[:len(line.Pixels)] // exclude the parent/child linking phantom
		}
		ls := make(orb.LineString, len(points))
		for j, pt := range points {
			x, y := opts.Projector.apply(pt.X, pt.Y)
			ls[j] = orb.Point{x, y}
		}
		feature := geojson.NewFeature(ls)
		feature.ID = id
		if err := assignProperties(feature, opts.Properties, i, i, len(ids), len(ids)); err != nil {
			return nil, err
		}
		fc.Append(feature)
	}
	return fc, nil
}

func exportOutlets(s *segments.Segments, ids []int, segmentOutlets bool, opts Options) (*geojson.FeatureCollection, error) {
	pixels, err := s.Outlets(ids, segmentOutlets)
	if err != nil {
		return nil, err
	}
	segmentIdx, err := segmentIndices(s, ids)
	if err != nil {
		return nil, err
	}
	transform := s.Transform()
	fc := geojson.NewFeatureCollection()
	for i, id := range ids {
		p := pixels[i]
		x, y := transform.XY(float64(p.Row)+0.5, float64(p.Col)+0.5)
		x, y = opts.Projector.apply(x, y)
		feature := geojson.NewFeature(orb.Point{x, y})
		feature.ID = id
		if err := assignProperties(feature, opts.Properties, i, segmentIdx[i], len(ids), s.Size()); err != nil {
			return nil, err
		}
		fc.Append(feature)
	}
	return fc, nil
}

func exportBasins(s *segments.Segments, opts Options) (*geojson.FeatureCollection, error) {
	basinRaster, err := basins.Build(s)
	if err != nil {
		return nil, err
	}
	terminals := s.TerminalIds()
	segmentIdx, err := segmentIndices(s, terminals)
	if err != nil {
		return nil, err
	}
	transform := s.Transform()
	fc := geojson.NewFeatureCollection()
	for i, id := range terminals {
		rings, err := traceRegion(basinRaster, float64(id))
		if err != nil {
			return nil, err
		}
		poly := make(orb.Polygon, len(rings))
		for r, ring := range rings {
			poly[r] = make(orb.Ring, len(ring))
			for j, corner := range ring {
				x, y := transform.XY(corner.row, corner.col)
				x, y = opts.Projector.apply(x, y)
				poly[r][j] = orb.Point{x, y}
			}
		}
		feature := geojson.NewFeature(poly)
		feature.ID = id
		if err := assignProperties(feature, opts.Properties, i, segmentIdx[i], len(terminals), s.Size()); err != nil {
			return nil, err
		}
		fc.Append(feature)
	}
	return fc, nil
}

// segmentIndices returns, for each id, its position in s.Ids() — the
// index a full segment-length property slice would use for that
// feature, per §4.7's "in case (b) with segment length, the engine
// automatically selects the values at terminal indices."
func segmentIndices(s *segments.Segments, ids []int) ([]int, error) {
	position := make(map[int]int, s.Size())
	for i, id := range s.Ids() {
		position[id] = i
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		idx, ok := position[id]
		if !ok {
			return nil, pfdferrors.Range("id", "no segment with this ID exists in the graph", id, nil)
		}
		out[i] = idx
	}
	return out, nil
}

// assignProperties copies feature i's value out of each property
// slice. Per §4.7, a property slice is accepted at either the
// exported feature count (indexed by featureIdx directly) or the
// full segment count (indexed by segmentIdx, auto-selecting the
// value at this feature's position in the segment ordering).
func assignProperties(feature *geojson.Feature, properties map[string]any, featureIdx, segmentIdx, featureCount, segmentCount int) error {
	for name, values := range properties {
		v, err := propertyAt(name, values, featureIdx, segmentIdx, featureCount, segmentCount)
		if err != nil {
			return err
		}
		feature.Properties[name] = v
	}
	return nil
}

func propertyAt(name string, values any, featureIdx, segmentIdx, featureCount, segmentCount int) (any, error) {
	switch vs := values.(type) {
	case []bool:
		i, err := resolveIndex(name, len(vs), featureIdx, segmentIdx, featureCount, segmentCount)
		if err != nil {
			return nil, err
		}
		if vs[i] {
			return 1, nil
		}
		return 0, nil
	case []int:
		return indexChecked(name, vs, featureIdx, segmentIdx, featureCount, segmentCount)
	case []int64:
		return indexChecked(name, vs, featureIdx, segmentIdx, featureCount, segmentCount)
	case []float64:
		return indexChecked(name, vs, featureIdx, segmentIdx, featureCount, segmentCount)
	case []string:
		return indexChecked(name, vs, featureIdx, segmentIdx, featureCount, segmentCount)
	default:
		return nil, pfdferrors.Array(name, "unsupported property slice type", values)
	}
}

// resolveIndex picks which index to read a property slice at,
// depending on whether its length matches the exported feature count
// or the full segment count (equal lengths are ambiguous only when
// featureCount == segmentCount, in which case they agree anyway).
func resolveIndex(name string, length, featureIdx, segmentIdx, featureCount, segmentCount int) (int, error) {
	switch length {
	case featureCount:
		return featureIdx, nil
	case segmentCount:
		return segmentIdx, nil
	default:
		return 0, pfdferrors.Array(name, "property length must equal the exported feature count or the full segment count", length)
	}
}

func indexChecked[T any](name string, vs []T, featureIdx, segmentIdx, featureCount, segmentCount int) (T, error) {
	var zero T
	i, err := resolveIndex(name, len(vs), featureIdx, segmentIdx, featureCount, segmentCount)
	if err != nil {
		return zero, err
	}
	return vs[i], nil
}
