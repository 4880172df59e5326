// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package d8

import (
	"math"

	"github.com/rogerlew/usgs-pfdf/internal/queue"
	"github.com/rogerlew/usgs-pfdf/raster"
)

// AccumulationOptions configures Accumulation.
type AccumulationOptions struct {
	// Weights assigns a per-pixel weight; nil means 1 for mask-True
	// pixels and 0 elsewhere (1 everywhere if Mask is also nil).
	Weights *raster.Raster
	// Mask restricts which pixels contribute; nil means every pixel
	// contributes (subject to Weights).
	Mask *raster.Raster
	// OmitNaN controls NaN propagation when Weights carries NoData or
	// NaN cells: false means any catchment touching such a cell turns
	// to NaN from that point downstream (§4.2); true ignores it (the
	// pixel contributes 0 and accumulation stays numeric).
	OmitNaN bool
}

// Accumulation computes, for every pixel p, the sum of weights over
// every upstream pixel that flows into p, including p itself (§4.2).
//
// The sweep is adapted from the teacher's d8FlowAccumulation.go: seed
// a FIFO queue with every pixel that has no in-neighbours (the mask
// gates weights only, not the flow graph),
// then repeatedly pop a pixel, push its contribution to its
// downstream receiver, decrement the receiver's remaining in-degree,
// and enqueue the receiver once its in-degree reaches zero. This is a
// single-pass Kahn topological relaxation, identical in structure to
// the teacher's flowQueue-driven loop, generalized here to the
// bit-flag D8 encoding and to arbitrary weights/mask/NaN policy.
func Accumulation(flow *raster.Raster, opts AccumulationOptions) (*raster.Raster, error) {
	g, err := newFlowGrid(flow)
	if err != nil {
		return nil, err
	}
	if err := flow.RequireMatch(opts.Weights, "weights"); err != nil {
		return nil, err
	}
	if err := flow.RequireMatch(opts.Mask, "mask"); err != nil {
		return nil, err
	}
	h, w := g.height, g.width

	weight := make([]float64, h*w)
	nanTouched := make([]bool, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			gate := 1.0
			if opts.Mask != nil {
				mv := opts.Mask.Value(row, col)
				if math.IsNaN(mv) || mv == 0 {
					gate = 0
				}
			}
			if opts.Weights == nil {
				weight[i] = gate
				continue
			}
			wv := opts.Weights.Value(row, col)
			if math.IsNaN(wv) {
				weight[i] = 0
				if !opts.OmitNaN {
					nanTouched[i] = true
				}
			} else {
				weight[i] = wv * gate
			}
		}
	}

	inDegree := make([]int, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if _, _, ok := g.receiver(row, col); ok {
				nr, nc, _ := g.receiver(row, col)
				inDegree[nr*w+nc]++
			}
		}
	}

	sum := make([]float64, h*w)
	q := queue.New()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			sum[i] = weight[i]
			if inDegree[i] == 0 {
				q.Push(row, col)
			}
		}
	}

	for q.Len() > 0 {
		row, col := q.Pop()
		i := row*w + col
		nr, nc, ok := g.receiver(row, col)
		if !ok {
			continue
		}
		j := nr*w + nc
		sum[j] += sum[i]
		nanTouched[j] = nanTouched[j] || nanTouched[i]
		inDegree[j]--
		if inDegree[j] == 0 {
			q.Push(nr, nc)
		}
	}

	out := make([]float64, h*w)
	for i := range out {
		if nanTouched[i] {
			out[i] = math.NaN()
		} else {
			out[i] = sum[i]
		}
	}

	transform, _ := flow.Transform()
	crs, _ := flow.CRS()
	return raster.Construct(out, h, w, raster.Float64, raster.Options{
		Transform: &transform,
		CRS:       &crs,
	})
}
