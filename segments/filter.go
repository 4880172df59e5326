// Copyright 2015 the GoSpatial Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// licence that can be found in the LICENCE.txt file.

package segments

import (
	"github.com/samber/lo"

	"github.com/rogerlew/usgs-pfdf/d8"
)

// Continuous reports, for every current segment (in Ids() order),
// whether it may actually be removed without breaking flow
// continuity, per §4.6.
//
// selection names the segments under consideration; when remove is
// true, selection is the set of segments requested for removal, and
// when false, selection is the set of segments requested to be kept
// (so the requested removals are its complement). A requested segment
// is removable once it sits on the upstream edge of its local network
// (no parents) or the downstream edge (no child); removing it may
// expose a neighbour to the same edge condition, so the check repeats
// until a full pass makes no further progress — an iterative peeling
// of the requested subset from its boundary inward, never touching a
// segment that still has a live non-requested neighbour on both
// sides. keepUpstream/keepDownstream exempt that edge from ever
// licensing a removal.
func (s *Segments) Continuous(selection []int, kind SelectionType, remove, keepUpstream, keepDownstream bool) ([]bool, error) {
	selected, err := s.resolveIDs(selection, kind)
	if err != nil {
		return nil, err
	}
	selectedSet := lo.SliceToMap(selected, func(id int) (int, bool) { return id, true })

	requested := make(map[int]bool, len(s.order))
	for _, id := range s.order {
		in := selectedSet[id]
		if remove {
			requested[id] = in
		} else {
			requested[id] = !in
		}
	}

	parents := make(map[int][]int, len(s.order))
	child := make(map[int]int, len(s.order))
	for _, id := range s.order {
		seg := s.byID[id]
		parents[id] = append([]int(nil), seg.parents...)
		child[id] = seg.child
	}

	removable := make(map[int]bool, len(s.order))
	for changed := true; changed; {
		changed = false
		for id, want := range requested {
			if !want || removable[id] {
				continue
			}
			noParents := len(parents[id]) == 0
			noChild := child[id] == -1
			eligible := (noParents && !keepUpstream) || (noChild && !keepDownstream)
			if !eligible {
				continue
			}
			removable[id] = true
			changed = true
			if c := child[id]; c != -1 {
				parents[c] = lo.Without(parents[c], id)
			}
			for _, p := range parents[id] {
				child[p] = -1
			}
			parents[id] = nil
			child[id] = -1
		}
	}

	out := make([]bool, len(s.order))
	for i, id := range s.order {
		out[i] = removable[id]
	}
	return out, nil
}

// Keep discards every segment not in selection, a bit-exact set
// mutation independent of Continuous's continuity check (run
// Continuous first if preserving continuity matters).
func (s *Segments) Keep(selection []int, kind SelectionType) error {
	ids, err := s.resolveIDs(selection, kind)
	if err != nil {
		return err
	}
	keep := lo.SliceToMap(ids, func(id int) (int, bool) { return id, true })
	return s.applyKeep(keep)
}

// Remove discards exactly the segments in selection.
func (s *Segments) Remove(selection []int, kind SelectionType) error {
	ids, err := s.resolveIDs(selection, kind)
	if err != nil {
		return err
	}
	drop := lo.SliceToMap(ids, func(id int) (int, bool) { return id, true })
	keep := make(map[int]bool, len(s.order))
	for _, id := range s.order {
		if !drop[id] {
			keep[id] = true
		}
	}
	return s.applyKeep(keep)
}

func (s *Segments) applyKeep(keep map[int]bool) error {
	newOrder := lo.Filter(s.order, func(id int, _ int) bool { return keep[id] })

	for _, id := range newOrder {
		seg := s.byID[id]
		if seg.child != -1 && !keep[seg.child] {
			seg.child = -1
		}
		seg.parents = lo.Filter(seg.parents, func(p int, _ int) bool { return keep[p] })
	}
	for id := range s.byID {
		if !keep[id] {
			delete(s.byID, id)
		}
	}
	s.order = newOrder
	// Conservative: any structural mutation may have dropped a
	// terminal, so the cached basin raster can no longer be trusted.
	s.invalidateBasinCache()
	return nil
}

// Copy returns a deep duplicate of the graph's arrays; the underlying
// flow raster is shared, since it is never mutated once built.
func (s *Segments) Copy() *Segments {
	out := &Segments{
		flow:      s.flow,
		transform: s.transform,
		crs:       s.crs,
		height:    s.height,
		width:     s.width,
		order:     append([]int(nil), s.order...),
		byID:      make(map[int]*segment, len(s.byID)),
	}
	for id, seg := range s.byID {
		out.byID[id] = &segment{
			id:      seg.id,
			pixels:  append([]d8.Pixel(nil), seg.pixels...),
			points:  append([]d8.Point(nil), seg.points...),
			npixels: seg.npixels,
			parents: append([]int(nil), seg.parents...),
			child:   seg.child,
		}
	}
	return out
}
