// Package pages computes which page indices a viewer must show and read
// ahead, given the navigation state. All functions are pure; the pipeline
// and the render loop both call them without synchronization.
package pages

import (
	"sort"

	"github.com/yshino/orihon/internal/config"
)

// NavigationState is the view-side input to planning: where the reader
// is, how pages pair up, and which indices start a new folder/volume.
type NavigationState struct {
	Current    int
	TotalPages int

	SpreadView      bool
	Binding         config.BindingDirection
	FirstPageSingle bool

	// Boundaries are folder/volume start indices, always rendered alone.
	Boundaries map[int]struct{}
}

// LoadRequest is one planned page load. Priority 0 is a currently
// visible page, priority 1 is read-ahead.
type LoadRequest struct {
	Index    int
	Priority int
}

// singleton reports whether idx must render alone even in spread view.
func (n NavigationState) singleton(idx int) bool {
	if idx == 0 && n.FirstPageSingle {
		return true
	}
	_, ok := n.Boundaries[idx]
	return ok
}

// PagesToDisplay returns the indices currently on screen in visual
// left-to-right order. Spread view pairs (current, current+1) unless the
// current page is forced alone or the partner is out of range or itself
// forced alone. Right binding puts the later page on the visual left.
func PagesToDisplay(n NavigationState) []int {
	if n.TotalPages == 0 {
		return nil
	}
	cur := clamp(n.Current, 0, n.TotalPages-1)

	if !n.SpreadView || n.singleton(cur) {
		return []int{cur}
	}

	partner := cur + 1
	if partner >= n.TotalPages || n.singleton(partner) {
		return []int{cur}
	}

	if n.Binding == config.BindingRight {
		return []int{partner, cur}
	}
	return []int{cur, partner}
}

// Navigate returns the new current index after stepping in direction
// (positive = forward). The step is 2 in spread view and 1 otherwise,
// collapsing to 1 across a singleton transition so a lone page is never
// skipped, and the result lands on a spread start.
func Navigate(n NavigationState, direction int) int {
	if n.TotalPages == 0 {
		return 0
	}
	cur := clamp(n.Current, 0, n.TotalPages-1)

	step := 1
	if n.SpreadView {
		step = 2
		if direction > 0 {
			if n.singleton(cur) || n.singleton(cur+1) {
				step = 1
			}
		} else if cur > 0 && n.singleton(cur-1) {
			step = 1
		}
	}

	var next int
	if direction > 0 {
		next = clamp(cur+step, 0, n.TotalPages-1)
	} else {
		next = clamp(cur-step, 0, n.TotalPages-1)
	}
	return SnapToSpread(n, next)
}

// SnapToSpread realigns an arbitrary index (seek, jump) onto the start
// of its spread. Singleton pages are their own spread. Pair parity is
// anchored at the nearest singleton at or below the index; with no such
// anchor, pairs start at even indices.
func SnapToSpread(n NavigationState, index int) int {
	if n.TotalPages == 0 {
		return 0
	}
	index = clamp(index, 0, n.TotalPages-1)

	if !n.SpreadView || n.singleton(index) {
		return index
	}

	anchor := -1
	for i := index; i >= 0; i-- {
		if n.singleton(i) {
			anchor = i
			break
		}
	}

	// Pairs start just past the anchor: anchor+1, anchor+3, ...
	// (or 0, 2, ... when there is no anchor below).
	if (index-anchor)%2 == 0 {
		return index - 1
	}
	return index
}

// Plan turns the navigation state into an ordered load-request list:
// the displayed pages first at priority 0, then read-ahead gap fill
// within prefetchDist pages of the display set at priority 1, nearest
// to the current page first.
func Plan(n NavigationState, prefetchDist int) []LoadRequest {
	display := PagesToDisplay(n)
	if len(display) == 0 {
		return nil
	}

	reqs := make([]LoadRequest, 0, len(display)+2*prefetchDist)
	shown := make(map[int]struct{}, len(display))
	for _, idx := range display {
		reqs = append(reqs, LoadRequest{Index: idx, Priority: 0})
		shown[idx] = struct{}{}
	}

	targets := make(map[int]struct{})
	for _, idx := range display {
		lo := clamp(idx-prefetchDist, 0, n.TotalPages-1)
		hi := clamp(idx+prefetchDist, 0, n.TotalPages-1)
		for i := lo; i <= hi; i++ {
			if _, ok := shown[i]; !ok {
				targets[i] = struct{}{}
			}
		}
	}

	ahead := make([]int, 0, len(targets))
	for idx := range targets {
		ahead = append(ahead, idx)
	}
	cur := clamp(n.Current, 0, n.TotalPages-1)
	sort.Slice(ahead, func(i, j int) bool {
		di, dj := abs(ahead[i]-cur), abs(ahead[j]-cur)
		if di != dj {
			return di < dj
		}
		return ahead[i] < ahead[j]
	})

	for _, idx := range ahead {
		reqs = append(reqs, LoadRequest{Index: idx, Priority: 1})
	}
	return reqs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
