// Package viewstate keeps the map's center and zoom consistent with the
// table's row selection.
//
// A surface re-reports its current selection on every redraw. Select only
// moves the view when the selected parcel's centroid differs from the current
// center, so a redraw never triggers another redraw.
package viewstate

import (
	"github.com/paulmach/orb"

	"parcelview/internal/dataset"
	"parcelview/internal/errors"
)

// Default zoom levels: the whole county, then a single parcel.
const (
	OverviewZoom = 13
	DetailZoom   = 18
)

// Levels are the overview and detail zoom levels.
type Levels struct {
	Overview int `json:"overview"`
	Detail   int `json:"detail"`
}

// DefaultLevels returns zoom 13 for the overview and 18 for a selection.
func DefaultLevels() Levels {
	return Levels{Overview: OverviewZoom, Detail: DetailZoom}
}

// State is one session's view. A nil Selected means Unselected.
type State struct {
	Center   orb.Point `json:"center"` // [lon, lat]
	Zoom     int       `json:"zoom"`
	Selected *int      `json:"selected,omitempty"`
	Levels   Levels    `json:"levels"`
}

// New returns the Unselected state for ds at the default zoom levels.
func New(ds *dataset.Dataset) State {
	return NewWithLevels(ds, DefaultLevels())
}

// NewWithLevels returns the Unselected state for ds, centered on the mean of
// its parcel centroids.
func NewWithLevels(ds *dataset.Dataset, levels Levels) State {
	return State{
		Center: ds.Centroid(),
		Zoom:   levels.Overview,
		Levels: levels,
	}
}

// IsSelected reports whether a row has been selected.
func (s *State) IsSelected() bool { return s.Selected != nil }

// Lat returns the center latitude.
func (s *State) Lat() float64 { return s.Center.Lat() }

// Lon returns the center longitude.
func (s *State) Lon() float64 { return s.Center.Lon() }

// Select handles a selection event for row i of ds and reports whether the
// view changed. The state moves to Selected(i) at the detail zoom only when
// row i's centroid differs from the current center in either coordinate.
//
// An index outside ds panics with *errors.SelectionOutOfRangeError; surfaces
// only report rows of the dataset they display.
func (s *State) Select(ds *dataset.Dataset, i int) bool {
	if i < 0 || i >= ds.Len() {
		panic(&errors.SelectionOutOfRangeError{Index: i, Len: ds.Len()})
	}
	candidate := ds.Parcels[i].Centroid
	if candidate[0] == s.Center[0] && candidate[1] == s.Center[1] {
		return false
	}

	idx := i
	s.Center = candidate
	s.Zoom = s.Levels.Detail
	s.Selected = &idx
	return true
}
