package model

import (
	"sort"
	"strconv"
)

// SeatCoordinate identifies a physical seat inside a hall. It is the conflict
// key used when checking reservations against each other.
type SeatCoordinate struct {
	Row    string `json:"row"`
	Column int    `json:"column"`
}

// SeatNumber renders the printed seat label, e.g. "C7".
func (c SeatCoordinate) SeatNumber() string {
	return c.Row + strconv.Itoa(c.Column)
}

// Key is the "row-column" form used in logs and error messages.
func (c SeatCoordinate) Key() string {
	return c.Row + "-" + strconv.Itoa(c.Column)
}

// SeatSet is an unordered set of seat coordinates.
type SeatSet map[SeatCoordinate]struct{}

// NewSeatSet builds a set from the given coordinates.
func NewSeatSet(coords ...SeatCoordinate) SeatSet {
	s := make(SeatSet, len(coords))
	for _, c := range coords {
		s[c] = struct{}{}
	}
	return s
}

func (s SeatSet) Add(c SeatCoordinate) { s[c] = struct{}{} }

func (s SeatSet) Has(c SeatCoordinate) bool {
	_, ok := s[c]
	return ok
}

// Intersect returns the members of coords contained in s, in the order they
// appear in coords.
func (s SeatSet) Intersect(coords []SeatCoordinate) []SeatCoordinate {
	var out []SeatCoordinate
	for _, c := range coords {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Sorted returns the set members ordered by row label, then column.
func (s SeatSet) Sorted() []SeatCoordinate {
	out := make([]SeatCoordinate, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out
}
