package model

import "strings"

// MinSeatsPerRow is the smallest row a hall layout may declare.
const MinSeatsPerRow = 6

// Row is one line of seats in a hall. Columns are numbered 1..SeatCount from
// the left; AisleSeats marks the columns that sit next to an aisle.
type Row struct {
	Label      string `json:"rowNumber"`
	SeatCount  int    `json:"totalSeats"`
	AisleSeats []int  `json:"aisleSeats"`
}

// IsAisle reports whether column is flagged as an aisle seat.
func (r Row) IsAisle(column int) bool {
	for _, a := range r.AisleSeats {
		if a == column {
			return true
		}
	}
	return false
}

// Hall describes the seating grid of one screening room inside a theater.
// Rows are kept in layout order; that order drives block searches.
//
// Fields:
//
//	ID         – halls.id
//	TheaterID  – owning theater
//	Name       – unique per theater; shows refer to halls by name
//	HallNumber – printed hall number
//	Rows       – owned value collection, no independent lifecycle
//	IsActive   – soft delete flag
type Hall struct {
	ID         uint64 `json:"id"`
	TheaterID  uint64 `json:"theaterId"`
	Name       string `json:"name"`
	HallNumber string `json:"hallNumber"`
	Rows       []Row  `json:"rows"`
	IsActive   bool   `json:"isActive"`
}

// TotalCapacity is the number of seats across all rows.
func (h *Hall) TotalCapacity() int {
	n := 0
	for _, r := range h.Rows {
		n += r.SeatCount
	}
	return n
}

// Row returns the row with the given label.
func (h *Hall) Row(label string) (Row, bool) {
	for _, r := range h.Rows {
		if r.Label == label {
			return r, true
		}
	}
	return Row{}, false
}

// Contains reports whether c addresses a seat that exists in the layout.
func (h *Hall) Contains(c SeatCoordinate) bool {
	r, ok := h.Row(c.Row)
	return ok && c.Column >= 1 && c.Column <= r.SeatCount
}

// Seats enumerates every coordinate of the hall in layout order.
func (h *Hall) Seats() []SeatCoordinate {
	out := make([]SeatCoordinate, 0, h.TotalCapacity())
	for _, r := range h.Rows {
		for col := 1; col <= r.SeatCount; col++ {
			out = append(out, SeatCoordinate{Row: r.Label, Column: col})
		}
	}
	return out
}

// Validate checks the layout invariants: a name, at least one row, unique
// row labels, at least MinSeatsPerRow seats per row and aisle positions
// inside the row.
func (h *Hall) Validate() error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return invalid("name", "is required")
	}
	if len(h.Rows) == 0 {
		return invalid("rows", "at least one row is required")
	}
	seen := make(map[string]struct{}, len(h.Rows))
	for i := range h.Rows {
		r := &h.Rows[i]
		r.Label = strings.TrimSpace(r.Label)
		if r.Label == "" {
			return invalid("rows", "row %d has no label", i+1)
		}
		if _, dup := seen[r.Label]; dup {
			return invalid("rows", "duplicate row label %q", r.Label)
		}
		seen[r.Label] = struct{}{}
		if r.SeatCount < MinSeatsPerRow {
			return invalid("rows", "row %s has %d seats, minimum is %d", r.Label, r.SeatCount, MinSeatsPerRow)
		}
		for _, a := range r.AisleSeats {
			if a < 1 || a > r.SeatCount {
				return invalid("rows", "row %s aisle seat %d outside 1..%d", r.Label, a, r.SeatCount)
			}
		}
	}
	return nil
}
