package model

import (
	"strings"
	"time"
)

// Date and clock layouts used for show scheduling. Times of day are
// zero-padded so lexical comparison matches chronological order.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Show is a scheduled screening of a movie in one hall of a theater. The
// hall is referenced by name inside the theater.
//
// Fields:
//
//	Date       – calendar day, DateLayout
//	StartTime  – local start, TimeLayout
//	EndTime    – local end, TimeLayout; must be after StartTime
//	PriceCents – price of every seat for this show
type Show struct {
	ID         uint64    `json:"id"`
	MovieID    uint64    `json:"movieId"`
	TheaterID  uint64    `json:"theaterId"`
	Hall       string    `json:"hall"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	PriceCents uint32    `json:"priceCents"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Overlaps reports whether the half-open intervals [StartTime, EndTime) of
// two shows intersect on the same hall and date.
func (s *Show) Overlaps(o *Show) bool {
	if s.TheaterID != o.TheaterID || s.Hall != o.Hall || s.Date != o.Date {
		return false
	}
	return s.StartTime < o.EndTime && o.StartTime < s.EndTime
}

// Validate normalises and checks the schedule fields.
func (s *Show) Validate() error {
	if s.MovieID == 0 {
		return invalid("movieId", "is required")
	}
	if s.TheaterID == 0 {
		return invalid("theaterId", "is required")
	}
	s.Hall = strings.TrimSpace(s.Hall)
	if s.Hall == "" {
		return invalid("hall", "is required")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return invalid("date", "must use format YYYY-MM-DD")
	}
	start, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return invalid("startTime", "must use format HH:MM")
	}
	end, err := time.Parse(TimeLayout, s.EndTime)
	if err != nil {
		return invalid("endTime", "must use format HH:MM")
	}
	if !end.After(start) {
		return invalid("endTime", "must be after startTime")
	}
	// re-render so "9:05" style input compares correctly
	s.StartTime = start.Format(TimeLayout)
	s.EndTime = end.Format(TimeLayout)
	return nil
}

// ShowFilter selects shows. Zero values mean "any".
type ShowFilter struct {
	MovieID    uint64
	TheaterID  uint64
	Date       string
	ActiveOnly bool
	Page       int
	Limit      int
}

// Match reports whether s satisfies the filter, ignoring pagination.
func (f ShowFilter) Match(s *Show) bool {
	if f.MovieID != 0 && s.MovieID != f.MovieID {
		return false
	}
	if f.TheaterID != 0 && s.TheaterID != f.TheaterID {
		return false
	}
	if f.Date != "" && s.Date != f.Date {
		return false
	}
	if f.ActiveOnly && !s.IsActive {
		return false
	}
	return true
}
