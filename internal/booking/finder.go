package booking

import "github.com/iliyamo/movie-booking/internal/model"

// FindConsecutiveBlock returns the first run of count adjacent free seats,
// scanning rows in layout order and columns left to right. The first row
// with a long enough run wins and the run is cut to exactly count seats.
// It returns nil when no row qualifies or count is not positive.
func FindConsecutiveBlock(hall *model.Hall, occupied model.SeatSet, count int) []model.SeatCoordinate {
	if count <= 0 {
		return nil
	}
	for _, r := range hall.Rows {
		if r.SeatCount < count {
			continue
		}
		runStart, runLen := 0, 0
		for col := 1; col <= r.SeatCount; col++ {
			if occupied.Has(model.SeatCoordinate{Row: r.Label, Column: col}) {
				runLen = 0
				continue
			}
			if runLen == 0 {
				runStart = col
			}
			runLen++
			if runLen == count {
				block := make([]model.SeatCoordinate, count)
				for i := range block {
					block[i] = model.SeatCoordinate{Row: r.Label, Column: runStart + i}
				}
				return block
			}
		}
	}
	return nil
}
