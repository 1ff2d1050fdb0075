package domain

import "strconv"

// Flight owns a fixed seat grid created once at setup. Seat codes are row
// number plus column letter ("1A".."6D" for the default 6x4 layout).
type Flight struct {
	ID          string `json:"id"`
	FromAirport string `json:"from_airport"`
	ToAirport   string `json:"to_airport"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seats_per_row"`
}

const (
	DefaultRows        = 6
	DefaultSeatsPerRow = 4
)

// SeatCodes returns the grid's seat codes in display order.
func (f Flight) SeatCodes() []string {
	codes := make([]string, 0, f.Rows*f.SeatsPerRow)
	for row := 1; row <= f.Rows; row++ {
		for col := 0; col < f.SeatsPerRow; col++ {
			codes = append(codes, SeatCode(row, col))
		}
	}
	return codes
}

// SeatCode builds a seat code from a 1-based row and 0-based column.
func SeatCode(row, col int) string {
	return strconv.Itoa(row) + string(rune('A'+col))
}
