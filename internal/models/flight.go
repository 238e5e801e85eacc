package models

import (
	"time"

	"github.com/google/uuid"
)

// Flight is a scheduled flight with a per-seat price in minor units and a
// remaining-seats counter decremented when a booking reserves seats.
type Flight struct {
	ID             uuid.UUID `json:"id"`
	Airline        string    `json:"airline"`
	Number         string    `json:"number"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartsAt      time.Time `json:"departs_at"`
	SeatPriceCents int64     `json:"seat_price_cents"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
