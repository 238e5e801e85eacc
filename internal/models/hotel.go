package models

import (
	"time"

	"github.com/google/uuid"
)

// Hotel is a property in the catalog. Search/listing endpoints live outside
// this service; the core only needs lookups for booking creation.
type Hotel struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room is a bookable unit of a hotel with a nightly base price in minor units.
type Room struct {
	ID                uuid.UUID `json:"id"`
	HotelID           uuid.UUID `json:"hotel_id"`
	Number            string    `json:"number"`
	Capacity          int       `json:"capacity"`
	NightlyPriceCents int64     `json:"nightly_price_cents"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
