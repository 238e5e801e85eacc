package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingType discriminates which collection a booking lives in.
const (
	BookingTypeHotel  = "hotel"
	BookingTypeFlight = "flight"
)

// BookingStatus is the reservation lifecycle, separate from payment status.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// ValidBookingType reports whether t names a known booking collection.
func ValidBookingType(t string) bool {
	return t == BookingTypeHotel || t == BookingTypeFlight
}

// Passenger is one traveller on a flight booking, stored as JSONB.
type Passenger struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Age    int    `json:"age"`
}

// HotelBooking reserves a room for a half-open [check_in, check_out) window.
// Contact fields are snapshotted at booking time and do not reference a user account.
type HotelBooking struct {
	ID            uuid.UUID `json:"id"`
	Reference     string    `json:"reference"`
	HotelID       uuid.UUID `json:"hotel_id"`
	RoomID        uuid.UUID `json:"room_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Guests        int       `json:"guests"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	ContactName   string    `json:"contact_name"`
	ContactEmail  string    `json:"contact_email"`
	ContactPhone  string    `json:"contact_phone"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FlightBooking reserves seats for a passenger list on a flight.
type FlightBooking struct {
	ID            uuid.UUID   `json:"id"`
	Reference     string      `json:"reference"`
	FlightID      uuid.UUID   `json:"flight_id"`
	Passengers    []Passenger `json:"passengers"`
	AmountCents   int64       `json:"amount_cents"`
	Currency      string      `json:"currency"`
	ContactName   string      `json:"contact_name"`
	ContactEmail  string      `json:"contact_email"`
	ContactPhone  string      `json:"contact_phone"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// BookingSnapshot is the shape shared by both booking variants, used wherever a
// payment flow needs the owning booking without caring which table it came from.
type BookingSnapshot struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Reference     string    `json:"reference"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	ContactName   string    `json:"contact_name"`
	ContactEmail  string    `json:"contact_email"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
