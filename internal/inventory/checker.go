// Package inventory decides whether a candidate reservation can be satisfied
// against existing reservations: interval overlap for hotel rooms, a
// remaining-seats counter for flights.
package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
)

// Catalog is the read surface the checker needs. Implemented by Repository.
type Catalog interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error)
	CountOverlapping(ctx context.Context, roomID uuid.UUID, checkIn, checkOut time.Time) (int, error)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not conflict: a checkout on
// the day of another booking's check-in is fine.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Checker gates booking creation. This pre-check gives callers a clean
// conflict error; the storage-level exclusion constraint remains the
// authority under concurrency.
type Checker struct {
	catalog Catalog
}

// NewChecker creates a Checker over the catalog.
func NewChecker(catalog Catalog) *Checker {
	return &Checker{catalog: catalog}
}

// CheckRoom validates the stay window and tests it against live bookings on
// the room. Returns the room so the caller can price the stay.
func (c *Checker) CheckRoom(ctx context.Context, roomID uuid.UUID, checkIn, checkOut time.Time) (*models.Room, error) {
	if !checkOut.After(checkIn) {
		return nil, apperr.Validation("check_out must be after check_in")
	}
	room, err := c.catalog.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperr.NotFound("room not found")
	}
	n, err := c.catalog.CountOverlapping(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.Conflict("room is already booked for the requested dates")
	}
	return room, nil
}

// CheckFlight verifies the flight exists and has enough remaining seats.
// Returns the flight so the caller can price the booking.
func (c *Checker) CheckFlight(ctx context.Context, flightID uuid.UUID, seats int) (*models.Flight, error) {
	if seats <= 0 {
		return nil, apperr.Validation("at least one passenger is required")
	}
	flight, err := c.catalog.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if flight == nil {
		return nil, apperr.NotFound("flight not found")
	}
	if seats > flight.AvailableSeats {
		return nil, apperr.Conflict("not enough seats available")
	}
	return flight, nil
}
