package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-travel/backend/internal/models"
)

// Repository reads the room/flight catalog and live booking windows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an inventory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRoom returns a room by ID, or nil if absent.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT id, hotel_id, number, capacity, nightly_price_cents, created_at, updated_at
		FROM rooms WHERE id = $1`
	var m models.Room
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.HotelID, &m.Number, &m.Capacity, &m.NightlyPriceCents, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetFlight returns a flight by ID, or nil if absent.
func (r *Repository) GetFlight(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	const q = `SELECT id, airline, number, origin, destination, departs_at, seat_price_cents,
		total_seats, available_seats, created_at, updated_at
		FROM flights WHERE id = $1`
	var m models.Flight
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.Airline, &m.Number, &m.Origin, &m.Destination,
		&m.DepartsAt, &m.SeatPriceCents, &m.TotalSeats, &m.AvailableSeats, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountOverlapping counts live bookings on the room whose [check_in, check_out)
// window intersects the given one.
func (r *Repository) CountOverlapping(ctx context.Context, roomID uuid.UUID, checkIn, checkOut time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM hotel_bookings
		WHERE room_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND check_in < $3 AND check_out > $2`
	var n int
	err := r.pool.QueryRow(ctx, q, roomID, checkIn, checkOut).Scan(&n)
	return n, err
}
