package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
)

// Postgres error codes the creation path reacts to.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// maxRefAttempts bounds reference-code collision retries.
const maxRefAttempts = 5

// Repository persists hotel and flight bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bookings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// isPgCode reports whether err carries the given SQLSTATE, wrapped or not.
func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// withRefRetry runs fn with fresh reference codes until it succeeds, fails
// with something other than a unique violation, or the attempt budget is
// spent. fn must be re-runnable from scratch: a statement error aborts an
// open Postgres transaction, so each attempt has to start its own.
func withRefRetry(what string, fn func(ref string) error) error {
	for attempt := 0; attempt < maxRefAttempts; attempt++ {
		err := fn(newReference())
		if err == nil {
			return nil
		}
		if !isPgCode(err, pgUniqueViolation) {
			return err
		}
	}
	return fmt.Errorf("%s: reference collisions exhausted after %d attempts", what, maxRefAttempts)
}

// CreateHotelBooking inserts a pending hotel booking. The table's exclusion
// constraint re-validates the overlap predicate at commit, so a concurrent
// conflicting insert fails here with a conflict error rather than
// over-booking the room. Reference collisions are retried with a fresh code;
// each attempt is its own implicit transaction.
func (r *Repository) CreateHotelBooking(ctx context.Context, b *models.HotelBooking) error {
	const q = `INSERT INTO hotel_bookings
		(id, reference, hotel_id, room_id, check_in, check_out, guests, amount_cents, currency,
		 contact_name, contact_email, contact_phone)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, status, payment_status, created_at, updated_at`
	return withRefRetry("insert hotel booking", func(ref string) error {
		b.Reference = ref
		err := r.pool.QueryRow(ctx, q,
			b.Reference, b.HotelID, b.RoomID, b.CheckIn, b.CheckOut, b.Guests, b.AmountCents, b.Currency,
			b.ContactName, b.ContactEmail, b.ContactPhone,
		).Scan(&b.ID, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
		if err == nil {
			return nil
		}
		if isPgCode(err, pgExclusionViolation) {
			return apperr.Conflict("room is already booked for the requested dates")
		}
		if isPgCode(err, pgUniqueViolation) {
			return err
		}
		return fmt.Errorf("insert hotel booking: %w", err)
	})
}

// CreateFlightBooking decrements the flight's seat counter and inserts the
// booking atomically. The conditional decrement is the capacity check: it
// succeeds only while enough seats remain. A reference collision aborts the
// whole transaction, so every attempt re-runs decrement and insert in a
// fresh one.
func (r *Repository) CreateFlightBooking(ctx context.Context, b *models.FlightBooking) error {
	passengers, err := json.Marshal(b.Passengers)
	if err != nil {
		return fmt.Errorf("marshal passengers: %w", err)
	}
	return withRefRetry("insert flight booking", func(ref string) error {
		b.Reference = ref
		return r.insertFlightBooking(ctx, b, passengers)
	})
}

func (r *Repository) insertFlightBooking(ctx context.Context, b *models.FlightBooking, passengers []byte) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const decrement = `UPDATE flights
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1 AND available_seats >= $2`
	tag, err := tx.Exec(ctx, decrement, b.FlightID, len(b.Passengers))
	if err != nil {
		return fmt.Errorf("decrement seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("not enough seats available")
	}

	const insert = `INSERT INTO flight_bookings
		(id, reference, flight_id, passengers, amount_cents, currency,
		 contact_name, contact_email, contact_phone)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, status, payment_status, created_at, updated_at`
	err = tx.QueryRow(ctx, insert,
		b.Reference, b.FlightID, passengers, b.AmountCents, b.Currency,
		b.ContactName, b.ContactEmail, b.ContactPhone,
	).Scan(&b.ID, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return err
		}
		return fmt.Errorf("insert flight booking: %w", err)
	}
	return tx.Commit(ctx)
}

// GetHotelBooking returns a hotel booking by ID, or nil if absent.
func (r *Repository) GetHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	const q = `SELECT id, reference, hotel_id, room_id, check_in, check_out, guests, amount_cents,
		currency, contact_name, contact_email, contact_phone, status, payment_status, created_at, updated_at
		FROM hotel_bookings WHERE id = $1`
	var b models.HotelBooking
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.Reference, &b.HotelID, &b.RoomID, &b.CheckIn,
		&b.CheckOut, &b.Guests, &b.AmountCents, &b.Currency, &b.ContactName, &b.ContactEmail,
		&b.ContactPhone, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetFlightBooking returns a flight booking by ID, or nil if absent.
func (r *Repository) GetFlightBooking(ctx context.Context, id uuid.UUID) (*models.FlightBooking, error) {
	const q = `SELECT id, reference, flight_id, passengers, amount_cents, currency,
		contact_name, contact_email, contact_phone, status, payment_status, created_at, updated_at
		FROM flight_bookings WHERE id = $1`
	var b models.FlightBooking
	var passengers []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.Reference, &b.FlightID, &passengers,
		&b.AmountCents, &b.Currency, &b.ContactName, &b.ContactEmail, &b.ContactPhone,
		&b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
		return nil, fmt.Errorf("unmarshal passengers: %w", err)
	}
	return &b, nil
}

// Snapshot returns the variant-independent view of a booking, or nil if absent.
func (r *Repository) Snapshot(ctx context.Context, bookingType string, id uuid.UUID) (*models.BookingSnapshot, error) {
	table, err := bookingTable(bookingType)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, reference, amount_cents, currency, contact_name, contact_email,
		status, payment_status, created_at, updated_at FROM ` + table + ` WHERE id = $1`
	s := models.BookingSnapshot{Type: bookingType}
	err = r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Reference, &s.AmountCents, &s.Currency,
		&s.ContactName, &s.ContactEmail, &s.Status, &s.PaymentStatus, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetStatuses updates both the lifecycle and payment status axes.
func (r *Repository) SetStatuses(ctx context.Context, bookingType string, id uuid.UUID, status, paymentStatus string) error {
	table, err := bookingTable(bookingType)
	if err != nil {
		return err
	}
	q := `UPDATE ` + table + ` SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`
	_, err = r.pool.Exec(ctx, q, id, status, paymentStatus)
	return err
}

// SetPaymentStatus updates only the payment status axis, leaving the
// reservation lifecycle untouched (a failed payment keeps the booking
// pending so the payer can retry).
func (r *Repository) SetPaymentStatus(ctx context.Context, bookingType string, id uuid.UUID, paymentStatus string) error {
	table, err := bookingTable(bookingType)
	if err != nil {
		return err
	}
	q := `UPDATE ` + table + ` SET payment_status = $2, updated_at = NOW() WHERE id = $1`
	_, err = r.pool.Exec(ctx, q, id, paymentStatus)
	return err
}

func bookingTable(bookingType string) (string, error) {
	switch bookingType {
	case models.BookingTypeHotel:
		return "hotel_bookings", nil
	case models.BookingTypeFlight:
		return "flight_bookings", nil
	default:
		return "", apperr.Validation("unknown booking type %q", bookingType)
	}
}
