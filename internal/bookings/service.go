package bookings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-travel/backend/internal/inventory"
	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
)

// Store is the persistence surface the service needs. Implemented by
// Repository; tests substitute an in-memory fake.
type Store interface {
	CreateHotelBooking(ctx context.Context, b *models.HotelBooking) error
	CreateFlightBooking(ctx context.Context, b *models.FlightBooking) error
	GetHotelBooking(ctx context.Context, id uuid.UUID) (*models.HotelBooking, error)
	GetFlightBooking(ctx context.Context, id uuid.UUID) (*models.FlightBooking, error)
}

// Contact is the snapshot of who made the booking, independent of any account.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// CreateHotelInput is a validated-at-the-edge hotel booking request.
type CreateHotelInput struct {
	RoomID   uuid.UUID
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
	Currency string
	Contact  Contact
}

// CreateFlightInput is a validated-at-the-edge flight booking request.
type CreateFlightInput struct {
	FlightID   uuid.UUID
	Passengers []models.Passenger
	Currency   string
	Contact    Contact
}

// Service creates bookings: it validates input, prices the stay server-side
// and delegates the atomic check-and-reserve to the store.
type Service struct {
	store   Store
	checker *inventory.Checker
	logger  *zap.Logger
}

// NewService creates a bookings service.
func NewService(store Store, checker *inventory.Checker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, checker: checker, logger: logger}
}

// CreateHotel reserves a room for [CheckIn, CheckOut). The total is nightly
// price times nights, computed here; client-submitted amounts are never read.
func (s *Service) CreateHotel(ctx context.Context, in CreateHotelInput) (*models.HotelBooking, error) {
	if err := validateContact(in.Contact); err != nil {
		return nil, err
	}
	if in.Guests <= 0 {
		return nil, apperr.Validation("guest count must be positive")
	}

	room, err := s.checker.CheckRoom(ctx, in.RoomID, in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}
	if in.Guests > room.Capacity {
		return nil, apperr.Validation("guest count exceeds room capacity of %d", room.Capacity)
	}

	nights := int64(in.CheckOut.Sub(in.CheckIn).Hours() / 24)
	b := &models.HotelBooking{
		HotelID:      room.HotelID,
		RoomID:       room.ID,
		CheckIn:      in.CheckIn,
		CheckOut:     in.CheckOut,
		Guests:       in.Guests,
		AmountCents:  room.NightlyPriceCents * nights,
		Currency:     currencyOrDefault(in.Currency),
		ContactName:  in.Contact.Name,
		ContactEmail: in.Contact.Email,
		ContactPhone: in.Contact.Phone,
	}
	if err := s.store.CreateHotelBooking(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("hotel booking created",
		zap.String("booking_id", b.ID.String()),
		zap.String("reference", b.Reference),
		zap.String("room_id", room.ID.String()),
		zap.Int64("amount_cents", b.AmountCents),
	)
	return b, nil
}

// CreateFlight reserves seats for the passenger list. Seat decrement and
// booking insert happen in one transaction inside the store.
func (s *Service) CreateFlight(ctx context.Context, in CreateFlightInput) (*models.FlightBooking, error) {
	if err := validateContact(in.Contact); err != nil {
		return nil, err
	}
	if len(in.Passengers) == 0 {
		return nil, apperr.Validation("at least one passenger is required")
	}
	for i, p := range in.Passengers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, apperr.Validation("passenger %d: name is required", i+1)
		}
		if strings.TrimSpace(p.Gender) == "" {
			return nil, apperr.Validation("passenger %d: gender is required", i+1)
		}
		if p.Age <= 0 {
			return nil, apperr.Validation("passenger %d: age must be positive", i+1)
		}
	}

	flight, err := s.checker.CheckFlight(ctx, in.FlightID, len(in.Passengers))
	if err != nil {
		return nil, err
	}

	b := &models.FlightBooking{
		FlightID:     flight.ID,
		Passengers:   in.Passengers,
		AmountCents:  flight.SeatPriceCents * int64(len(in.Passengers)),
		Currency:     currencyOrDefault(in.Currency),
		ContactName:  in.Contact.Name,
		ContactEmail: in.Contact.Email,
		ContactPhone: in.Contact.Phone,
	}
	if err := s.store.CreateFlightBooking(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("flight booking created",
		zap.String("booking_id", b.ID.String()),
		zap.String("reference", b.Reference),
		zap.String("flight_id", flight.ID.String()),
		zap.Int("passengers", len(in.Passengers)),
		zap.Int64("amount_cents", b.AmountCents),
	)
	return b, nil
}

// Get returns a booking of either variant by ID.
func (s *Service) Get(ctx context.Context, bookingType string, id uuid.UUID) (interface{}, error) {
	switch bookingType {
	case models.BookingTypeHotel:
		b, err := s.store.GetHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, apperr.NotFound("booking not found")
		}
		return b, nil
	case models.BookingTypeFlight:
		b, err := s.store.GetFlightBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, apperr.NotFound("booking not found")
		}
		return b, nil
	default:
		return nil, apperr.Validation("unknown booking type %q", bookingType)
	}
}

func validateContact(c Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("contact name is required")
	}
	if strings.TrimSpace(c.Email) == "" || !strings.Contains(c.Email, "@") {
		return apperr.Validation("a valid contact email is required")
	}
	return nil
}

func currencyOrDefault(cur string) string {
	if cur == "" {
		return "INR"
	}
	return strings.ToUpper(cur)
}
