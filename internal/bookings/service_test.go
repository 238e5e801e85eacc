package bookings

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-travel/backend/internal/inventory"
	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/apperr"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// memStore backs both the Store and inventory.Catalog interfaces. Its create
// methods re-check availability under a single mutex, mirroring what the
// exclusion constraint and the conditional seat decrement guarantee in SQL.
type memStore struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*models.Room
	flights map[uuid.UUID]*models.Flight
	hotel   map[uuid.UUID]*models.HotelBooking
	flight  map[uuid.UUID]*models.FlightBooking
}

func newMemStore() *memStore {
	return &memStore{
		rooms:   make(map[uuid.UUID]*models.Room),
		flights: make(map[uuid.UUID]*models.Flight),
		hotel:   make(map[uuid.UUID]*models.HotelBooking),
		flight:  make(map[uuid.UUID]*models.FlightBooking),
	}
}

func (m *memStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[id], nil
}

func (m *memStore) GetFlight(_ context.Context, id uuid.UUID) (*models.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flights[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CountOverlapping(_ context.Context, roomID uuid.UUID, in, out time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countOverlappingLocked(roomID, in, out), nil
}

func (m *memStore) countOverlappingLocked(roomID uuid.UUID, in, out time.Time) int {
	n := 0
	for _, b := range m.hotel {
		if b.RoomID == roomID && b.Status != models.BookingStatusCancelled &&
			inventory.Overlaps(b.CheckIn, b.CheckOut, in, out) {
			n++
		}
	}
	return n
}

func (m *memStore) CreateHotelBooking(_ context.Context, b *models.HotelBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countOverlappingLocked(b.RoomID, b.CheckIn, b.CheckOut) > 0 {
		return apperr.Conflict("room is already booked for the requested dates")
	}
	b.ID = uuid.New()
	b.Reference = newReference()
	b.Status = models.BookingStatusPending
	b.PaymentStatus = models.PaymentStatusPending
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.hotel[b.ID] = b
	return nil
}

func (m *memStore) CreateFlightBooking(_ context.Context, b *models.FlightBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[b.FlightID]
	if !ok || f.AvailableSeats < len(b.Passengers) {
		return apperr.Conflict("not enough seats available")
	}
	f.AvailableSeats -= len(b.Passengers)
	b.ID = uuid.New()
	b.Reference = newReference()
	b.Status = models.BookingStatusPending
	b.PaymentStatus = models.PaymentStatusPending
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.flight[b.ID] = b
	return nil
}

func (m *memStore) GetHotelBooking(_ context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hotel[id], nil
}

func (m *memStore) GetFlightBooking(_ context.Context, id uuid.UUID) (*models.FlightBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flight[id], nil
}

func newTestService(store *memStore) *Service {
	return NewService(store, inventory.NewChecker(store), nil)
}

func testContact() Contact {
	return Contact{Name: "Asha Rao", Email: "asha@example.com", Phone: "+919800000000"}
}

func TestNewReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := newReference()
		assert.Len(t, ref, refLength)
		for _, r := range ref {
			assert.Contains(t, refAlphabet, string(r), "reference %q uses a char outside the alphabet", ref)
		}
		seen[ref] = true
	}
	// Not a uniqueness guarantee, just a sanity check the generator is not constant.
	assert.Greater(t, len(seen), 150)
}

func TestCreateHotel(t *testing.T) {
	store := newMemStore()
	roomID := uuid.New()
	hotelID := uuid.New()
	store.rooms[roomID] = &models.Room{ID: roomID, HotelID: hotelID, NightlyPriceCents: 250000, Capacity: 2}
	svc := newTestService(store)
	ctx := context.Background()

	in := CreateHotelInput{
		RoomID:   roomID,
		CheckIn:  day("2025-07-01"),
		CheckOut: day("2025-07-04"),
		Guests:   2,
		Contact:  testContact(),
	}

	t.Run("prices three nights server side", func(t *testing.T) {
		b, err := svc.CreateHotel(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, int64(750000), b.AmountCents)
		assert.Equal(t, "INR", b.Currency)
		assert.Equal(t, models.BookingStatusPending, b.Status)
		assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
		assert.Len(t, b.Reference, refLength)
		assert.Equal(t, hotelID, b.HotelID)
	})

	t.Run("overlapping stay conflicts", func(t *testing.T) {
		in2 := in
		in2.CheckIn = day("2025-07-03")
		in2.CheckOut = day("2025-07-05")
		_, err := svc.CreateHotel(ctx, in2)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("back to back stay succeeds", func(t *testing.T) {
		in2 := in
		in2.CheckIn = day("2025-07-04")
		in2.CheckOut = day("2025-07-06")
		b, err := svc.CreateHotel(ctx, in2)
		require.NoError(t, err)
		assert.Equal(t, int64(500000), b.AmountCents)
	})

	t.Run("guest count over capacity rejected", func(t *testing.T) {
		in2 := in
		in2.CheckIn = day("2025-08-01")
		in2.CheckOut = day("2025-08-02")
		in2.Guests = 3
		_, err := svc.CreateHotel(ctx, in2)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("missing contact email rejected", func(t *testing.T) {
		in2 := in
		in2.Contact.Email = "not-an-email"
		_, err := svc.CreateHotel(ctx, in2)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("currency is normalized", func(t *testing.T) {
		in2 := in
		in2.CheckIn = day("2025-09-01")
		in2.CheckOut = day("2025-09-02")
		in2.Currency = "usd"
		b, err := svc.CreateHotel(ctx, in2)
		require.NoError(t, err)
		assert.Equal(t, "USD", b.Currency)
	})
}

func TestCreateHotelConcurrent(t *testing.T) {
	store := newMemStore()
	roomID := uuid.New()
	store.rooms[roomID] = &models.Room{ID: roomID, HotelID: uuid.New(), NightlyPriceCents: 100000, Capacity: 4}
	svc := newTestService(store)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateHotel(context.Background(), CreateHotelInput{
				RoomID:   roomID,
				CheckIn:  day("2025-07-10"),
				CheckOut: day("2025-07-12"),
				Guests:   1,
				Contact:  testContact(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent attempt must win the window")
	assert.Len(t, store.hotel, 1)
}

func TestCreateFlight(t *testing.T) {
	store := newMemStore()
	flightID := uuid.New()
	store.flights[flightID] = &models.Flight{ID: flightID, SeatPriceCents: 450000, TotalSeats: 3, AvailableSeats: 3}
	svc := newTestService(store)
	ctx := context.Background()

	passengers := []models.Passenger{
		{Name: "Asha Rao", Gender: "female", Age: 34},
		{Name: "Dev Rao", Gender: "male", Age: 36},
	}

	t.Run("prices per seat and decrements availability", func(t *testing.T) {
		b, err := svc.CreateFlight(ctx, CreateFlightInput{
			FlightID:   flightID,
			Passengers: passengers,
			Contact:    testContact(),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(900000), b.AmountCents)
		assert.Equal(t, 1, store.flights[flightID].AvailableSeats)
	})

	t.Run("over-capacity request conflicts", func(t *testing.T) {
		_, err := svc.CreateFlight(ctx, CreateFlightInput{
			FlightID:   flightID,
			Passengers: passengers,
			Contact:    testContact(),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("passenger without age rejected", func(t *testing.T) {
		_, err := svc.CreateFlight(ctx, CreateFlightInput{
			FlightID:   flightID,
			Passengers: []models.Passenger{{Name: "Asha Rao", Gender: "female"}},
			Contact:    testContact(),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.True(t, strings.Contains(apperr.Message(err), "age"))
	})

	t.Run("empty passenger list rejected", func(t *testing.T) {
		_, err := svc.CreateFlight(ctx, CreateFlightInput{
			FlightID: flightID,
			Contact:  testContact(),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestCreateFlightConcurrent(t *testing.T) {
	store := newMemStore()
	flightID := uuid.New()
	store.flights[flightID] = &models.Flight{ID: flightID, SeatPriceCents: 100000, TotalSeats: 5, AvailableSeats: 5}
	svc := newTestService(store)

	// 4 concurrent two-seat requests against 5 seats: exactly two can land.
	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateFlight(context.Background(), CreateFlightInput{
				FlightID: flightID,
				Passengers: []models.Passenger{
					{Name: "A", Gender: "female", Age: 30},
					{Name: "B", Gender: "male", Age: 31},
				},
				Contact: testContact(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 2, wins)
	assert.Equal(t, 1, store.flights[flightID].AvailableSeats)
}

func TestGet(t *testing.T) {
	store := newMemStore()
	roomID := uuid.New()
	store.rooms[roomID] = &models.Room{ID: roomID, HotelID: uuid.New(), NightlyPriceCents: 100000, Capacity: 2}
	svc := newTestService(store)
	ctx := context.Background()

	b, err := svc.CreateHotel(ctx, CreateHotelInput{
		RoomID:   roomID,
		CheckIn:  day("2025-07-01"),
		CheckOut: day("2025-07-02"),
		Guests:   1,
		Contact:  testContact(),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, models.BookingTypeHotel, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = svc.Get(ctx, models.BookingTypeFlight, b.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Get(ctx, "train", b.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
