package bookings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/response"
)

func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(newTestService(store), nil)

	r := gin.New()
	r.POST("/bookings/hotel", handler.CreateHotel)
	r.POST("/bookings/flight", handler.CreateFlight)
	r.GET("/bookings/:type/:id", handler.Get)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func hotelRequest(roomID uuid.UUID) CreateHotelRequest {
	return CreateHotelRequest{
		RoomID:       roomID.String(),
		CheckIn:      "2025-07-01",
		CheckOut:     "2025-07-04",
		Guests:       2,
		ContactName:  "Asha Rao",
		ContactEmail: "asha@example.com",
	}
}

func TestCreateHotelEndpoint(t *testing.T) {
	roomID := uuid.New()
	seed := func() *memStore {
		store := newMemStore()
		store.rooms[roomID] = &models.Room{ID: roomID, HotelID: uuid.New(), NightlyPriceCents: 250000, Capacity: 2}
		return store
	}

	t.Run("created", func(t *testing.T) {
		w := postJSON(newTestRouter(seed()), "/bookings/hotel", hotelRequest(roomID))
		require.Equal(t, http.StatusCreated, w.Code)

		var b response.Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
		data := b.Data.(map[string]interface{})
		assert.Equal(t, float64(750000), data["amount_cents"])
		assert.Len(t, data["reference"], refLength)
	})

	t.Run("date conflict is 409", func(t *testing.T) {
		r := newTestRouter(seed())
		postJSON(r, "/bookings/hotel", hotelRequest(roomID))
		w := postJSON(r, "/bookings/hotel", hotelRequest(roomID))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown room is 404", func(t *testing.T) {
		w := postJSON(newTestRouter(seed()), "/bookings/hotel", hotelRequest(uuid.New()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad date format is 400", func(t *testing.T) {
		req := hotelRequest(roomID)
		req.CheckIn = "01/07/2025"
		w := postJSON(newTestRouter(seed()), "/bookings/hotel", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing contact email is 400", func(t *testing.T) {
		req := hotelRequest(roomID)
		req.ContactEmail = ""
		w := postJSON(newTestRouter(seed()), "/bookings/hotel", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateFlightEndpoint(t *testing.T) {
	flightID := uuid.New()
	store := newMemStore()
	store.flights[flightID] = &models.Flight{ID: flightID, SeatPriceCents: 450000, TotalSeats: 2, AvailableSeats: 2}
	r := newTestRouter(store)

	req := CreateFlightRequest{
		FlightID:     flightID.String(),
		Passengers:   []models.Passenger{{Name: "Asha Rao", Gender: "female", Age: 34}},
		ContactName:  "Asha Rao",
		ContactEmail: "asha@example.com",
	}

	w := postJSON(r, "/bookings/flight", req)
	require.Equal(t, http.StatusCreated, w.Code)

	// Second single-seat booking fits, the third exhausts the cabin.
	w = postJSON(r, "/bookings/flight", req)
	require.Equal(t, http.StatusCreated, w.Code)
	w = postJSON(r, "/bookings/flight", req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetEndpoint(t *testing.T) {
	roomID := uuid.New()
	store := newMemStore()
	store.rooms[roomID] = &models.Room{ID: roomID, HotelID: uuid.New(), NightlyPriceCents: 100000, Capacity: 2}
	r := newTestRouter(store)

	w := postJSON(r, "/bookings/hotel", hotelRequest(roomID))
	require.Equal(t, http.StatusCreated, w.Code)
	var b response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	id := b.Data.(map[string]interface{})["id"].(string)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/hotel/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong type is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/flight/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown type is 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/train/"+id, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/hotel/abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
