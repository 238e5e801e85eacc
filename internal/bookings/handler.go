package bookings

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-travel/backend/internal/models"
	"github.com/atlas-travel/backend/pkg/response"
)

const dateLayout = "2006-01-02"

// CreateHotelRequest is the body for POST /bookings/hotel. The amount is
// never part of the request; it is computed server-side.
type CreateHotelRequest struct {
	RoomID       string `json:"room_id" binding:"required"`
	CheckIn      string `json:"check_in" binding:"required"`
	CheckOut     string `json:"check_out" binding:"required"`
	Guests       int    `json:"guests" binding:"required"`
	Currency     string `json:"currency"`
	ContactName  string `json:"contact_name" binding:"required"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	ContactPhone string `json:"contact_phone"`
}

// CreateFlightRequest is the body for POST /bookings/flight.
type CreateFlightRequest struct {
	FlightID     string             `json:"flight_id" binding:"required"`
	Passengers   []models.Passenger `json:"passengers" binding:"required"`
	Currency     string             `json:"currency"`
	ContactName  string             `json:"contact_name" binding:"required"`
	ContactEmail string             `json:"contact_email" binding:"required,email"`
	ContactPhone string             `json:"contact_phone"`
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateHotel handles POST /bookings/hotel.
func (h *Handler) CreateHotel(c *gin.Context) {
	var req CreateHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		response.BadRequest(c, "invalid room_id")
		return
	}
	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		response.BadRequest(c, "invalid check_in date, expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		response.BadRequest(c, "invalid check_out date, expected YYYY-MM-DD")
		return
	}

	b, err := h.svc.CreateHotel(c.Request.Context(), CreateHotelInput{
		RoomID:   roomID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   req.Guests,
		Currency: req.Currency,
		Contact:  Contact{Name: req.ContactName, Email: req.ContactEmail, Phone: req.ContactPhone},
	})
	if err != nil {
		h.logger.Warn("hotel booking rejected", zap.String("room_id", req.RoomID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Created(c, b)
}

// CreateFlight handles POST /bookings/flight.
func (h *Handler) CreateFlight(c *gin.Context) {
	var req CreateFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	flightID, err := uuid.Parse(req.FlightID)
	if err != nil {
		response.BadRequest(c, "invalid flight_id")
		return
	}

	b, err := h.svc.CreateFlight(c.Request.Context(), CreateFlightInput{
		FlightID:   flightID,
		Passengers: req.Passengers,
		Currency:   req.Currency,
		Contact:    Contact{Name: req.ContactName, Email: req.ContactEmail, Phone: req.ContactPhone},
	})
	if err != nil {
		h.logger.Warn("flight booking rejected", zap.String("flight_id", req.FlightID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Created(c, b)
}

// Get handles GET /bookings/:type/:id.
func (h *Handler) Get(c *gin.Context) {
	bookingType := c.Param("type")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	b, err := h.svc.Get(c.Request.Context(), bookingType, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, b)
}
