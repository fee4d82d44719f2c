package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/http/middleware"
	"busbooking/internal/services"
	"busbooking/internal/utils"

	"github.com/gin-gonic/gin"
)

type createBookingRequest struct {
	TripID     domain.ID  `json:"trip_id"`
	RiderID    domain.ID  `json:"rider_id"`
	SeatNumber flexString `json:"seat_number"`
	BookedAt   *time.Time `json:"booked_at"`
	Amount     *int64     `json:"amount"`
	Status     string     `json:"status"`
}

// POST /api/bookings
//
// An authenticated rider always books for themselves; admins and anonymous
// callers name the rider in the body.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if rc, ok := middleware.GetAuth(c); ok && rc.Role != domain.RoleAdmin {
		req.RiderID = rc.UserID
	}

	seat := utils.NormalizeSeatNumber(string(req.SeatNumber))
	var missing []string
	if req.TripID <= 0 {
		missing = append(missing, "trip_id")
	}
	if req.RiderID <= 0 {
		missing = append(missing, "rider_id")
	}
	if seat == "" {
		missing = append(missing, "seat_number")
	}
	if len(missing) > 0 {
		respondError(c, http.StatusBadRequest, "validation_error",
			"missing required fields: "+strings.Join(missing, ", "), gin.H{"missing": missing})
		return
	}

	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		respondError(c, http.StatusBadRequest, "validation_error", "status must be CONFIRMED", nil)
		return
	}

	booking, err := h.Engine.Reserve(c.Request.Context(), services.ReserveInput{
		TripID:     req.TripID,
		SeatNumber: seat,
		RiderID:    req.RiderID,
		OccurredAt: req.BookedAt,
		Amount:     req.Amount,
		Status:     status,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/bookings
func (h *Handler) ListBookings(c *gin.Context) {
	views, err := h.Engine.ListAll(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/bookings/user/:riderId
func (h *Handler) ListRiderBookings(c *gin.Context) {
	riderID, ok := idParam(c, "riderId")
	if !ok || !ownsBooking(c, riderID) {
		return
	}
	views, err := h.Engine.ListByRider(c.Request.Context(), riderID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/trips/:id/bookings
func (h *Handler) ListTripBookings(c *gin.Context) {
	tripID, ok := idParam(c, "id")
	if !ok {
		return
	}
	views, err := h.Engine.ListByTrip(c.Request.Context(), tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// ownsBooking lets admins and anonymous callers through; an authenticated
// rider may only touch their own bookings.
func ownsBooking(c *gin.Context, riderID domain.ID) bool {
	rc, ok := middleware.GetAuth(c)
	if !ok || rc.Role == domain.RoleAdmin || rc.UserID == riderID {
		return true
	}
	respondError(c, http.StatusForbidden, "forbidden", "booking belongs to another rider", nil)
	return false
}

// bookingForCaller loads the booking and applies ownsBooking.
func (h *Handler) bookingForCaller(c *gin.Context) (models.BookingView, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return models.BookingView{}, false
	}
	view, err := h.Engine.GetBooking(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return models.BookingView{}, false
	}
	return view, ownsBooking(c, view.RiderID)
}

// GET /api/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	view, ok := h.bookingForCaller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// PUT /api/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	view, ok := h.bookingForCaller(c)
	if !ok {
		return
	}
	id := view.ID
	found, err := h.Engine.Release(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "not_found", fmt.Sprintf("booking %d not found", id), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "booking cancelled", "booking_id": id})
}

// GET /api/bookings/:id/e-ticket
func (h *Handler) ETicket(c *gin.Context) {
	view, ok := h.bookingForCaller(c)
	if !ok {
		return
	}
	pdf, filename, err := h.Tickets.ETicket(c.Request.Context(), view.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
