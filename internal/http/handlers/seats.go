package handlers

import (
	"net/http"

	"busbooking/internal/domain"

	"github.com/gin-gonic/gin"
)

func seatClassQuery(c *gin.Context) (domain.SeatClass, bool) {
	class, ok := domain.ParseSeatClass(c.Query("class"))
	if !ok {
		respondError(c, http.StatusBadRequest, "validation_error", "class must be REGULAR, ELDER or PREGNANT", nil)
	}
	return class, ok
}

// GET /api/trips/:id/seats?class=&state=
func (h *Handler) ListSeats(c *gin.Context) {
	tripID, ok := idParam(c, "id")
	if !ok {
		return
	}
	class, ok := seatClassQuery(c)
	if !ok {
		return
	}
	state, ok := domain.ParseSeatState(c.Query("state"))
	if !ok {
		respondError(c, http.StatusBadRequest, "validation_error", "state must be AVAILABLE or BOOKED", nil)
		return
	}
	seats, err := h.Seats.ListSeats(c.Request.Context(), tripID, class, state)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, seats)
}

// GET /api/trips/:id/seats/available?class=
func (h *Handler) ListAvailableSeats(c *gin.Context) {
	tripID, ok := idParam(c, "id")
	if !ok {
		return
	}
	class, ok := seatClassQuery(c)
	if !ok {
		return
	}
	seats, err := h.Seats.ListAvailable(c.Request.Context(), tripID, class)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, seats)
}

// GET /api/trips/:id/seats/count
func (h *Handler) CountSeats(c *gin.Context) {
	tripID, ok := idParam(c, "id")
	if !ok {
		return
	}
	counts, err := h.Seats.CountByClass(c.Request.Context(), tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	seatMap, err := h.Seats.SeatMap(c.Request.Context(), tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "seat_map": seatMap})
}

// GET /api/trips/:id/seats/:number
func (h *Handler) GetSeat(c *gin.Context) {
	tripID, ok := idParam(c, "id")
	if !ok {
		return
	}
	seat, err := h.Seats.GetSeat(c.Request.Context(), tripID, c.Param("number"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, seat)
}
