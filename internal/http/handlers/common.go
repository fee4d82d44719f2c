package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/events"
	"busbooking/internal/http/middleware"
	"busbooking/internal/repositories"
	"busbooking/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler carries the services the HTTP surface calls into.
type Handler struct {
	Store   repositories.Store
	Trips   services.TripService
	Seats   services.SeatService
	Engine  *services.ReservationEngine
	Auth    services.AuthService
	Tickets services.TicketService
}

// New wires every service over one store.
func New(store repositories.Store, publisher events.Publisher, auth services.AuthService, lockTimeout time.Duration) *Handler {
	engine := services.NewReservationEngine(store, publisher, lockTimeout)
	auth.Store = store
	return &Handler{
		Store:   store,
		Trips:   services.TripService{Store: store, LockTimeout: lockTimeout},
		Seats:   services.SeatService{Store: store},
		Engine:  engine,
		Auth:    auth,
		Tickets: services.TicketService{Engine: engine},
	}
}

// RespondError sends a plain error payload with request_id included.
func RespondError(c *gin.Context, status int, message string, err error) {
	payload := gin.H{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	}
	if err != nil {
		payload["details"] = err.Error()
	}
	c.JSON(status, payload)
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		RespondError(c, http.StatusBadRequest, "request body is empty", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid payload", err)
		return false
	}
	return true
}

// idParam parses a positive int64 path parameter.
func idParam(c *gin.Context, name string) (domain.ID, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// flexString accepts a JSON string or number, so seat 12 and "12" agree.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
