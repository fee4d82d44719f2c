package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	intconfig "busbooking/internal/config"
	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	h "busbooking/internal/http/handlers"
	"busbooking/internal/repositories/memory"
	"busbooking/internal/services"

	"github.com/gin-gonic/gin"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	auth   services.AuthService
	admin  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.AuthService{Secret: []byte("test-secret"), TTL: time.Hour}
	hd := h.New(memory.New(), nil, auth, time.Second)
	admin, err := hd.Auth.Issue(1, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return &testAPI{
		t:      t,
		router: NewRouter(intconfig.Env{CORSAllowedOrigins: []string{"*"}}, hd),
		auth:   hd.Auth,
		admin:  admin,
	}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func (a *testAPI) createTrip(seats int) models.Trip {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/trips", a.admin, gin.H{
		"name": "Coastal Express", "route": "Mumbai - Goa", "departure_date": "2026-03-01",
		"departure_time": "07:30", "arrival_time": "18:00", "total_seats": seats, "price": 1500,
	})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("create trip: %d %s", w.Code, w.Body.String())
	}
	return decode[models.Trip](a.t, w)
}

func TestCreateTripRequiresAdmin(t *testing.T) {
	srv := newTestAPI(t)
	rider, _ := srv.auth.Issue(9, domain.RoleUser)

	if w := srv.do(http.MethodPost, "/api/trips", "", gin.H{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: expected 401, got %d", w.Code)
	}
	if w := srv.do(http.MethodPost, "/api/trips", rider, gin.H{}); w.Code != http.StatusForbidden {
		t.Fatalf("rider create: expected 403, got %d", w.Code)
	}
	srv.createTrip(3)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(3)

	w := srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 5, "seat_number": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", w.Code, w.Body.String())
	}
	booking := decode[models.Booking](t, w)
	if booking.SeatNumber != "2" || booking.Amount != 1500 || booking.Status != domain.BookingConfirmed {
		t.Fatalf("unexpected booking %+v", booking)
	}

	w = srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 6, "seat_number": "2"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double booking: expected 400, got %d", w.Code)
	}
	if body := decode[h.ErrorResponse](t, w); body.Code != "conflict" || body.RequestID == "" {
		t.Fatalf("unexpected error body %+v", body)
	}

	w = srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID), "", nil)
	if got := decode[models.Trip](t, w); got.AvailableSeats != 2 {
		t.Fatalf("expected 2 available, got %d", got.AvailableSeats)
	}

	path := "/api/bookings/" + itoa(booking.ID) + "/cancel"
	for i := 0; i < 2; i++ {
		if w := srv.do(http.MethodPut, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("cancel #%d: %d %s", i+1, w.Code, w.Body.String())
		}
	}
	w = srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID), "", nil)
	if got := decode[models.Trip](t, w); got.AvailableSeats != 3 {
		t.Fatalf("expected 3 available after cancel, got %d", got.AvailableSeats)
	}

	if w := srv.do(http.MethodPut, "/api/bookings/999/cancel", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown: expected 404, got %d", w.Code)
	}

	w = srv.do(http.MethodGet, "/api/bookings/user/5", "", nil)
	views := decode[[]models.BookingView](t, w)
	if len(views) != 1 || views[0].Trip == nil || views[0].Status != domain.BookingCancelled {
		t.Fatalf("unexpected rider bookings %+v", views)
	}
}

func TestCreateBookingErrors(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(3)

	w := srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", w.Code)
	}

	w = srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 1, "seat_number": "99"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown seat: expected 404, got %d", w.Code)
	}

	w = srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": 404, "rider_id": 1, "seat_number": "1"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown trip: expected 404, got %d", w.Code)
	}

	w = srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 1, "seat_number": "1", "status": "CANCELLED"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cancelled status: expected 400, got %d", w.Code)
	}
}

func TestAuthenticatedRiderBooksForSelf(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(2)

	w := srv.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ravi", "email": "ravi@example.com", "password": "secret1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w = srv.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ravi@example.com", "password": "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	login := decode[struct {
		Token string            `json:"token"`
		User  models.PublicUser `json:"user"`
	}](t, w)

	w = srv.do(http.MethodPost, "/api/bookings", login.Token, gin.H{"trip_id": trip.ID, "rider_id": 777, "seat_number": "1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", w.Code, w.Body.String())
	}
	if b := decode[models.Booking](t, w); b.RiderID != login.User.ID {
		t.Fatalf("rider should come from token: got %d want %d", b.RiderID, login.User.ID)
	}

	if w := srv.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ravi@example.com", "password": "nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestSeatEndpoints(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(4)
	srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 1, "seat_number": "3"})

	w := srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID)+"/seats/available", "", nil)
	if seats := decode[[]models.Seat](t, w); len(seats) != 3 {
		t.Fatalf("expected 3 available seats, got %d", len(seats))
	}
	w = srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID)+"/seats?state=booked", "", nil)
	if seats := decode[[]models.Seat](t, w); len(seats) != 1 || seats[0].SeatNumber != "3" {
		t.Fatalf("unexpected booked seats %+v", seats)
	}
	if w := srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID)+"/seats?class=vip", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad class: expected 400, got %d", w.Code)
	}
	if w := srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID)+"/seats/count", "", nil); w.Code != http.StatusOK {
		t.Fatalf("count: %d", w.Code)
	}
	if w := srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID)+"/seats/9", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown seat: expected 404, got %d", w.Code)
	}
}

func TestETicketAndHealth(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(1)
	w := srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 1, "seat_number": "1"})
	booking := decode[models.Booking](t, w)

	w = srv.do(http.MethodGet, "/api/bookings/"+itoa(booking.ID)+"/e-ticket", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("e-ticket: %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	w = srv.do(http.MethodGet, "/api/health", "", nil)
	health := decode[map[string]any](t, w)
	if w.Code != http.StatusOK || health["status"] != "ok" || health["anomalies"] != float64(0) {
		t.Fatalf("unexpected health %v", health)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestSeededAdminManagesCatalog(t *testing.T) {
	srv := newTestAPI(t)
	_, created, err := srv.auth.EnsureAdmin(context.Background(), services.RegisterInput{
		Name: "Ops", Email: "ops@example.com", Password: "admin-pass",
	})
	if err != nil || !created {
		t.Fatalf("seed admin: created=%v err=%v", created, err)
	}

	w := srv.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ops@example.com", "password": "admin-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("admin login: %d %s", w.Code, w.Body.String())
	}
	login := decode[struct {
		Token string `json:"token"`
	}](t, w)

	w = srv.do(http.MethodPost, "/api/trips", login.Token, gin.H{
		"name": "Night Rider", "route": "Pune - Goa", "departure_date": "2026-04-01",
		"departure_time": "21:00", "arrival_time": "07:00", "total_seats": 2, "price": 900,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create trip: %d %s", w.Code, w.Body.String())
	}
	trip := decode[models.Trip](t, w)

	w = srv.do(http.MethodPost, "/api/bookings", "", gin.H{"trip_id": trip.ID, "rider_id": 3, "seat_number": "1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve on seeded trip: %d %s", w.Code, w.Body.String())
	}
}

func TestRiderCannotTouchAnotherRidersBooking(t *testing.T) {
	srv := newTestAPI(t)
	trip := srv.createTrip(2)
	owner, _ := srv.auth.Issue(5, domain.RoleUser)
	stranger, _ := srv.auth.Issue(6, domain.RoleUser)

	w := srv.do(http.MethodPost, "/api/bookings", owner, gin.H{"trip_id": trip.ID, "seat_number": "1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", w.Code, w.Body.String())
	}
	booking := decode[models.Booking](t, w)
	base := "/api/bookings/" + itoa(booking.ID)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, base},
		{http.MethodPut, base + "/cancel"},
		{http.MethodGet, base + "/e-ticket"},
		{http.MethodGet, "/api/bookings/user/5"},
	} {
		if w := srv.do(tc.method, tc.path, stranger, nil); w.Code != http.StatusForbidden {
			t.Fatalf("%s %s as stranger: expected 403, got %d", tc.method, tc.path, w.Code)
		}
	}

	w = srv.do(http.MethodGet, "/api/trips/"+itoa(trip.ID), "", nil)
	if got := decode[models.Trip](t, w); got.AvailableSeats != 1 {
		t.Fatalf("stranger cancel must not free the seat, available=%d", got.AvailableSeats)
	}

	if w := srv.do(http.MethodPut, base+"/cancel", owner, nil); w.Code != http.StatusOK {
		t.Fatalf("owner cancel: %d %s", w.Code, w.Body.String())
	}
	if w := srv.do(http.MethodGet, base, srv.admin, nil); w.Code != http.StatusOK {
		t.Fatalf("admin read: %d", w.Code)
	}
}
