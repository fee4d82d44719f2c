package api

import (
	stdhttp "net/http"

	intconfig "busbooking/internal/config"
	"busbooking/internal/domain"
	h "busbooking/internal/http/handlers"
	"busbooking/internal/http/middleware"
	"busbooking/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(env intconfig.Env, hd *h.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger.Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":      "route not found",
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": middleware.GetRequestID(c),
		})
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(hd.Auth))
	{
		api.GET("/health", hd.Health)
		api.GET("/routes", h.Routes)

		auth := api.Group("/auth")
		auth.POST("/register", hd.Register)
		auth.POST("/login", hd.Login)

		trips := api.Group("/trips")
		trips.GET("", hd.ListTrips)
		trips.GET("/search", hd.SearchTrips)
		trips.GET("/:id", hd.GetTrip)
		trips.GET("/:id/bookings", hd.ListTripBookings)
		trips.GET("/:id/seats", hd.ListSeats)
		trips.GET("/:id/seats/available", hd.ListAvailableSeats)
		trips.GET("/:id/seats/count", hd.CountSeats)
		trips.GET("/:id/seats/:number", hd.GetSeat)

		admin := trips.Group("", middleware.RequireRoles(domain.RoleAdmin))
		admin.POST("", hd.CreateTrip)
		admin.PUT("/:id", hd.UpdateTrip)
		admin.DELETE("/:id", hd.DeleteTrip)

		bookings := api.Group("/bookings")
		bookings.POST("", hd.CreateBooking)
		bookings.GET("", hd.ListBookings)
		bookings.GET("/user/:riderId", hd.ListRiderBookings)
		bookings.GET("/:id", hd.GetBooking)
		bookings.PUT("/:id/cancel", hd.CancelBooking)
		bookings.GET("/:id/e-ticket", hd.ETicket)
	}

	h.SetRouter(r)
	return r
}
