package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
)

// Deps carries the handlers and route-level middleware.
type Deps struct {
	Health    echo.HandlerFunc
	Catalog   *handler.CatalogHandler
	Bookings  *handler.BookingHandler
	Cache     echo.MiddlewareFunc // applied to catalogue reads
	RateLimit echo.MiddlewareFunc // applied to booking writes
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// RegisterRoutes registers every route on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	api := e.Group("/api")
	if d.Catalog != nil {
		registerCatalog(api, d.Catalog, orPass(d.Cache))
	}
	if d.Bookings != nil {
		registerBookings(api, d.Bookings, orPass(d.RateLimit))
	}
}

// registerCatalog exposes movies, theaters and shows. Reads go through the
// response cache; the handler drops it after each write.
func registerCatalog(api *echo.Group, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	movies := api.Group("/movies")
	movies.GET("", h.ListMovies, cache)
	movies.GET("/:id", h.GetMovie, cache)
	movies.POST("", h.CreateMovie)
	movies.DELETE("/:id", h.DeleteMovie)

	theaters := api.Group("/theaters")
	theaters.GET("", h.ListTheaters, cache)
	theaters.GET("/:id", h.GetTheater, cache)
	theaters.GET("/:id/halls/:hall/layout", h.HallLayout, cache)
	theaters.POST("", h.CreateTheater)
	theaters.POST("/:id/halls", h.AddHall)
	theaters.DELETE("/:id", h.DeleteTheater)

	shows := api.Group("/shows")
	shows.GET("", h.ListShows, cache)
	shows.GET("/:id", h.GetShow, cache)
	shows.POST("", h.CreateShow)
	shows.DELETE("/:id", h.DeleteShow)
}

// registerBookings exposes the reservation engine. Nothing here is cached:
// availability must reflect the latest committed claim.
func registerBookings(api *echo.Group, h *handler.BookingHandler, limit echo.MiddlewareFunc) {
	b := api.Group("/bookings")
	b.GET("", h.List)
	b.POST("", h.Reserve, limit)
	b.POST("/group", h.ReserveGroup, limit)
	b.GET("/show/:showId/seats", h.SeatMap)
	b.GET("/:id", h.Get)
	b.PUT("/:id/status", h.SetStatus, limit)
	b.PUT("/:id/payment", h.SetPayment, limit)
	b.DELETE("/:id", h.Cancel, limit)

	api.POST("/admin/sweep", h.Sweep)
}
