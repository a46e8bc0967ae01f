package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eveiled/hotel-booking/internal/observability"
	"github.com/eveiled/hotel-booking/internal/rateLimit"
)

// SetupBookingRouter wires the reservation-authority API.
func SetupBookingRouter(h *BookingHandlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Group(func(r chi.Router) {
		r.Use(IdempotencyKeyRequired)
		r.Post("/v1/bookings", h.CreateBooking)
	})
	r.Get("/v1/bookings", h.ListBookings)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Delete("/v1/bookings/{id}", h.CancelBooking)

	r.Get("/v1/healthz", Healthz)
	r.Get("/v1/readyz", Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// SetupInventoryRouter wires the inventory-authority API the gateway calls.
func SetupInventoryRouter(h *RoomHandlers, logger observability.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Post("/v1/rooms", h.CreateRoom)
	r.Get("/v1/rooms/available", h.ListAvailable)
	r.Get("/v1/rooms/recommend", h.ListRecommended)
	r.Get("/v1/rooms/free", h.ListUnheld)
	r.Post("/v1/rooms/release-by-request", h.ReleaseByRequest)
	r.Post("/v1/rooms/{id}/hold", h.AcquireHold)
	r.Post("/v1/rooms/{id}/release", h.ReleaseHold)
	r.Post("/v1/rooms/{id}/finalize", h.FinalizeHold)

	r.Get("/v1/healthz", Healthz)
	r.Get("/v1/readyz", Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
