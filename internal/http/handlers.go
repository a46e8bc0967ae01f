package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisadapter "github.com/eveiled/hotel-booking/internal/adapters/redis"
	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/observability"
	"github.com/eveiled/hotel-booking/internal/saga"
)

// BookingHandlers is the reservation-authority edge over the saga service.
type BookingHandlers struct {
	svc    *saga.Service
	idemp  *redisadapter.IdempotencyStore
	logger observability.Logger
}

func NewBookingHandlers(svc *saga.Service, idemp *redisadapter.IdempotencyStore, logger observability.Logger) *BookingHandlers {
	return &BookingHandlers{svc: svc, idemp: idemp, logger: logger}
}

type bookingPayload struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toBookingPayload(b domain.Booking) bookingPayload {
	return bookingPayload{
		ID:        b.ID,
		RoomID:    b.RoomID,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
	}
}

// ownerID reads the authenticated user reference the edge in front of us
// established. The authentication scheme itself is out of scope here.
func ownerID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.Header.Get("X-User-ID"))
}

func (h *BookingHandlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Body)
		return
	}

	userID, err := ownerID(r)
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return
	}

	var req struct {
		RoomID     uuid.UUID `json:"room_id"`
		AutoSelect bool      `json:"auto_select"`
		StartDate  time.Time `json:"start_date"`
		EndDate    time.Time `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := saga.CreateBookingInput{
		RoomID:    req.RoomID,
		UserID:    userID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	var booking domain.Booking
	if req.AutoSelect {
		booking, err = h.svc.CreateBookingWithAutoSelect(r.Context(), in)
	} else {
		booking, err = h.svc.CreateBooking(r.Context(), in)
	}
	if errors.Is(err, domain.ErrNoAvailableRooms) {
		http.Error(w, "no available rooms", http.StatusConflict)
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(toBookingPayload(booking))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, redisadapter.CachedResponse{Status: http.StatusCreated, Body: data})
}

func (h *BookingHandlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerID(r)
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.GetBookingByID(r.Context(), id, userID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookingPayload(booking))
}

func (h *BookingHandlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerID(r)
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return
	}

	bookings, err := h.svc.GetUserBookings(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload := make([]bookingPayload, len(bookings))
	for i, b := range bookings {
		payload[i] = toBookingPayload(b)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (h *BookingHandlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := ownerID(r)
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	err = h.svc.CancelBooking(r.Context(), id, userID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
