package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/ledger"
	"github.com/eveiled/hotel-booking/internal/observability"
)

// RoomHandlers is the inventory-authority edge over the room ledger.
type RoomHandlers struct {
	ledger *ledger.Ledger
	logger observability.Logger
}

func NewRoomHandlers(l *ledger.Ledger, logger observability.Logger) *RoomHandlers {
	return &RoomHandlers{ledger: l, logger: logger}
}

type roomPayload struct {
	ID          uuid.UUID `json:"id"`
	HotelID     uuid.UUID `json:"hotel_id"`
	Number      string    `json:"number"`
	Available   bool      `json:"available"`
	TimesBooked int       `json:"times_booked"`
}

func toRoomPayload(r domain.Room) roomPayload {
	return roomPayload{
		ID:          r.ID,
		HotelID:     r.HotelID,
		Number:      r.Number,
		Available:   r.Available,
		TimesBooked: r.TimesBooked,
	}
}

func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HotelID   uuid.UUID `json:"hotel_id"`
		Number    string    `json:"number"`
		Available *bool     `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	room, err := h.ledger.CreateRoom(r.Context(), domain.Room{
		HotelID:   req.HotelID,
		Number:    req.Number,
		Available: available,
	})
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toRoomPayload(room))
}

func (h *RoomHandlers) AcquireHold(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	var req struct {
		RequestID string    `json:"request_id"`
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	granted, err := h.ledger.AcquireHold(r.Context(), roomID, req.RequestID, req.EndDate)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
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

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"granted": granted})
}

func (h *RoomHandlers) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	err = h.ledger.ReleaseHold(r.Context(), roomID, r.URL.Query().Get("request_id"))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandlers) FinalizeHold(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	err = h.ledger.FinalizeHold(r.Context(), roomID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandlers) ReleaseByRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")

	released, err := h.ledger.ReleaseAllForRequest(r.Context(), requestID)
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, "missing request_id", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"released": released})
}

func (h *RoomHandlers) ListAvailable(w http.ResponseWriter, r *http.Request) {
	h.writeRooms(w, r, h.ledger.AvailableRooms)
}

func (h *RoomHandlers) ListRecommended(w http.ResponseWriter, r *http.Request) {
	h.writeRooms(w, r, h.ledger.RecommendedRooms)
}

func (h *RoomHandlers) ListUnheld(w http.ResponseWriter, r *http.Request) {
	h.writeRooms(w, r, h.ledger.UnheldRooms)
}

func (h *RoomHandlers) writeRooms(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]domain.Room, error)) {
	rooms, err := list(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payload := make([]roomPayload, len(rooms))
	for i, room := range rooms {
		payload[i] = toRoomPayload(room)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
