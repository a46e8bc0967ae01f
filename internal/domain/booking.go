package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is the reservation-authority side of the saga. RequestID is the
// idempotency key shared with every inventory call made on this booking's
// behalf; it never changes after creation.
type Booking struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	RoomID    uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Status    BookingStatus
	RequestID string
	CreatedAt time.Time
}

func NewBooking(userID, roomID uuid.UUID, start, end time.Time, requestID string, now time.Time) Booking {
	return Booking{
		ID:        uuid.New(),
		UserID:    userID,
		RoomID:    roomID,
		StartDate: start,
		EndDate:   end,
		Status:    BookingPending,
		RequestID: requestID,
		CreatedAt: now,
	}
}

// Terminal reports whether the booking can no longer transition automatically.
func (b Booking) Terminal() bool {
	return b.Status == BookingConfirmed || b.Status == BookingCancelled
}
