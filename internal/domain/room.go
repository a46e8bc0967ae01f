package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is the inventory-authority side. HeldUntil and HeldByRequest are set
// together or both empty; they describe the single transient hold a room can
// carry. TimesBooked only ever grows, and only through finalize.
type Room struct {
	ID            uuid.UUID
	HotelID       uuid.UUID
	Number        string
	Available     bool
	TimesBooked   int
	HeldUntil     *time.Time
	HeldByRequest string
}

// HoldActive reports whether a hold exists and has not yet expired.
func (r Room) HoldActive(now time.Time) bool {
	return r.HeldUntil != nil && r.HeldUntil.After(now)
}

// HoldPresent reports whether hold fields are set, expired or not.
// Finalize keys on this, not on HoldActive.
func (r Room) HoldPresent() bool {
	return r.HeldUntil != nil && r.HeldByRequest != ""
}

func (r *Room) SetHold(requestID string, until time.Time) {
	r.HeldUntil = &until
	r.HeldByRequest = requestID
}

func (r *Room) ClearHold() {
	r.HeldUntil = nil
	r.HeldByRequest = ""
}
