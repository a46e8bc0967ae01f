// Package ledger owns room hold state: the idempotent acquire / release /
// finalize protocol the booking saga drives through the inventory gateway.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/observability"
)

// RoomRepository is the storage port. WithRoom must load the room, run fn and
// persist the mutated room as a single atomic read-modify-write on that row,
// so concurrent acquires on the same room serialize at the storage layer.
type RoomRepository interface {
	WithRoom(ctx context.Context, roomID uuid.UUID, fn func(room *domain.Room) error) error
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error)
	ListAvailable(ctx context.Context) ([]domain.Room, error)
	// ListAvailableByPopularity orders by ascending times_booked, ties broken
	// by ascending room id.
	ListAvailableByPopularity(ctx context.Context) ([]domain.Room, error)
	ListUnheld(ctx context.Context, now time.Time) ([]domain.Room, error)
	FindHeldByRequest(ctx context.Context, requestID string) ([]uuid.UUID, error)
	FindExpiredHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

const DefaultHoldGrace = time.Hour

type Ledger struct {
	rooms  RoomRepository
	clock  clock.Clock
	logger observability.Logger
	grace  time.Duration
}

type Option func(*Ledger)

// WithHoldGrace overrides the buffer added past a booking's end date.
func WithHoldGrace(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.grace = d
		}
	}
}

func New(rooms RoomRepository, clk clock.Clock, logger observability.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		rooms:  rooms,
		clock:  clk,
		logger: logger,
		grace:  DefaultHoldGrace,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AcquireHold grants a leased hold on the room to requestID, ending at
// endDate plus the grace buffer. A replay with the holding requestID is
// granted again without touching the hold. A different requestID is declined
// while the hold is active. Returns domain.ErrNotFound for an unknown room.
func (l *Ledger) AcquireHold(ctx context.Context, roomID uuid.UUID, requestID string, endDate time.Time) (bool, error) {
	if requestID == "" {
		return false, domain.ErrInvalidInput
	}

	log := l.logger.WithField("room_id", roomID).WithField("request_id", requestID)
	now := l.clock.Now()
	granted := false

	err := l.rooms.WithRoom(ctx, roomID, func(room *domain.Room) error {
		if !room.Available {
			log.Warn("room is administratively unavailable")
			return nil
		}
		if room.HoldActive(now) {
			if room.HeldByRequest == requestID {
				log.Info("room already held by this request, idempotent replay")
				granted = true
				return nil
			}
			log.WithField("holder", room.HeldByRequest).Warn("room held by a different request")
			return nil
		}
		room.SetHold(requestID, endDate.Add(l.grace))
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if granted {
		observability.HoldAcquireTotal.WithLabelValues("granted").Inc()
		log.Info("hold granted")
	} else {
		observability.HoldAcquireTotal.WithLabelValues("declined").Inc()
	}
	return granted, nil
}

// ReleaseHold clears the hold when requestID is the current holder. A
// mismatch is a no-op: the hold may belong to a newer request and must not be
// disturbed by a stale release.
func (l *Ledger) ReleaseHold(ctx context.Context, roomID uuid.UUID, requestID string) error {
	log := l.logger.WithField("room_id", roomID).WithField("request_id", requestID)

	return l.rooms.WithRoom(ctx, roomID, func(room *domain.Room) error {
		if room.HeldByRequest != requestID {
			log.WithField("holder", room.HeldByRequest).Warn("release request does not match holder, ignoring")
			return nil
		}
		room.ClearHold()
		log.Info("hold released")
		return nil
	})
}

// FinalizeHold converts whatever hold exists into a permanent booking-count
// increment and clears the hold fields. With no hold present it is a no-op
// replay. It is keyed by room only; the orchestrator calls it immediately
// after its own successful acquire.
//
// TODO: key finalize by (roomID, requestID) so a stale finalize cannot
// swallow a newer saga's hold; see the release mismatch guard above.
func (l *Ledger) FinalizeHold(ctx context.Context, roomID uuid.UUID) error {
	log := l.logger.WithField("room_id", roomID)

	return l.rooms.WithRoom(ctx, roomID, func(room *domain.Room) error {
		if !room.HoldPresent() {
			log.Info("no hold present, booking already finalized")
			return nil
		}
		room.TimesBooked++
		room.ClearHold()
		log.WithField("times_booked", room.TimesBooked).Info("hold finalized")
		return nil
	})
}

// ReleaseAllForRequest is the compensating sweep used by out-of-band
// housekeeping after a saga crash: every room held by requestID is cleared.
func (l *Ledger) ReleaseAllForRequest(ctx context.Context, requestID string) (int, error) {
	if requestID == "" {
		return 0, domain.ErrInvalidInput
	}

	roomIDs, err := l.rooms.FindHeldByRequest(ctx, requestID)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range roomIDs {
		if err := l.ReleaseHold(ctx, id, requestID); err != nil {
			return released, err
		}
		released++
	}
	l.logger.WithField("request_id", requestID).WithField("released", released).Info("released all holds for request")
	return released, nil
}

// SweepExpired clears holds whose lease has lapsed. Acquire already treats an
// expired hold as free, so this is housekeeping that keeps the unheld-room
// listing honest.
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	now := l.clock.Now()
	roomIDs, err := l.rooms.FindExpiredHolds(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range roomIDs {
		err := l.rooms.WithRoom(ctx, id, func(room *domain.Room) error {
			// Re-check under the row lock; the hold may have been refreshed.
			if room.HeldUntil == nil || room.HeldUntil.After(now) {
				return nil
			}
			room.ClearHold()
			swept++
			return nil
		})
		if err != nil {
			return swept, err
		}
	}
	if swept > 0 {
		observability.HoldsSwept.Add(float64(swept))
		l.logger.WithField("swept", swept).Info("cleared expired holds")
	}
	return swept, nil
}

func (l *Ledger) CreateRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	if room.Number == "" {
		return domain.Room{}, domain.ErrInvalidInput
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if err := l.rooms.CreateRoom(ctx, room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (l *Ledger) GetRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	return l.rooms.GetRoom(ctx, roomID)
}

func (l *Ledger) AvailableRooms(ctx context.Context) ([]domain.Room, error) {
	return l.rooms.ListAvailable(ctx)
}

// RecommendedRooms backs auto-select: available rooms, least-booked first.
func (l *Ledger) RecommendedRooms(ctx context.Context) ([]domain.Room, error) {
	return l.rooms.ListAvailableByPopularity(ctx)
}

// UnheldRooms lists available rooms carrying no active hold.
func (l *Ledger) UnheldRooms(ctx context.Context) ([]domain.Room, error) {
	return l.rooms.ListUnheld(ctx, l.clock.Now())
}
