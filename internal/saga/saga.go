// Package saga drives a booking through PENDING to CONFIRMED or CANCELLED by
// coordinating with the inventory authority. There is no shared transaction:
// safety comes from the idempotent hold protocol plus compensating releases.
package saga

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/correlation"
	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/observability"
)

// HoldOutcome tags the result of an acquire call. A decline is a business
// outcome, not an error; only Failed represents an infrastructure fault.
type HoldOutcome int

const (
	HoldGranted HoldOutcome = iota
	HoldDeclined
	HoldFailed
)

// Inventory is the gateway to the inventory authority. Implementations must
// reuse the given requestID verbatim on every retry.
type Inventory interface {
	AcquireHold(ctx context.Context, roomID uuid.UUID, requestID string, start, end time.Time) (HoldOutcome, error)
	ReleaseHold(ctx context.Context, roomID uuid.UUID, requestID string) error
	FinalizeHold(ctx context.Context, roomID uuid.UUID) error
	AvailableRoomsByPopularity(ctx context.Context) ([]domain.Room, error)
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, b domain.Booking) error
	// SetBookingStatus persists the new status and records the matching
	// lifecycle event durably in the same transaction.
	SetBookingStatus(ctx context.Context, b domain.Booking) error
	GetBookingForUser(ctx context.Context, bookingID, userID uuid.UUID) (domain.Booking, error)
	ListBookingsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
}

// Auditor records saga transitions out of band. Failures are logged, never
// surfaced to the caller.
type Auditor interface {
	RecordTransition(ctx context.Context, b domain.Booking, correlationID string) error
}

type Service struct {
	bookings  BookingRepository
	inventory Inventory
	audit     Auditor
	clock     clock.Clock
	logger    observability.Logger
}

type Option func(*Service)

// WithAuditor attaches an audit sink for status transitions.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.audit = a }
}

func NewService(bookings BookingRepository, inventory Inventory, clk clock.Clock, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		bookings:  bookings,
		inventory: inventory,
		clock:     clk,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateBookingInput struct {
	RoomID    uuid.UUID
	UserID    uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	// RequestID is the idempotency key for every inventory call this booking
	// triggers. When empty, the ambient correlation id is used; when that is
	// absent too, a fresh one is minted.
	RequestID string
}

// CreateBooking runs the saga to a terminal status. A CANCELLED outcome due
// to unavailability or a gateway fault is still a successful return; only a
// failure to persist the booking itself is an error.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if !in.EndDate.After(in.StartDate) {
		return domain.Booking{}, errors.WithDetail(domain.ErrInvalidInput, "end date must be after start date")
	}

	requestID := in.RequestID
	if requestID == "" {
		requestID = correlation.FromContext(ctx)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	b := domain.NewBooking(in.UserID, in.RoomID, in.StartDate, in.EndDate, requestID, s.clock.Now())
	log := s.logger.
		WithField("correlation_id", correlation.FromContext(ctx)).
		WithField("booking_id", b.ID).
		WithField("room_id", in.RoomID).
		WithField("request_id", requestID)

	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return domain.Booking{}, errors.Wrap(err, "create pending booking")
	}
	log.Info("booking created in PENDING")

	outcome, acquireErr := s.inventory.AcquireHold(ctx, in.RoomID, requestID, in.StartDate, in.EndDate)

	switch outcome {
	case HoldGranted:
		b.Status = domain.BookingConfirmed
		if err := s.bookings.SetBookingStatus(ctx, b); err != nil {
			return domain.Booking{}, errors.Wrap(err, "confirm booking")
		}
		log.Info("booking confirmed")
		observability.BookingsTotal.WithLabelValues("confirmed").Inc()

		// The booking stays CONFIRMED regardless; the counter increment is
		// retried out of band if this call is lost.
		if err := s.inventory.FinalizeHold(ctx, in.RoomID); err != nil {
			log.WithError(err).Warn("finalize hold failed, will be retried out of band")
		}

	case HoldDeclined:
		b.Status = domain.BookingCancelled
		if err := s.bookings.SetBookingStatus(ctx, b); err != nil {
			return domain.Booking{}, errors.Wrap(err, "cancel booking")
		}
		log.Warn("room unavailable, booking cancelled")
		observability.BookingsTotal.WithLabelValues("declined").Inc()

	case HoldFailed:
		log.WithError(acquireErr).Error("acquire hold failed")
		b.Status = domain.BookingCancelled
		if err := s.bookings.SetBookingStatus(ctx, b); err != nil {
			return domain.Booking{}, errors.Wrap(err, "cancel booking")
		}
		// The remote side may have granted the hold before the response was
		// lost; a compensating release covers that ambiguity.
		if err := s.inventory.ReleaseHold(ctx, in.RoomID, requestID); err != nil {
			log.WithError(err).Warn("compensating release failed")
		}
		observability.BookingsTotal.WithLabelValues("failed").Inc()
	}

	s.recordTransition(ctx, b)
	return b, nil
}

// CreateBookingWithAutoSelect books the least-booked available room, ties
// broken by ascending room id, so the choice is reproducible.
func (s *Service) CreateBookingWithAutoSelect(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	rooms, err := s.inventory.AvailableRoomsByPopularity(ctx)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "list recommended rooms")
	}
	if len(rooms) == 0 {
		return domain.Booking{}, domain.ErrNoAvailableRooms
	}
	in.RoomID = rooms[0].ID
	return s.CreateBooking(ctx, in)
}

// CancelBooking is the user-initiated compensating transition. Cancelling an
// already-CANCELLED booking is a harmless replay.
func (s *Service) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) error {
	b, err := s.bookings.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return err
	}

	log := s.logger.
		WithField("correlation_id", correlation.FromContext(ctx)).
		WithField("booking_id", b.ID).
		WithField("request_id", b.RequestID)

	if b.Status == domain.BookingConfirmed {
		// The hold is usually already cleared by finalize; release is a
		// no-op then, so no special-casing here.
		if err := s.inventory.ReleaseHold(ctx, b.RoomID, b.RequestID); err != nil {
			log.WithError(err).Warn("release on cancel failed")
		}
	}

	b.Status = domain.BookingCancelled
	if err := s.bookings.SetBookingStatus(ctx, b); err != nil {
		return errors.Wrap(err, "cancel booking")
	}
	log.Info("booking cancelled by user")
	observability.BookingsTotal.WithLabelValues("user_cancelled").Inc()

	s.recordTransition(ctx, b)
	return nil
}

// GetBookingByID is owner-scoped: a booking belonging to another user reads
// as not found.
func (s *Service) GetBookingByID(ctx context.Context, bookingID, userID uuid.UUID) (domain.Booking, error) {
	return s.bookings.GetBookingForUser(ctx, bookingID, userID)
}

func (s *Service) GetUserBookings(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	return s.bookings.ListBookingsForUser(ctx, userID)
}

func (s *Service) recordTransition(ctx context.Context, b domain.Booking) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordTransition(ctx, b, correlation.FromContext(ctx)); err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("audit write failed")
	}
}
