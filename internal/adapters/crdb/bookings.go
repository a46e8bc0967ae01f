package crdb

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/saga"
)

type BookingRepository struct {
	repo *Repository
}

func NewBookingRepository(repo *Repository) *BookingRepository {
	return &BookingRepository{repo: repo}
}

var _ saga.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.repo.pool.Exec(ctx, `
		INSERT INTO bookings (id, user_id, room_id, start_date, end_date, status, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.UserID, b.RoomID, b.StartDate, b.EndDate, b.Status, b.RequestID, b.CreatedAt)
	return err
}

// SetBookingStatus writes the status and the matching lifecycle event row in
// one transaction, so the event is exactly as durable as the status itself.
func (r *BookingRepository) SetBookingStatus(ctx context.Context, b domain.Booking) error {
	return r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2 WHERE id = $1
		`, b.ID, b.Status)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		payload, err := json.Marshal(map[string]interface{}{
			"booking_id": b.ID,
			"room_id":    b.RoomID,
			"request_id": b.RequestID,
			"status":     b.Status,
		})
		if err != nil {
			return errors.Wrap(err, "marshal booking event")
		}
		return r.repo.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     "booking." + strings.ToLower(string(b.Status)),
			Payload:       payload,
			DedupeKey:     b.ID.String() + ":" + string(b.Status),
		})
	})
}

func (r *BookingRepository) GetBookingForUser(ctx context.Context, bookingID, userID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.repo.pool.QueryRow(ctx, `
		SELECT id, user_id, room_id, start_date, end_date, status, request_id, created_at
		FROM bookings WHERE id = $1 AND user_id = $2
	`, bookingID, userID).Scan(&b.ID, &b.UserID, &b.RoomID, &b.StartDate, &b.EndDate, &b.Status, &b.RequestID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) ListBookingsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.repo.pool.Query(ctx, `
		SELECT id, user_id, room_id, start_date, end_date, status, request_id, created_at
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.RoomID, &b.StartDate, &b.EndDate, &b.Status, &b.RequestID, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
