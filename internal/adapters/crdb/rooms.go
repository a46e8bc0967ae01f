package crdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/ledger"
)

// RoomRepository backs the inventory ledger. The hold check-and-set runs as a
// SELECT FOR UPDATE plus UPDATE inside one serializable transaction, so two
// acquires racing on the same room serialize on the row.
type RoomRepository struct {
	repo *Repository
}

func NewRoomRepository(repo *Repository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

var _ ledger.RoomRepository = (*RoomRepository)(nil)

func (r *RoomRepository) WithRoom(ctx context.Context, roomID uuid.UUID, fn func(room *domain.Room) error) error {
	return r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		room, err := scanRoom(tx.QueryRow(ctx, `
			SELECT id, hotel_id, number, available, times_booked, held_until, held_by_request
			FROM rooms WHERE id = $1 FOR UPDATE
		`, roomID))
		if err != nil {
			return err
		}

		if err := fn(&room); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE rooms SET available = $2, times_booked = $3, held_until = $4, held_by_request = $5
			WHERE id = $1
		`, room.ID, room.Available, room.TimesBooked, room.HeldUntil, nullIfEmpty(room.HeldByRequest))
		return err
	})
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := r.repo.pool.Exec(ctx, `
		INSERT INTO rooms (id, hotel_id, number, available, times_booked, held_until, held_by_request)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, room.ID, room.HotelID, room.Number, room.Available, room.TimesBooked, room.HeldUntil, nullIfEmpty(room.HeldByRequest))
	return err
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	return scanRoom(r.repo.pool.QueryRow(ctx, `
		SELECT id, hotel_id, number, available, times_booked, held_until, held_by_request
		FROM rooms WHERE id = $1
	`, roomID))
}

func (r *RoomRepository) ListAvailable(ctx context.Context) ([]domain.Room, error) {
	return r.listRooms(ctx, `
		SELECT id, hotel_id, number, available, times_booked, held_until, held_by_request
		FROM rooms WHERE available = true ORDER BY id ASC
	`)
}

func (r *RoomRepository) ListAvailableByPopularity(ctx context.Context) ([]domain.Room, error) {
	return r.listRooms(ctx, `
		SELECT id, hotel_id, number, available, times_booked, held_until, held_by_request
		FROM rooms WHERE available = true ORDER BY times_booked ASC, id ASC
	`)
}

func (r *RoomRepository) ListUnheld(ctx context.Context, now time.Time) ([]domain.Room, error) {
	return r.listRooms(ctx, `
		SELECT id, hotel_id, number, available, times_booked, held_until, held_by_request
		FROM rooms
		WHERE available = true AND (held_until IS NULL OR held_until < $1)
		ORDER BY times_booked ASC, id ASC
	`, now)
}

func (r *RoomRepository) FindHeldByRequest(ctx context.Context, requestID string) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `SELECT id FROM rooms WHERE held_by_request = $1`, requestID)
}

func (r *RoomRepository) FindExpiredHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `SELECT id FROM rooms WHERE held_until IS NOT NULL AND held_until <= $1`, now)
}

func (r *RoomRepository) listRooms(ctx context.Context, query string, args ...interface{}) ([]domain.Room, error) {
	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *RoomRepository) listIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (domain.Room, error) {
	var room domain.Room
	var heldBy sql.NullString
	err := row.Scan(&room.ID, &room.HotelID, &room.Number, &room.Available, &room.TimesBooked, &room.HeldUntil, &heldBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	room.HeldByRequest = heldBy.String
	return room, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
