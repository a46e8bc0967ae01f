package crdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eveiled/hotel-booking/internal/adapters/crdb"
	"github.com/eveiled/hotel-booking/internal/domain"
)

func startCRDB(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, dsn+"/hotel?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE DATABASE IF NOT EXISTS hotel;
		CREATE TABLE IF NOT EXISTS hotel.rooms (
			id UUID PRIMARY KEY,
			hotel_id UUID,
			number TEXT NOT NULL,
			available BOOL NOT NULL DEFAULT true,
			times_booked INT NOT NULL DEFAULT 0,
			held_until TIMESTAMPTZ,
			held_by_request TEXT
		);
		CREATE TABLE IF NOT EXISTS hotel.bookings (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			room_id UUID NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			status TEXT CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED')),
			request_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS hotel.outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT,
			aggregate_id UUID,
			event_type TEXT,
			payload_json BYTES,
			created_at TIMESTAMPTZ DEFAULT now(),
			published_at TIMESTAMPTZ,
			status TEXT,
			dedupe_key TEXT
		);
	`)
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestRoomRepository_HoldCheckAndSet(t *testing.T) {
	ctx := context.Background()
	pool := startCRDB(t, ctx)
	rooms := crdb.NewRoomRepository(crdb.NewRepository(pool))

	roomID := uuid.New()
	err := rooms.CreateRoom(ctx, domain.Room{ID: roomID, HotelID: uuid.New(), Number: "101", Available: true})
	if err != nil {
		t.Fatal(err)
	}

	until := time.Now().Add(49 * time.Hour).UTC().Truncate(time.Microsecond)
	err = rooms.WithRoom(ctx, roomID, func(room *domain.Room) error {
		room.SetHold("req-a", until)
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := rooms.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HeldByRequest != "req-a" {
		t.Errorf("expected holder req-a, got %q", got.HeldByRequest)
	}
	if got.HeldUntil == nil || !got.HeldUntil.Equal(until) {
		t.Errorf("expected held_until %v, got %v", until, got.HeldUntil)
	}

	held, err := rooms.FindHeldByRequest(ctx, "req-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(held) != 1 || held[0] != roomID {
		t.Errorf("expected [%s], got %v", roomID, held)
	}

	// Clearing maps the empty holder back to NULL.
	err = rooms.WithRoom(ctx, roomID, func(room *domain.Room) error {
		room.TimesBooked++
		room.ClearHold()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err = rooms.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HoldPresent() || got.TimesBooked != 1 {
		t.Errorf("expected cleared hold with one booking, got %+v", got)
	}

	err = rooms.WithRoom(ctx, uuid.New(), func(room *domain.Room) error { return nil })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown room, got %v", err)
	}
}

func TestRoomRepository_PopularityOrdering(t *testing.T) {
	ctx := context.Background()
	pool := startCRDB(t, ctx)
	rooms := crdb.NewRoomRepository(crdb.NewRepository(pool))

	id10 := uuid.MustParse("00000000-0000-0000-0000-000000000010")
	id11 := uuid.MustParse("00000000-0000-0000-0000-000000000011")
	id12 := uuid.MustParse("00000000-0000-0000-0000-000000000012")

	for _, r := range []domain.Room{
		{ID: id10, Number: "10", Available: true, TimesBooked: 5},
		{ID: id11, Number: "11", Available: true, TimesBooked: 3},
		{ID: id12, Number: "12", Available: true, TimesBooked: 3},
	} {
		if err := rooms.CreateRoom(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	ordered, err := rooms.ListAvailableByPopularity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ordered) != 3 || ordered[0].ID != id11 || ordered[1].ID != id12 || ordered[2].ID != id10 {
		t.Errorf("unexpected order: %+v", ordered)
	}
}

func TestBookingRepository_StatusAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := startCRDB(t, ctx)
	repo := crdb.NewRepository(pool)
	bookings := crdb.NewBookingRepository(repo)

	userID := uuid.New()
	b := domain.Booking{
		ID:        uuid.New(),
		UserID:    userID,
		RoomID:    uuid.New(),
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(72 * time.Hour),
		Status:    domain.BookingPending,
		RequestID: "req-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := bookings.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	b.Status = domain.BookingConfirmed
	if err := bookings.SetBookingStatus(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := bookings.GetBookingForUser(ctx, b.ID, userID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.BookingConfirmed || got.RequestID != "req-1" {
		t.Errorf("unexpected booking: %+v", got)
	}

	if _, err := bookings.GetBookingForUser(ctx, b.ID, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].EventType != "booking.confirmed" {
		t.Errorf("expected one booking.confirmed outbox row, got %+v", records)
	}

	if err := repo.MarkPublished(ctx, records[0].ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty outbox after publish, got %+v", records)
	}
}
