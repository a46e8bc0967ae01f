package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eveiled/hotel-booking/internal/adapters/crdb"
	mongoadapter "github.com/eveiled/hotel-booking/internal/adapters/mongo"
	redisadapter "github.com/eveiled/hotel-booking/internal/adapters/redis"
	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/gateway"
	httphandler "github.com/eveiled/hotel-booking/internal/http"
	"github.com/eveiled/hotel-booking/internal/ledger"
	"github.com/eveiled/hotel-booking/internal/observability"
	"github.com/eveiled/hotel-booking/internal/rateLimit"
	"github.com/eveiled/hotel-booking/internal/saga"
)

func startStack(t *testing.T, ctx context.Context) (*pgxpool.Pool, *redisclient.Client, *mongo.Database) {
	t.Helper()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
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
	t.Cleanup(func() { crdbContainer.Terminate(ctx) })

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoContainer.Terminate(ctx) })

	dsn, err := crdbContainer.Endpoint(ctx, "postgresql")
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

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	redisCli := redisclient.NewClient(&redisclient.Options{Addr: redisHost + ":" + redisPort.Port()})

	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoHost+":"+mongoPort.Port()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoClient.Disconnect(ctx) })

	return pool, redisCli, mongoClient.Database("hotel")
}

func TestIntegration_BookingSaga(t *testing.T) {
	ctx := context.Background()
	pool, redisCli, mongoDB := startStack(t, ctx)
	logger := observability.NewLogger()

	// Inventory authority.
	repo := crdb.NewRepository(pool)
	rooms := crdb.NewRoomRepository(repo)
	l := ledger.New(rooms, clock.NewSystem(), logger)
	invSrv := httptest.NewServer(httphandler.SetupInventoryRouter(httphandler.NewRoomHandlers(l, logger), logger))
	defer invSrv.Close()

	// Booking authority, talking to the inventory over HTTP.
	bookings := crdb.NewBookingRepository(repo)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)
	idemp := redisadapter.NewIdempotencyStore(redisCli, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCli)
	inventory := gateway.NewClient(invSrv.URL, logger)
	svc := saga.NewService(bookings, inventory, clock.NewSystem(), logger, saga.WithAuditor(audit))
	apiSrv := httptest.NewServer(httphandler.SetupBookingRouter(httphandler.NewBookingHandlers(svc, idemp, logger), logger, rl))
	defer apiSrv.Close()

	createRoom := func(number string) uuid.UUID {
		body, _ := json.Marshal(map[string]interface{}{"hotel_id": uuid.New().String(), "number": number})
		resp, err := http.Post(invSrv.URL+"/v1/rooms", "application/json", bytes.NewReader(body))
		if err != nil || resp.StatusCode != http.StatusCreated {
			t.Fatalf("create room %s failed: %v, status %d", number, err, resp.StatusCode)
		}
		var room struct {
			ID uuid.UUID `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&room)
		resp.Body.Close()
		return room.ID
	}
	roomA := createRoom("101")
	roomB := createRoom("102")

	userID := uuid.New()
	postBooking := func(key string, payload map[string]interface{}) (*http.Response, struct {
		ID     uuid.UUID `json:"id"`
		RoomID uuid.UUID `json:"room_id"`
		Status string    `json:"status"`
	}) {
		body, _ := json.Marshal(payload)
		req, _ := http.NewRequest(http.MethodPost, apiSrv.URL+"/v1/bookings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		req.Header.Set("X-User-ID", userID.String())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		var out struct {
			ID     uuid.UUID `json:"id"`
			RoomID uuid.UUID `json:"room_id"`
			Status string    `json:"status"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		return resp, out
	}

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	end := start.Add(48 * time.Hour)

	// Happy path: the hold is granted and the booking confirms.
	key := uuid.New().String()
	resp, created := postBooking(key, map[string]interface{}{
		"room_id":    roomA.String(),
		"start_date": start,
		"end_date":   end,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if created.Status != "CONFIRMED" {
		t.Fatalf("expected CONFIRMED, got %s", created.Status)
	}

	gotRoom, err := rooms.GetRoom(ctx, roomA)
	if err != nil {
		t.Fatal(err)
	}
	if gotRoom.TimesBooked != 1 {
		t.Errorf("expected times_booked 1 after finalize, got %d", gotRoom.TimesBooked)
	}
	if gotRoom.HoldPresent() {
		t.Errorf("expected hold consumed by finalize, got %+v", gotRoom)
	}

	// Replaying the same idempotency key returns the stored response.
	resp, replayed := postBooking(key, map[string]interface{}{
		"room_id":    roomA.String(),
		"start_date": start,
		"end_date":   end,
	})
	if resp.StatusCode != http.StatusCreated || replayed.ID != created.ID {
		t.Errorf("expected replay of booking %s, got status %d booking %s", created.ID, resp.StatusCode, replayed.ID)
	}

	// A room held by someone else declines the hold and the saga compensates.
	holdBody, _ := json.Marshal(map[string]interface{}{
		"request_id": "someone-else",
		"start_date": start,
		"end_date":   end,
	})
	hresp, err := http.Post(invSrv.URL+"/v1/rooms/"+roomB.String()+"/hold", "application/json", bytes.NewReader(holdBody))
	if err != nil || hresp.StatusCode != http.StatusOK {
		t.Fatalf("pre-hold failed: %v, status %d", err, hresp.StatusCode)
	}
	hresp.Body.Close()

	resp, contended := postBooking(uuid.New().String(), map[string]interface{}{
		"room_id":    roomB.String(),
		"start_date": start,
		"end_date":   end,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for declined booking, got %d", resp.StatusCode)
	}
	if contended.Status != "CANCELLED" {
		t.Errorf("expected CANCELLED under contention, got %s", contended.Status)
	}
	gotRoom, err = rooms.GetRoom(ctx, roomB)
	if err != nil {
		t.Fatal(err)
	}
	if gotRoom.HeldByRequest != "someone-else" {
		t.Errorf("foreign hold must survive a declined booking, got %q", gotRoom.HeldByRequest)
	}

	// Release the foreign hold, then auto-select picks the least-booked room.
	rresp, err := http.Post(invSrv.URL+"/v1/rooms/"+roomB.String()+"/release?request_id=someone-else", "application/json", nil)
	if err != nil || rresp.StatusCode != http.StatusOK {
		t.Fatalf("release failed: %v, status %d", err, rresp.StatusCode)
	}
	rresp.Body.Close()

	resp, auto := postBooking(uuid.New().String(), map[string]interface{}{
		"auto_select": true,
		"start_date":  start,
		"end_date":    end,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for auto-select, got %d", resp.StatusCode)
	}
	if auto.Status != "CONFIRMED" {
		t.Fatalf("expected CONFIRMED auto-select booking, got %s", auto.Status)
	}
	if auto.RoomID != roomB {
		t.Errorf("expected auto-select to pick the less-booked room %s, got %s", roomB, auto.RoomID)
	}

	// Both confirmed bookings wrote their lifecycle events to the outbox.
	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	confirmed := 0
	for _, rec := range records {
		if rec.EventType == "booking.confirmed" {
			confirmed++
		}
	}
	if confirmed != 2 {
		t.Errorf("expected 2 booking.confirmed outbox rows, got %d (of %d)", confirmed, len(records))
	}
}
