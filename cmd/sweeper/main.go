package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/eveiled/hotel-booking/internal/adapters/crdb"
	"github.com/eveiled/hotel-booking/internal/adapters/rabbit"
	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/config"
	"github.com/eveiled/hotel-booking/internal/ledger"
	"github.com/eveiled/hotel-booking/internal/observability"
)

// cancelledEvent is the subset of the booking.cancelled payload the sweeper
// needs to release every hold the booking attempt may have left behind.
type cancelledEvent struct {
	RequestID string `json:"request_id"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "hold-sweeper")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	rooms := crdb.NewRoomRepository(crdb.NewRepository(pool))
	l := ledger.New(rooms, clock.NewSystem(), logger, ledger.WithHoldGrace(cfg.HoldGrace))

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, "sweeper.q", "booking.cancelled")
	if err != nil {
		log.Fatalf("failed to setup consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deliveries, err := consumer.Consume(ctx)
		if err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case d, ok := <-deliveries:
				if !ok {
					return nil
				}
				handleCancelled(ctx, l, logger, d)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				n, err := l.SweepExpired(ctx)
				if err != nil {
					logger.WithError(err).Error("sweep expired holds")
					continue
				}
				if n > 0 {
					logger.WithField("released", n).Info("swept expired holds")
				}
			}
		}
	})

	logger.Info("hold sweeper started")
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("sweeper stopped: %v", err)
	}
	logger.Info("hold sweeper exiting")
}

func handleCancelled(ctx context.Context, l *ledger.Ledger, logger observability.Logger, d amqp.Delivery) {
	var ev cancelledEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		logger.WithError(err).Error("malformed booking.cancelled payload")
		d.Nack(false, false)
		return
	}
	if ev.RequestID == "" {
		d.Ack(false)
		return
	}
	n, err := l.ReleaseAllForRequest(ctx, ev.RequestID)
	if err != nil {
		logger.WithError(err).WithField("request_id", ev.RequestID).Error("release holds for cancelled booking")
		d.Nack(false, true)
		return
	}
	if n > 0 {
		logger.WithField("request_id", ev.RequestID).WithField("released", n).Info("released holds for cancelled booking")
	}
	d.Ack(false)
}
