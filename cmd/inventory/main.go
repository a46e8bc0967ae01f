package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eveiled/hotel-booking/internal/adapters/crdb"
	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/config"
	httphandler "github.com/eveiled/hotel-booking/internal/http"
	"github.com/eveiled/hotel-booking/internal/ledger"
	"github.com/eveiled/hotel-booking/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "room-inventory")
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
	repo := crdb.NewRepository(pool)
	rooms := crdb.NewRoomRepository(repo)

	l := ledger.New(rooms, clock.NewSystem(), logger, ledger.WithHoldGrace(cfg.HoldGrace))
	handlers := httphandler.NewRoomHandlers(l, logger)
	r := httphandler.SetupInventoryRouter(handlers, logger)

	srv := &http.Server{
		Addr:    cfg.InventoryAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.InventoryAddr).Info("room inventory started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down room inventory")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	logger.Info("room inventory exiting")
}
