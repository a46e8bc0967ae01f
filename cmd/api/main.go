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
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eveiled/hotel-booking/internal/adapters/crdb"
	mongoadapter "github.com/eveiled/hotel-booking/internal/adapters/mongo"
	redisadapter "github.com/eveiled/hotel-booking/internal/adapters/redis"
	"github.com/eveiled/hotel-booking/internal/clock"
	"github.com/eveiled/hotel-booking/internal/config"
	"github.com/eveiled/hotel-booking/internal/gateway"
	httphandler "github.com/eveiled/hotel-booking/internal/http"
	"github.com/eveiled/hotel-booking/internal/observability"
	"github.com/eveiled/hotel-booking/internal/rateLimit"
	"github.com/eveiled/hotel-booking/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "booking-api")
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
	bookings := crdb.NewBookingRepository(repo)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("hotel"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	idemp := redisadapter.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisClient)

	inventory := gateway.NewClient(cfg.InventoryURL, logger,
		gateway.WithTimeouts(cfg.AcquireTimeout, cfg.MutateTimeout),
		gateway.WithRetries(cfg.AcquireRetries, cfg.MutateRetries),
	)

	svc := saga.NewService(bookings, inventory, clock.NewSystem(), logger, saga.WithAuditor(audit))
	handlers := httphandler.NewBookingHandlers(svc, idemp, logger)
	r := httphandler.SetupBookingRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.APIAddr).Info("booking api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down booking api")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	logger.Info("booking api exiting")
}
