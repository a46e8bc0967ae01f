package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/observability"
)

// AuditLogger keeps a document per saga status transition so operators can
// reconstruct a booking's history across both authorities by correlation id.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("saga_audit"),
		logger: logger,
	}
}

type transitionDoc struct {
	ID            uuid.UUID `bson:"_id"`
	BookingID     uuid.UUID `bson:"booking_id"`
	UserID        uuid.UUID `bson:"user_id"`
	RoomID        uuid.UUID `bson:"room_id"`
	Status        string    `bson:"status"`
	RequestID     string    `bson:"request_id"`
	CorrelationID string    `bson:"correlation_id"`
	Timestamp     time.Time `bson:"timestamp"`
}

func (a *AuditLogger) RecordTransition(ctx context.Context, b domain.Booking, correlationID string) error {
	doc := transitionDoc{
		ID:            uuid.New(),
		BookingID:     b.ID,
		UserID:        b.UserID,
		RoomID:        b.RoomID,
		Status:        string(b.Status),
		RequestID:     b.RequestID,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit document")
		return err
	}
	return nil
}
