// Package audit delivers claim history records to their destinations.
package audit

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/models"
)

// Sink receives one history record per successful claim transition.
// Delivery is best effort: a sink logs its own failures and never returns them.
type Sink interface {
	Record(ctx context.Context, h models.ClaimHistory)
}

// Multi fans a record out to every sink in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, h models.ClaimHistory) {
	for _, s := range m {
		s.Record(ctx, h)
	}
}

// StoreSink appends records to the history collection.
type StoreSink struct {
	history db.HistoryCollection
	logger  log.FieldLogger
}

// NewStoreSink creates a sink backed by a history collection.
func NewStoreSink(history db.HistoryCollection, logger log.FieldLogger) *StoreSink {
	return &StoreSink{history: history, logger: logger}
}

// Record implements Sink.
func (s *StoreSink) Record(ctx context.Context, h models.ClaimHistory) {
	if err := s.history.InsertHistory(ctx, h); err != nil {
		s.logger.WithError(err).WithFields(fields(h)).Error("Failed to store claim history")
	}
}

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger log.FieldLogger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger log.FieldLogger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, h models.ClaimHistory) {
	s.logger.WithFields(fields(h)).Info("Claim transition")
}

func fields(h models.ClaimHistory) log.Fields {
	f := log.Fields{
		"claim_id": h.ClaimID.Hex(),
		"action":   h.Action,
		"from":     h.FromStatus,
		"to":       h.ToStatus,
		"actor":    h.ActorID,
		"role":     h.ActorRole,
	}
	if h.ItemID != nil {
		f["item_id"] = h.ItemID.Hex()
	}
	return f
}
