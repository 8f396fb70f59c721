// Package reconcile repairs seller rating aggregates outside the request
// path: a worker consumes recompute requests queued when an aggregate write
// failed, and a runner performs full passes and archives their reports.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/mq"
	"github.com/rentshare/apiserver/internal/services"
	"github.com/rentshare/apiserver/types"
)

// Recomputer re-derives one seller's aggregate.
type Recomputer interface {
	Recompute(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error)
}

// Reconciler runs a full reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (services.ReconcileReport, error)
}

// ReportSink archives reconciliation reports.
type ReportSink interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// Worker applies recompute requests from the message queue.
type Worker struct {
	queue   *mq.MQ
	channel string
	ratings Recomputer
	logger  *slog.Logger
}

func NewWorker(queue *mq.MQ, channel string, ratings Recomputer, logger *slog.Logger) *Worker {
	return &Worker{queue: queue, channel: channel, ratings: ratings, logger: logger}
}

// Run consumes requests until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "recompute worker started", "channel", w.channel)
	err := mq.SubscribeRecompute(ctx, w.queue, w.channel, w.handle, func(msg mq.Message, err error) {
		w.logger.WarnContext(ctx, "dropping recompute message", "message_id", msg.ID, "err", err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, req mq.RecomputeRequest) error {
	agg, err := w.ratings.Recompute(ctx, req.SellerID)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		w.logger.WarnContext(ctx, "recompute for unknown seller", "seller_id", req.SellerID)
		return nil
	case err != nil:
		w.logger.ErrorContext(ctx, "recompute failed", "seller_id", req.SellerID, "err", err)
		return fmt.Errorf("recompute %s: %w", req.SellerID, err)
	}
	w.logger.InfoContext(ctx, "seller aggregate recomputed",
		"seller_id", req.SellerID,
		"average_rating", agg.AverageRating,
		"total_reviews", agg.TotalReviews,
		"reason", req.Reason,
	)
	return nil
}
