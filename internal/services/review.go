package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/rentshare/apiserver/types"
)

const (
	maxCommentLength = 2000
	notifyTimeout    = 5 * time.Second
)

// ReviewRepository defines persistence operations for reviews.
//
// RecomputeSellerAggregate must read the seller's full review set and store
// the derived aggregate as one atomic step with respect to other recomputes
// for the same seller. ReconcileSellerAggregate does the same and also
// returns the aggregate that was stored before the write.
type ReviewRepository interface {
	Create(ctx context.Context, review types.Review) (types.Review, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]types.Review, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]types.Review, error)
	RecomputeSellerAggregate(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error)
	ReconcileSellerAggregate(ctx context.Context, sellerID uuid.UUID) (stored, derived types.RatingAggregate, err error)
}

// RecomputeNotifier queues an asynchronous aggregate recompute for a seller.
type RecomputeNotifier interface {
	RequestRecompute(ctx context.Context, sellerID uuid.UUID, reason string) error
}

// RatingService records reviews and keeps each seller's rating aggregate
// derived from their review set.
type RatingService struct {
	reviews  ReviewRepository
	listings ListingRepository
	users    UserRepository
	notifier RecomputeNotifier
	logger   *slog.Logger
}

func NewRatingService(reviews ReviewRepository, listings ListingRepository, users UserRepository, notifier RecomputeNotifier, logger *slog.Logger) *RatingService {
	return &RatingService{
		reviews:  reviews,
		listings: listings,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// ReviewInput is a review submission for a listing.
type ReviewInput struct {
	ItemID     uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    string
}

// Submit validates and stores a review, then recomputes the seller's
// aggregate. If the review is stored but the recompute fails, Submit returns
// the stored review together with an *AggregateStaleError.
func (s *RatingService) Submit(ctx context.Context, in ReviewInput) (types.Review, types.RatingAggregate, error) {
	listing, err := s.listings.Get(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Review{}, types.RatingAggregate{}, ErrListingNotFound
		}
		return types.Review{}, types.RatingAggregate{}, fmt.Errorf("load listing: %w", err)
	}
	if listing.OwnerID == in.ReviewerID {
		return types.Review{}, types.RatingAggregate{}, ErrSelfReview
	}
	if !types.ValidRating(in.Rating) {
		return types.Review{}, types.RatingAggregate{}, ErrInvalidRating
	}
	comment := strings.TrimSpace(in.Comment)
	if len(comment) > maxCommentLength {
		return types.Review{}, types.RatingAggregate{}, validationError(fmt.Sprintf("comment exceeds %d characters", maxCommentLength))
	}

	review, err := s.reviews.Create(ctx, types.Review{
		ItemID:     listing.ID,
		SellerID:   listing.OwnerID,
		ReviewerID: in.ReviewerID,
		Rating:     in.Rating,
		Comment:    comment,
	})
	if err != nil {
		return types.Review{}, types.RatingAggregate{}, fmt.Errorf("save review: %w", err)
	}

	agg, err := s.reviews.RecomputeSellerAggregate(ctx, review.SellerID)
	if err != nil {
		stale := &AggregateStaleError{ReviewID: review.ID, SellerID: review.SellerID, Err: err}
		s.logger.ErrorContext(ctx, "seller aggregate is stale", "review_id", review.ID, "seller_id", review.SellerID, "err", err)
		s.requestRecompute(ctx, review.SellerID, "recompute failed after review "+review.ID.String())
		return review, types.RatingAggregate{}, stale
	}
	return review, agg, nil
}

// Recompute re-derives and stores one seller's aggregate.
func (s *RatingService) Recompute(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error) {
	agg, err := s.reviews.RecomputeSellerAggregate(ctx, sellerID)
	if errors.Is(err, store.ErrNotFound) {
		return types.RatingAggregate{}, ErrUserNotFound
	}
	return agg, err
}

func (s *RatingService) ListForItem(ctx context.Context, itemID uuid.UUID) ([]types.Review, error) {
	return s.reviews.ListByItem(ctx, itemID)
}

func (s *RatingService) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]types.Review, error) {
	if _, err := s.users.GetByID(ctx, sellerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.reviews.ListBySeller(ctx, sellerID)
}

// Drift is a seller whose stored aggregate differed from the derived one.
type Drift struct {
	SellerID uuid.UUID             `json:"seller_id"`
	Stored   types.RatingAggregate `json:"stored"`
	Derived  types.RatingAggregate `json:"derived"`
}

// ReconcileFailure is a seller whose aggregate could not be recomputed.
type ReconcileFailure struct {
	SellerID uuid.UUID `json:"seller_id"`
	Error    string    `json:"error"`
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Checked    int                `json:"checked"`
	Repaired   []Drift            `json:"repaired"`
	Failed     []ReconcileFailure `json:"failed"`
}

// Reconcile recomputes every user's aggregate from their review set and
// reports the ones that had drifted. Per-seller failures are collected, not
// fatal; only failing to enumerate users aborts the pass.
func (s *RatingService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{
		StartedAt: time.Now().UTC(),
		Repaired:  []Drift{},
		Failed:    []ReconcileFailure{},
	}

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		stored, derived, err := s.reviews.ReconcileSellerAggregate(ctx, id)
		if err != nil {
			report.Failed = append(report.Failed, ReconcileFailure{SellerID: id, Error: err.Error()})
			continue
		}
		report.Checked++
		if stored != derived {
			report.Repaired = append(report.Repaired, Drift{SellerID: id, Stored: stored, Derived: derived})
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// requestRecompute runs detached from ctx's cancellation so a timed-out
// request still leaves a repair request behind.
func (s *RatingService) requestRecompute(ctx context.Context, sellerID uuid.UUID, reason string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.RequestRecompute(notifyCtx, sellerID, reason); err != nil {
		s.logger.ErrorContext(ctx, "recompute request not queued", "seller_id", sellerID, "err", err)
	}
}
