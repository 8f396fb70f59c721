package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/dbx"
	"github.com/rentshare/apiserver/types"
)

// ReviewRepository handles persistence for reviews and the seller rating
// aggregate derived from them.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create durably writes a single review.
func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO reviews (id, item_id, seller_id, reviewer_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.ItemID,
		review.SellerID,
		review.ReviewerID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	); err != nil {
		return types.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

func (r *ReviewRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]types.Review, error) {
	const query = `
		SELECT id, item_id, seller_id, reviewer_id, rating, comment, created_at
		FROM reviews
		WHERE item_id = $1
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, itemID)
}

func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]types.Review, error) {
	const query = `
		SELECT id, item_id, seller_id, reviewer_id, rating, comment, created_at
		FROM reviews
		WHERE seller_id = $1
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, sellerID)
}

// RecomputeSellerAggregate derives the seller's aggregate from the full
// review set and stores it, as one transaction. The seller row is locked
// first so concurrent recomputes for one seller run one after another, and
// each reads the review set only after acquiring the lock.
func (r *ReviewRepository) RecomputeSellerAggregate(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error) {
	_, derived, err := r.recompute(ctx, sellerID)
	return derived, err
}

// ReconcileSellerAggregate is RecomputeSellerAggregate that also returns the
// aggregate stored before the write, read under the same row lock.
func (r *ReviewRepository) ReconcileSellerAggregate(ctx context.Context, sellerID uuid.UUID) (stored, derived types.RatingAggregate, err error) {
	return r.recompute(ctx, sellerID)
}

func (r *ReviewRepository) recompute(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, types.RatingAggregate, error) {
	var stored, derived types.RatingAggregate
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		const lockQuery = `SELECT average_rating, total_reviews FROM users WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, sellerID).Scan(&stored.AverageRating, &stored.TotalReviews); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock seller: %w", err)
		}

		ratings, err := sellerRatings(ctx, tx, sellerID)
		if err != nil {
			return err
		}
		derived = types.AggregateRatings(ratings)

		const updateQuery = `
			UPDATE users
			SET average_rating = $1,
				total_reviews = $2,
				updated_at = $3
			WHERE id = $4`
		if _, err := tx.ExecContext(ctx, updateQuery, derived.AverageRating, derived.TotalReviews, time.Now().UTC(), sellerID); err != nil {
			return fmt.Errorf("store aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.RatingAggregate{}, types.RatingAggregate{}, err
	}
	return stored, derived, nil
}

func sellerRatings(ctx context.Context, tx dbx.DBTX, sellerID uuid.UUID) ([]int, error) {
	const query = `SELECT rating FROM reviews WHERE seller_id = $1`
	rows, err := tx.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func (r *ReviewRepository) list(ctx context.Context, query string, arg uuid.UUID) ([]types.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0)
	for rows.Next() {
		var review types.Review
		if err := rows.Scan(
			&review.ID,
			&review.ItemID,
			&review.SellerID,
			&review.ReviewerID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}
