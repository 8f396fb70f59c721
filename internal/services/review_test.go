package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRejectsSelfReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	listing := env.listing(t, owner.ID)

	_, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: owner.ID, Rating: 5})
	assert.ErrorIs(t, err, ErrSelfReview)

	reviews, err := env.ratings.ListForItem(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestSubmitRejectsInvalidRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	listing := env.listing(t, owner.ID)

	for _, rating := range []int{0, 6, -1} {
		_, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: rating})
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", rating)
	}

	reviews, err := env.ratings.ListForItem(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestSubmitUnknownListing(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.signup(t, "b@x.com")

	_, _, err := env.ratings.Submit(context.Background(), ReviewInput{ItemID: uuid.New(), ReviewerID: buyer.ID, Rating: 4})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestSubmitUpdatesAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	listing := env.listing(t, owner.ID)

	review, agg, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: 4, Comment: " good "})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, review.SellerID)
	assert.Equal(t, "good", review.Comment)
	assert.Equal(t, types.RatingAggregate{AverageRating: 4, TotalReviews: 1}, agg)

	seller, err := env.users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, agg, seller.Aggregate())
}

func TestConcurrentSubmissionsConverge(t *testing.T) {
	for round := 0; round < 20; round++ {
		env := newTestEnv(t)
		ctx := context.Background()
		owner := env.signup(t, "o@x.com")
		a := env.signup(t, "a@x.com")
		b := env.signup(t, "b@x.com")
		listing := env.listing(t, owner.ID)

		var wg sync.WaitGroup
		for _, in := range []ReviewInput{
			{ItemID: listing.ID, ReviewerID: a.ID, Rating: 4},
			{ItemID: listing.ID, ReviewerID: b.ID, Rating: 5},
		} {
			wg.Add(1)
			go func(in ReviewInput) {
				defer wg.Done()
				_, _, err := env.ratings.Submit(ctx, in)
				assert.NoError(t, err)
			}(in)
		}
		wg.Wait()

		seller, err := env.users.GetByID(ctx, owner.ID)
		require.NoError(t, err)
		require.Equal(t, types.RatingAggregate{AverageRating: 4.5, TotalReviews: 2}, seller.Aggregate(), "round %d", round)
	}
}

func TestAggregateMatchesFromScratchRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	first := env.listing(t, owner.ID)
	second := env.listing(t, owner.ID)

	rng := rand.New(rand.NewPCG(1, 2))
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		item := first.ID
		if i%3 == 0 {
			item = second.ID
		}
		in := ReviewInput{ItemID: item, ReviewerID: uuid.New(), Rating: rng.IntN(5) + 1}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.ratings.Submit(ctx, in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reviews, err := env.ratings.ListForSeller(ctx, owner.ID)
	require.NoError(t, err)
	ratings := make([]int, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, r.Rating)
	}

	seller, err := env.users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AggregateRatings(ratings), seller.Aggregate())
	assert.Equal(t, 40, seller.TotalReviews)

	again, err := env.ratings.Recompute(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, seller.Aggregate(), again)
}

type flakyReviews struct {
	ReviewRepository
	createErr    error
	recomputeErr error
	recomputes   int
}

func (f *flakyReviews) Create(ctx context.Context, review types.Review) (types.Review, error) {
	if f.createErr != nil {
		return types.Review{}, f.createErr
	}
	return f.ReviewRepository.Create(ctx, review)
}

func (f *flakyReviews) RecomputeSellerAggregate(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error) {
	f.recomputes++
	if f.recomputeErr != nil {
		return types.RatingAggregate{}, f.recomputeErr
	}
	return f.ReviewRepository.RecomputeSellerAggregate(ctx, sellerID)
}

func TestSubmitStaleAggregateIsDistinct(t *testing.T) {
	flaky := &flakyReviews{recomputeErr: errors.New("connection reset")}
	env := newTestEnvWithReviews(t, func(inner ReviewRepository) ReviewRepository {
		flaky.ReviewRepository = inner
		return flaky
	})
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	listing := env.listing(t, owner.ID)

	review, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: 2})

	var stale *AggregateStaleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, review.ID, stale.ReviewID)
	assert.Equal(t, owner.ID, stale.SellerID)
	assert.Equal(t, []uuid.UUID{owner.ID}, env.notifier.Requests())

	saved, err := env.ratings.ListForItem(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)

	seller, err := env.users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, seller.TotalReviews)

	flaky.recomputeErr = nil
	report, err := env.ratings.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Repaired, 1)
	assert.Equal(t, owner.ID, report.Repaired[0].SellerID)
	assert.Equal(t, types.RatingAggregate{AverageRating: 2, TotalReviews: 1}, report.Repaired[0].Derived)
}

func TestSubmitSaveFailureSkipsRecompute(t *testing.T) {
	flaky := &flakyReviews{createErr: errors.New("db down")}
	env := newTestEnvWithReviews(t, func(inner ReviewRepository) ReviewRepository {
		flaky.ReviewRepository = inner
		return flaky
	})
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	listing := env.listing(t, owner.ID)

	_, _, err := env.ratings.Submit(context.Background(), ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: 3})
	require.Error(t, err)

	var stale *AggregateStaleError
	assert.False(t, errors.As(err, &stale))
	assert.Zero(t, flaky.recomputes)
	assert.Empty(t, env.notifier.Requests())
}

func TestReconcileRepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	listing := env.listing(t, owner.ID)

	_, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: 5})
	require.NoError(t, err)

	wrong := types.RatingAggregate{AverageRating: 1.2, TotalReviews: 9}
	require.NoError(t, env.store.Users.SetRatingAggregate(ctx, owner.ID, wrong))

	report, err := env.ratings.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Empty(t, report.Failed)
	require.Len(t, report.Repaired, 1)
	assert.Equal(t, wrong, report.Repaired[0].Stored)

	seller, err := env.users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RatingAggregate{AverageRating: 5, TotalReviews: 1}, seller.Aggregate())

	report, err = env.ratings.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Repaired)
}

// racingReconcile runs hook once, right before the first reconcile of
// seller, standing in for a review that lands mid-pass.
type racingReconcile struct {
	ReviewRepository
	seller uuid.UUID
	hook   func()
}

func (r *racingReconcile) ReconcileSellerAggregate(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, types.RatingAggregate, error) {
	if sellerID == r.seller && r.hook != nil {
		hook := r.hook
		r.hook = nil
		hook()
	}
	return r.ReviewRepository.ReconcileSellerAggregate(ctx, sellerID)
}

func TestReconcileIgnoresConcurrentSubmission(t *testing.T) {
	racing := &racingReconcile{}
	env := newTestEnvWithReviews(t, func(inner ReviewRepository) ReviewRepository {
		racing.ReviewRepository = inner
		return racing
	})
	ctx := context.Background()
	owner := env.signup(t, "o@x.com")
	buyer := env.signup(t, "b@x.com")
	other := env.signup(t, "c@x.com")
	listing := env.listing(t, owner.ID)

	_, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: buyer.ID, Rating: 5})
	require.NoError(t, err)

	racing.seller = owner.ID
	racing.hook = func() {
		_, _, err := env.ratings.Submit(ctx, ReviewInput{ItemID: listing.ID, ReviewerID: other.ID, Rating: 3})
		require.NoError(t, err)
	}

	report, err := env.ratings.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, report.Repaired)
	assert.Empty(t, report.Failed)

	seller, err := env.users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RatingAggregate{AverageRating: 4, TotalReviews: 2}, seller.Aggregate())
}

func TestListForSellerUnknown(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ratings.ListForSeller(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
