package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/rentshare/apiserver/types"
)

type state struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]types.User
	emails   map[string]uuid.UUID
	listings map[uuid.UUID]types.Listing
	reviews  map[uuid.UUID]types.Review
}

// Store bundles the repositories over one shared state.
type Store struct {
	Users    *UserRepository
	Listings *ListingRepository
	Reviews  *ReviewRepository
}

// New creates an empty store.
func New() *Store {
	s := &state{
		users:    make(map[uuid.UUID]types.User),
		emails:   make(map[string]uuid.UUID),
		listings: make(map[uuid.UUID]types.Listing),
		reviews:  make(map[uuid.UUID]types.Review),
	}
	return &Store{
		Users:    &UserRepository{s: s},
		Listings: &ListingRepository{s: s},
		Reviews:  &ReviewRepository{s: s},
	}
}

// UserRepository is the in-memory user store.
type UserRepository struct {
	s *state
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[user.Email]; taken {
		return types.User{}, store.ErrDuplicateEmail
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID
	return user, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id uuid.UUID, update types.ProfileUpdate) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Picture != nil {
		user.Picture = *update.Picture
	}
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return user, nil
}

func (r *UserRepository) IncrementListingCount(_ context.Context, id uuid.UUID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.TotalListings = max(user.TotalListings+delta, 0)
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) SetRatingAggregate(_ context.Context, id uuid.UUID, agg types.RatingAggregate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.setAggregate(id, agg)
}

func (r *UserRepository) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	users := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	r.s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.String() < users[j].ID.String()
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	ids := make([]uuid.UUID, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}
	return ids, nil
}

// ListingRepository is the in-memory listing store.
type ListingRepository struct {
	s *state
}

func (r *ListingRepository) List(_ context.Context, offset, limit int) ([]types.Listing, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	r.s.mu.RLock()
	all := make([]types.Listing, 0, len(r.s.listings))
	for _, listing := range r.s.listings {
		all = append(all, listing)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []types.Listing{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (r *ListingRepository) Get(_ context.Context, id uuid.UUID) (types.Listing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	listing, ok := r.s.listings[id]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	return listing, nil
}

func (r *ListingRepository) Create(_ context.Context, listing types.Listing) (types.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[listing.OwnerID]; !ok {
		return types.Listing{}, fmt.Errorf("owner %s: %w", listing.OwnerID, store.ErrNotFound)
	}
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	r.s.listings[listing.ID] = listing
	return listing, nil
}

func (r *ListingRepository) Update(_ context.Context, listing types.Listing) (types.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.listings[listing.ID]
	if !ok {
		return types.Listing{}, store.ErrNotFound
	}
	current.Title = listing.Title
	current.Description = listing.Description
	current.PricePerDay = listing.PricePerDay
	current.UpdatedAt = time.Now().UTC()
	r.s.listings[listing.ID] = current
	return current, nil
}

func (r *ListingRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.listings[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.listings, id)
	return nil
}

// ReviewRepository is the in-memory review store.
type ReviewRepository struct {
	s *state
}

func (r *ReviewRepository) Create(_ context.Context, review types.Review) (types.Review, error) {
	if !types.ValidRating(review.Rating) {
		return types.Review{}, fmt.Errorf("rating %d out of range", review.Rating)
	}
	if review.SellerID == review.ReviewerID {
		return types.Review{}, fmt.Errorf("reviewer %s owns the listing", review.ReviewerID)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now().UTC()
	r.s.reviews[review.ID] = review
	return review, nil
}

func (r *ReviewRepository) ListByItem(_ context.Context, itemID uuid.UUID) ([]types.Review, error) {
	return r.filter(func(rv types.Review) bool { return rv.ItemID == itemID }), nil
}

func (r *ReviewRepository) ListBySeller(_ context.Context, sellerID uuid.UUID) ([]types.Review, error) {
	return r.filter(func(rv types.Review) bool { return rv.SellerID == sellerID }), nil
}

// RecomputeSellerAggregate reads the seller's reviews and stores the derived
// aggregate while holding the write lock.
func (r *ReviewRepository) RecomputeSellerAggregate(ctx context.Context, sellerID uuid.UUID) (types.RatingAggregate, error) {
	_, derived, err := r.ReconcileSellerAggregate(ctx, sellerID)
	return derived, err
}

// ReconcileSellerAggregate also returns the aggregate stored before the write.
func (r *ReviewRepository) ReconcileSellerAggregate(_ context.Context, sellerID uuid.UUID) (stored, derived types.RatingAggregate, err error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[sellerID]
	if !ok {
		return stored, derived, store.ErrNotFound
	}
	stored = user.Aggregate()

	var ratings []int
	for _, review := range r.s.reviews {
		if review.SellerID == sellerID {
			ratings = append(ratings, review.Rating)
		}
	}
	derived = types.AggregateRatings(ratings)
	if err := r.s.setAggregate(sellerID, derived); err != nil {
		return types.RatingAggregate{}, types.RatingAggregate{}, err
	}
	return stored, derived, nil
}

func (r *ReviewRepository) filter(keep func(types.Review) bool) []types.Review {
	r.s.mu.RLock()
	out := make([]types.Review, 0)
	for _, review := range r.s.reviews {
		if keep(review) {
			out = append(out, review)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// setAggregate requires s.mu to be held for writing.
func (s *state) setAggregate(id uuid.UUID, agg types.RatingAggregate) error {
	user, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.AverageRating = agg.AverageRating
	user.TotalReviews = agg.TotalReviews
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return nil
}
