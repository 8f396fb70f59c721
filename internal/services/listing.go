package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/auth"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/rentshare/apiserver/types"
)

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Listing, int, error)
	Get(ctx context.Context, id uuid.UUID) (types.Listing, error)
	Create(ctx context.Context, listing types.Listing) (types.Listing, error)
	Update(ctx context.Context, listing types.Listing) (types.Listing, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListingService encapsulates listing use-cases. Mutations are restricted to
// the listing's owner.
type ListingService struct {
	repo   ListingRepository
	users  UserRepository
	logger *slog.Logger
}

func NewListingService(repo ListingRepository, users UserRepository, logger *slog.Logger) *ListingService {
	return &ListingService{repo: repo, users: users, logger: logger}
}

func (s *ListingService) List(ctx context.Context, offset, limit int) ([]types.Listing, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (types.Listing, error) {
	listing, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Listing{}, ErrListingNotFound
	}
	return listing, err
}

// Create stores a listing owned by ownerID.
func (s *ListingService) Create(ctx context.Context, ownerID uuid.UUID, listing types.Listing) (types.Listing, error) {
	listing.Title = strings.TrimSpace(listing.Title)
	if listing.Title == "" {
		return types.Listing{}, validationError("title is required")
	}
	if listing.PricePerDay < 0 {
		return types.Listing{}, validationError("price must not be negative")
	}
	listing.ID = uuid.Nil
	listing.OwnerID = ownerID

	created, err := s.repo.Create(ctx, listing)
	if err != nil {
		return types.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	// The count is a display stat; a failure here does not undo the listing.
	if err := s.users.IncrementListingCount(ctx, ownerID, 1); err != nil {
		s.logger.WarnContext(ctx, "listing count not incremented", "user_id", ownerID, "err", err)
	}
	return created, nil
}

// Update applies changes to a listing owned by requesterID. Ownership is
// checked against the stored listing before any field is touched.
func (s *ListingService) Update(ctx context.Context, requesterID, id uuid.UUID, update types.ListingUpdate) (types.Listing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return types.Listing{}, err
	}
	if err := auth.Authorize(listing.OwnerID, requesterID); err != nil {
		return types.Listing{}, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return types.Listing{}, validationError("title cannot be empty")
		}
		update.Title = &title
	}
	if update.PricePerDay != nil && *update.PricePerDay < 0 {
		return types.Listing{}, validationError("price must not be negative")
	}
	update.Apply(&listing)

	updated, err := s.repo.Update(ctx, listing)
	if errors.Is(err, store.ErrNotFound) {
		return types.Listing{}, ErrListingNotFound
	}
	return updated, err
}

// Delete removes a listing owned by requesterID. Reviews of the listing are
// kept and still count toward the seller's aggregate.
func (s *ListingService) Delete(ctx context.Context, requesterID, id uuid.UUID) error {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(listing.OwnerID, requesterID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrListingNotFound
		}
		return err
	}

	if err := s.users.IncrementListingCount(ctx, listing.OwnerID, -1); err != nil {
		s.logger.WarnContext(ctx, "listing count not decremented", "user_id", listing.OwnerID, "err", err)
	}
	return nil
}
