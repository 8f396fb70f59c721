package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain validation errors. Handlers map these to 4xx responses; anything
// else that escapes a service is an infrastructure failure.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrSelfReview         = errors.New("cannot review your own listing")
	ErrListingNotFound    = errors.New("listing not found")
	ErrUserNotFound       = errors.New("user not found")
)

// AggregateStaleError reports that a review was persisted but the seller's
// rating aggregate could not be recomputed. The aggregate is behind the
// review set until a recompute for SellerID succeeds.
type AggregateStaleError struct {
	ReviewID uuid.UUID
	SellerID uuid.UUID
	Err      error
}

func (e *AggregateStaleError) Error() string {
	return fmt.Sprintf("review %s saved, aggregate for seller %s not updated: %v", e.ReviewID, e.SellerID, e.Err)
}

func (e *AggregateStaleError) Unwrap() error {
	return e.Err
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
