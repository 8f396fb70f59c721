package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered participant. The same record acts as buyer
// and seller; there is no role separation.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's login address, stored trimmed and lower-cased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Phone is the contact number supplied at signup.
	Phone string `json:"phone" db:"phone"`

	// Bio and Picture are optional profile fields.
	Bio     string `json:"bio,omitempty" db:"bio"`
	Picture string `json:"picture,omitempty" db:"picture"`

	// AverageRating is the mean of all ratings received as a seller,
	// rounded to one decimal place. Zero when there are no reviews.
	AverageRating float64 `json:"average_rating" db:"average_rating"`

	// TotalReviews is the number of reviews received as a seller.
	TotalReviews int `json:"total_reviews" db:"total_reviews"`

	// TotalListings is the number of listings the user currently owns.
	TotalListings int `json:"total_listings" db:"total_listings"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Aggregate returns the user's stored rating aggregate.
func (u User) Aggregate() RatingAggregate {
	return RatingAggregate{AverageRating: u.AverageRating, TotalReviews: u.TotalReviews}
}

// ProfileUpdate carries a partial profile change. Nil fields are left as is.
type ProfileUpdate struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Bio     *string `json:"bio,omitempty"`
	Picture *string `json:"picture,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Bio == nil && p.Picture == nil
}
