package types

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// MinRating and MaxRating bound Review.Rating, inclusive.
	MinRating = 1
	MaxRating = 5
)

// Review is feedback left by a buyer about a seller's listing.
// Reviews are immutable once written.
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ItemID     uuid.UUID `json:"item_id" db:"item_id"`
	SellerID   uuid.UUID `json:"seller_id" db:"seller_id"`
	ReviewerID uuid.UUID `json:"reviewer_id" db:"reviewer_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// RatingAggregate is the derived rating summary stored on a seller.
type RatingAggregate struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// ValidRating reports whether r lies in [MinRating, MaxRating].
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// AggregateRatings reduces a seller's full rating set to its aggregate.
// The mean is rounded half-up to one decimal place.
func AggregateRatings(ratings []int) RatingAggregate {
	if len(ratings) == 0 {
		return RatingAggregate{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	// Scale before dividing so x.x5 boundaries are exact.
	tenths := math.Round(float64(sum*10) / float64(len(ratings)))
	return RatingAggregate{
		AverageRating: tenths / 10,
		TotalReviews:  len(ratings),
	}
}
