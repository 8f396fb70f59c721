package types

import (
	"time"

	"github.com/google/uuid"
)

// Listing is an item offered for rent. Only its owner may change it.
type Listing struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	PricePerDay float64   `json:"price_per_day" db:"price_per_day"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ListingUpdate carries a partial listing change. Nil fields are left as is.
type ListingUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	PricePerDay *float64 `json:"price_per_day,omitempty"`
}

// Apply copies the non-nil fields of u onto l.
func (u ListingUpdate) Apply(l *Listing) {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.PricePerDay != nil {
		l.PricePerDay = *u.PricePerDay
	}
}
