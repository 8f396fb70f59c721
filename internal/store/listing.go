package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/types"
)

// ListingRepository handles persistence for listings.
type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) List(ctx context.Context, offset, limit int) ([]types.Listing, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM listings`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, owner_id, title, description, price_per_day, created_at, updated_at
		FROM listings
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0, limit)
	for rows.Next() {
		var listing types.Listing
		if err := rows.Scan(
			&listing.ID,
			&listing.OwnerID,
			&listing.Title,
			&listing.Description,
			&listing.PricePerDay,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

func (r *ListingRepository) Get(ctx context.Context, id uuid.UUID) (types.Listing, error) {
	const query = `
		SELECT id, owner_id, title, description, price_per_day, created_at, updated_at
		FROM listings
		WHERE id = $1`
	var listing types.Listing
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Title,
		&listing.Description,
		&listing.PricePerDay,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Listing{}, ErrNotFound
		}
		return types.Listing{}, err
	}
	return listing, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing types.Listing) (types.Listing, error) {
	now := time.Now().UTC()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	listing.CreatedAt = now
	listing.UpdatedAt = now

	const query = `
		INSERT INTO listings (id, owner_id, title, description, price_per_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.OwnerID,
		listing.Title,
		listing.Description,
		listing.PricePerDay,
		listing.CreatedAt,
		listing.UpdatedAt,
	); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}

// Update writes the mutable listing fields. The owner is never changed here.
func (r *ListingRepository) Update(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE listings
		SET title = $1,
			description = $2,
			price_per_day = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		listing.Title,
		listing.Description,
		listing.PricePerDay,
		listing.UpdatedAt,
		listing.ID,
	)
	if err := checkAffected(result, err); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}

func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM listings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	return checkAffected(result, err)
}
