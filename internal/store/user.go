package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/types"
)

const userColumns = `id, name, email, password_hash, phone, bio, picture,
		       average_rating, total_reviews, total_listings, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmail looks a user up by normalised email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Create inserts a new user. The unique index on email is the authoritative
// duplicate check; a violation is reported as ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, name, email, password_hash, phone, bio, picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.Bio,
		user.Picture,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of update and returns the result.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($1, name),
			phone = COALESCE($2, phone),
			bio = COALESCE($3, bio),
			picture = COALESCE($4, picture),
			updated_at = $5
		WHERE id = $6
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(
		ctx,
		query,
		nullString(update.Name),
		nullString(update.Phone),
		nullString(update.Bio),
		nullString(update.Picture),
		time.Now().UTC(),
		id,
	))
}

// IncrementListingCount adds delta to the user's listing count.
func (r *UserRepository) IncrementListingCount(ctx context.Context, id uuid.UUID, delta int) error {
	const query = `
		UPDATE users
		SET total_listings = GREATEST(total_listings + $1, 0),
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, delta, time.Now().UTC(), id)
	return checkAffected(result, err)
}

// SetRatingAggregate overwrites the stored rating aggregate.
func (r *UserRepository) SetRatingAggregate(ctx context.Context, id uuid.UUID, agg types.RatingAggregate) error {
	const query = `
		UPDATE users
		SET average_rating = $1,
			total_reviews = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, agg.AverageRating, agg.TotalReviews, time.Now().UTC(), id)
	return checkAffected(result, err)
}

// ListIDs returns every user id, oldest first.
func (r *UserRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	const query = `SELECT id FROM users ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.Bio,
		&user.Picture,
		&user.AverageRating,
		&user.TotalReviews,
		&user.TotalListings,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func checkAffected(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
