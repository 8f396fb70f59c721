package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rentshare/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listingRowColumns = []string{"id", "owner_id", "title", "description", "price_per_day", "created_at", "updated_at"}

func TestListingRepositoryGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	id, owner := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery(`FROM listings\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(listingRowColumns).AddRow(id.String(), owner.String(), "Drill", "", 9.5, now, now))

	listing, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, owner, listing.OwnerID)
	assert.Equal(t, "Drill", listing.Title)
}

func TestListingRepositoryGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	mock.ExpectQuery(`FROM listings`).WillReturnRows(sqlmock.NewRows(listingRowColumns))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingRepositoryUpdateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	id := uuid.New()
	mock.ExpectExec(`UPDATE listings`).
		WithArgs("Saw", "", 3.0, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.Listing{ID: id, Title: "Saw", PricePerDay: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingRepositoryList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM listings`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM listings\s+ORDER BY`).
		WithArgs(0, 2).
		WillReturnRows(sqlmock.NewRows(listingRowColumns).
			AddRow(uuid.NewString(), uuid.NewString(), "A", "", 1.0, now, now).
			AddRow(uuid.NewString(), uuid.NewString(), "B", "", 2.0, now, now))

	items, total, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 2)
}

func TestListingRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewListingRepository(db)

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM listings WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), id))
}
