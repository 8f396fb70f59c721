package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/auth"
	"github.com/rentshare/apiserver/internal/logging"
	"github.com/rentshare/apiserver/internal/store/memstore"
	"github.com/rentshare/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	store    *memstore.Store
	tokens   *auth.TokenIssuer
	users    *UserService
	listings *ListingService
	ratings  *RatingService
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithReviews(t, nil)
}

// newTestEnvWithReviews lets a test wrap the review repository, e.g. to
// inject failures.
func newTestEnvWithReviews(t *testing.T, wrap func(ReviewRepository) ReviewRepository) *testEnv {
	t.Helper()

	s := memstore.New()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	var reviews ReviewRepository = s.Reviews
	if wrap != nil {
		reviews = wrap(reviews)
	}

	notifier := &recordingNotifier{}
	logger := logging.Discard()
	return &testEnv{
		store:    s,
		tokens:   tokens,
		users:    NewUserService(s.Users, auth.NewBcryptHasher(bcrypt.MinCost), tokens),
		listings: NewListingService(s.Listings, s.Users, logger),
		ratings:  NewRatingService(reviews, s.Listings, s.Users, notifier, logger),
		notifier: notifier,
	}
}

func (e *testEnv) signup(t *testing.T, email string) types.User {
	t.Helper()
	sess, err := e.users.Signup(context.Background(), SignupInput{
		Name:     "User " + email,
		Email:    email,
		Password: "secret1",
		Phone:    "555-0100",
	})
	require.NoError(t, err)
	return sess.User
}

func (e *testEnv) listing(t *testing.T, owner uuid.UUID) types.Listing {
	t.Helper()
	l, err := e.listings.Create(context.Background(), owner, types.Listing{Title: "Ladder", PricePerDay: 5})
	require.NoError(t, err)
	return l
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []uuid.UUID
}

func (n *recordingNotifier) RequestRecompute(_ context.Context, sellerID uuid.UUID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, sellerID)
	return nil
}

func (n *recordingNotifier) Requests() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uuid.UUID(nil), n.requests...)
}
