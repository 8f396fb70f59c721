package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/internal/auth"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/rentshare/apiserver/types"
)

const (
	minPasswordLength = 6
	// bcrypt only reads the first 72 bytes and rejects longer input.
	maxPasswordLength = 72
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	FindByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.User, error)
	IncrementListingCount(ctx context.Context, id uuid.UUID, delta int) error
	SetRatingAggregate(ctx context.Context, id uuid.UUID, agg types.RatingAggregate) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// SignupInput is the data accepted at registration.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// Session is a freshly issued token with the user it belongs to.
type Session struct {
	Token string
	User  types.User
}

// UserService encapsulates signup, login and profile use-cases.
type UserService struct {
	repo   UserRepository
	hasher auth.Hasher
	tokens *auth.TokenIssuer
}

func NewUserService(repo UserRepository, hasher auth.Hasher, tokens *auth.TokenIssuer) *UserService {
	return &UserService{repo: repo, hasher: hasher, tokens: tokens}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a user and issues a token for them.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Phone == "" {
		return Session{}, validationError("name, email, password and phone are required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return Session{}, validationError("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(in.Password) > maxPasswordLength {
		return Session{}, validationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}

	// Fast path for a friendly error; the unique index decides races.
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return Session{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("check email: %w", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: digest,
		Phone:        in.Phone,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return Session{}, ErrDuplicateEmail
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	return s.session(user)
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, validationError("email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile changes the caller's own profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.User, error) {
	if update.Empty() {
		return types.User{}, validationError("no profile fields to update")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return types.User{}, validationError("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Phone != nil {
		phone := strings.TrimSpace(*update.Phone)
		if phone == "" {
			return types.User{}, validationError("phone cannot be empty")
		}
		update.Phone = &phone
	}

	user, err := s.repo.UpdateProfile(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) session(user types.User) (Session, error) {
	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: user}, nil
}
