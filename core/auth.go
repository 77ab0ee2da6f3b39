package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password is wrong.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMalformedHash marks a stored password hash bcrypt cannot parse.
	ErrMalformedHash = errors.New("malformed password hash")
)

// CredentialStore owns user lookup and password verification.
type CredentialStore struct {
	users     UserRepository
	pool      *HashPool
	dummyHash []byte
}

// NewCredentialStore wires a repository to a hash pool. dummyCost is the bcrypt
// cost used for the placeholder hash compared when an email is unknown; it
// should match the cost of the stored hashes.
func NewCredentialStore(users UserRepository, pool *HashPool, dummyCost int) (*CredentialStore, error) {
	if pool == nil {
		pool = NewHashPool(0)
	}
	if dummyCost < bcrypt.MinCost || dummyCost > bcrypt.MaxCost {
		dummyCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), dummyCost)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{users: users, pool: pool, dummyHash: dummy}, nil
}

// HashCost reports the bcrypt cost embedded in hash, or bcrypt.DefaultCost if unreadable.
func HashCost(hash string) int {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return bcrypt.DefaultCost
	}
	return cost
}

// FindByEmail returns the user registered under email, or ErrUserNotFound.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return s.users.FindByEmail(ctx, email)
}

// FindByID returns the user with the given id, or ErrUserNotFound.
func (s *CredentialStore) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	return s.users.FindByID(ctx, id)
}

// VerifyPassword reports whether plaintext matches user's stored hash.
// A nil user yields false after a comparison against a placeholder hash, so
// the cost of a miss does not reveal whether the email exists.
func (s *CredentialStore) VerifyPassword(ctx context.Context, user *UserRecord, plaintext string) (bool, error) {
	if user == nil {
		_ = s.pool.Compare(ctx, s.dummyHash, []byte(plaintext))
		return false, ctx.Err()
	}

	err := s.pool.Compare(ctx, []byte(user.PasswordHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false, err
	default:
		return false, fmt.Errorf("%w for user %d: %v", ErrMalformedHash, user.ID, err)
	}
}

// Principal is the authenticated identity bound to a session.
type Principal struct {
	ID    int64
	Email string
}

// Authenticate looks the user up and verifies the password. Unknown users and
// mismatched passwords both return ErrInvalidCredentials; anything else is an
// internal failure.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return Principal{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.VerifyPassword(ctx, user, password)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{ID: user.ID, Email: user.Email}, nil
}
