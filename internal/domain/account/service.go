package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/clinic/clinic/internal/platform/auth"
)

// TokenIssuer signs access tokens for a subject. *auth.TokenAuthority
// implements it.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// Credentials is an (email, password) pair from a register or login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(1, 72)),
	)
}

type Service struct {
	users  Repository
	hasher auth.PasswordHasher
	tokens TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users Repository, hasher auth.PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// CreateUser hashes the password and inserts a new user. A second call with
// the same email yields ErrDuplicateUser from the store's unique constraint;
// there is no separate existence check.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*User, error) {
	creds := Credentials{Email: email, Password: password}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u := &User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate returns the user only when password matches the stored hash.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// Burn the same bcrypt work as a real comparison.
		_ = s.hasher.Compare(s.dummy(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return u, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("clinic-timing-equalizer")
	})
	return s.dummyHash
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, ErrUserNotFound
	}
	return s.users.GetByEmail(ctx, email)
}

// ResolveSubject implements auth.SubjectResolver.
func (s *Service) ResolveSubject(ctx context.Context, subject string) (*auth.Identity, error) {
	u, err := s.FindByEmail(ctx, subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, auth.ErrUnknownSubject
	}
	if err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	return &auth.Identity{UserID: u.ID.String(), Email: u.Email}, nil
}

// Login authenticates and issues a token whose subject is the user's email.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(u.Email)
}

// Refresh issues a new token for an already resolved identity. The old
// token stays valid until its own expiry.
func (s *Service) Refresh(ident *auth.Identity) (string, error) {
	if ident == nil || ident.Email == "" {
		return "", auth.ErrUnknownSubject
	}
	return s.tokens.Issue(ident.Email)
}
