package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists users. Create must enforce email uniqueness in the
// store itself and report a conflict as ErrDuplicateUser; lookups return
// ErrUserNotFound when nothing matches.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
