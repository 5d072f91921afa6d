package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("account: user not found")
	ErrDuplicateUser      = errors.New("account: email already registered")
	ErrInvalidCredentials = errors.New("account: incorrect email or password")
	ErrInvalidInput       = errors.New("account: invalid input")
)

// User is a stored credential record. Email is the case-sensitive lookup
// key and the subject of every token issued for the user.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserResponse is the public representation returned by the API.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
