package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores patients. Lookups and Delete return ErrPatientNotFound
// when the id is unknown. now anchors age-based filters so every store
// evaluates them against the same day.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, f Filter, now time.Time, limit, offset int) ([]*Patient, int, error)
	Recent(ctx context.Context, limit int) ([]*Patient, error)
	Count(ctx context.Context) (int, error)
	Birthdates(ctx context.Context) ([]Birthdate, error)
}
