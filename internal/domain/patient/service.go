package patient

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/pagination"
)

const DefaultRecentLimit = 5

type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService returns a patient service. now may be nil to use time.Now;
// it anchors age calculations.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

func (s *Service) today() time.Time {
	return s.now().UTC()
}

func (s *Service) stamp(patients ...*Patient) {
	now := s.today()
	for _, p := range patients {
		if age, ok := p.AgeAt(now); ok {
			p.Age = &age
		} else {
			p.Age = nil
		}
	}
}

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	if err := in.ValidateCreate(s.today()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p := &Patient{}
	in.Apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.stamp(p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.stamp(p)
	return p, nil
}

// Update applies only the supplied fields of in to the stored patient.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	if err := in.ValidateUpdate(s.today()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.stamp(p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, pg pagination.Params) ([]*Patient, int, error) {
	patients, total, err := s.repo.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	s.stamp(patients...)
	return patients, total, nil
}

func (s *Service) Search(ctx context.Context, f Filter, pg pagination.Params) ([]*Patient, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	patients, total, err := s.repo.Search(ctx, f, s.today(), pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	s.stamp(patients...)
	return patients, total, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Recent returns the newest patients first. limit must be at least 1 and
// is capped at pagination.MaxLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Patient, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: Limit must be at least 1", ErrInvalidInput)
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	patients, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.stamp(patients...)
	return patients, nil
}

// Stats summarises the patient population. Age figures only consider
// patients with a recorded date of birth; ties for oldest and youngest go to
// the first encountered.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	births, err := s.repo.Birthdates(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{Total: total, WithAge: len(births)}
	if len(births) == 0 {
		return st, nil
	}

	now := s.today()
	sum := 0
	for _, b := range births {
		age := yearsBetween(b.DateOfBirth, now)
		sum += age
		entry := &AgeEntry{ID: b.ID, Name: (&Patient{FirstName: b.FirstName, LastName: b.LastName}).FullName(), Age: age}
		if st.Oldest == nil || age > st.Oldest.Age {
			st.Oldest = entry
		}
		if st.Youngest == nil || age < st.Youngest.Age {
			st.Youngest = entry
		}
	}
	st.AverageAge = math.Round(float64(sum)/float64(len(births))*10) / 10
	return st, nil
}
