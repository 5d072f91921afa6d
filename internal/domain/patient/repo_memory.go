package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/hipaa"
	"github.com/clinic/clinic/pkg/pagination"
)

// memoryRepo is a process-local Repository used with DATABASE_URL=memory://
// and in tests. Rows are kept in storage form so clinical notes are sealed
// exactly as the Postgres store seals them.
type memoryRepo struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]*Patient
	notes noteCodec
	seq   int64
	order map[uuid.UUID]int64
}

func NewMemoryRepo(enc hipaa.FieldEncryptor) Repository {
	return &memoryRepo{
		rows:  make(map[uuid.UUID]*Patient),
		notes: noteCodec{enc: enc},
		order: make(map[uuid.UUID]int64),
	}
}

func (r *memoryRepo) store(p *Patient) error {
	notes, err := r.notes.seal(p)
	if err != nil {
		return err
	}
	row := *p
	row.Age = nil
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		row.DateOfBirth = &dob
	}
	row.MedicalHistory, row.DentalHistory, row.Allergies = notes.MedicalHistory, notes.DentalHistory, notes.Allergies
	r.rows[p.ID] = &row
	return nil
}

func (r *memoryRepo) load(row *Patient) (*Patient, error) {
	p := *row
	if row.DateOfBirth != nil {
		dob := *row.DateOfBirth
		p.DateOfBirth = &dob
	}
	if err := r.notes.open(&p, clinicalNotes{row.MedicalHistory, row.DentalHistory, row.Allergies}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := r.store(p); err != nil {
		return err
	}
	r.seq++
	r.order[p.ID] = r.seq
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return r.load(row)
}

func (r *memoryRepo) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[p.ID]
	if !ok {
		return ErrPatientNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	return r.store(p)
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r.rows, id)
	delete(r.order, id)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, Filter{}, time.Now(), limit, offset)
}

func (r *memoryRepo) Search(_ context.Context, f Filter, now time.Time, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest, earliest := f.BirthRange(now)
	var matched []*Patient
	for _, row := range r.rows {
		if !matches(row, f, latest, earliest) {
			continue
		}
		matched = append(matched, row)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matched)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(total)
	out := make([]*Patient, 0, end-start)
	for _, row := range matched[start:end] {
		p, err := r.load(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, nil
}

func matches(p *Patient, f Filter, latest, earliest *time.Time) bool {
	if f.Query != "" && !containsFold(f.Query, p.FirstName, p.LastName, p.Email) {
		return false
	}
	if f.Name != "" && !containsFold(f.Name, p.FirstName, p.LastName, p.FirstName+" "+p.LastName) {
		return false
	}
	if latest != nil || earliest != nil {
		if p.DateOfBirth == nil {
			return false
		}
		dob := p.DateOfBirth.Time
		if latest != nil && dob.After(*latest) {
			return false
		}
		if earliest != nil && !dob.After(*earliest) {
			return false
		}
	}
	return true
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Recent(_ context.Context, limit int) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]*Patient, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return r.order[rows[i].ID] > r.order[rows[j].ID]
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]*Patient, 0, len(rows))
	for _, row := range rows {
		p, err := r.load(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows), nil
}

func (r *memoryRepo) Birthdates(_ context.Context) ([]Birthdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Birthdate
	for _, row := range r.rows {
		if row.DateOfBirth == nil {
			continue
		}
		out = append(out, Birthdate{
			ID:          row.ID,
			FirstName:   row.FirstName,
			LastName:    row.LastName,
			DateOfBirth: row.DateOfBirth.Time,
		})
	}
	return out, nil
}
