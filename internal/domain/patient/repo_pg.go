package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/hipaa"
)

type patientRepoPG struct {
	db    querier
	notes noteCodec
}

// NewPatientRepo returns a Postgres-backed Repository. enc may be nil, in
// which case clinical notes are stored as plaintext.
func NewPatientRepo(pool *pgxpool.Pool, enc hipaa.FieldEncryptor) Repository {
	return &patientRepoPG{db: pool, notes: noteCodec{enc: enc}}
}

const patientCols = `id, first_name, last_name,
	COALESCE(email, ''), COALESCE(phone, ''), date_of_birth, COALESCE(address, ''),
	COALESCE(medical_history, ''), COALESCE(dental_history, ''), COALESCE(allergies, ''),
	COALESCE(emergency_contact, ''), created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	notes, err := r.notes.seal(p)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}

	p.ID = uuid.New()
	err = r.db.QueryRow(ctx, `
		INSERT INTO patients (
			id, first_name, last_name, email, phone, date_of_birth, address,
			medical_history, dental_history, allergies, emergency_contact
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''),
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, '')
		)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, dobArg(p), p.Address,
		notes.MedicalHistory, notes.DentalHistory, notes.Allergies, p.EmergencyContact,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scan(r.db.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient get: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	notes, err := r.notes.seal(p)
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		UPDATE patients SET
			first_name = $2, last_name = $3, email = NULLIF($4, ''), phone = NULLIF($5, ''),
			date_of_birth = $6, address = NULLIF($7, ''),
			medical_history = NULLIF($8, ''), dental_history = NULLIF($9, ''), allergies = NULLIF($10, ''),
			emergency_contact = NULLIF($11, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, dobArg(p), p.Address,
		notes.MedicalHistory, notes.DentalHistory, notes.Allergies, p.EmergencyContact,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("patient delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patients", patientCols).OrderBy("last_name, first_name, id")
	return r.page(ctx, q, limit, offset)
}

func (r *patientRepoPG) Search(ctx context.Context, f Filter, now time.Time, limit, offset int) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patients", patientCols).OrderBy("last_name, first_name, id")
	if f.Query != "" {
		like := likePattern(f.Query)
		q.Where(`first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?`, like, like, like)
	}
	if f.Name != "" {
		like := likePattern(f.Name)
		q.Where(`first_name ILIKE ? OR last_name ILIKE ? OR (first_name || ' ' || last_name) ILIKE ?`, like, like, like)
	}
	latest, earliest := f.BirthRange(now)
	if latest != nil {
		q.Where(`date_of_birth <= ?`, *latest)
	}
	if earliest != nil {
		q.Where(`date_of_birth > ?`, *earliest)
	}
	return r.page(ctx, q, limit, offset)
}

func (r *patientRepoPG) Recent(ctx context.Context, limit int) ([]*Patient, error) {
	q := db.NewSearchQuery("patients", patientCols).OrderBy("created_at DESC, id")
	patients, _, err := r.page(ctx, q, limit, 0)
	return patients, err
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("patient count: %w", err)
	}
	return n, nil
}

func (r *patientRepoPG) Birthdates(ctx context.Context) ([]Birthdate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, first_name, last_name, date_of_birth
		FROM patients WHERE date_of_birth IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("patient birthdates: %w", err)
	}
	defer rows.Close()

	var out []Birthdate
	for rows.Next() {
		var b Birthdate
		if err := rows.Scan(&b.ID, &b.FirstName, &b.LastName, &b.DateOfBirth); err != nil {
			return nil, fmt.Errorf("patient birthdates: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) page(ctx context.Context, q *db.SearchQuery, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	rows, err := r.db.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient query: %w", err)
	}
	defer rows.Close()

	patients := make([]*Patient, 0, limit)
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient query: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patient query: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob *time.Time
	var notes clinicalNotes
	if err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName,
		&p.Email, &p.Phone, &dob, &p.Address,
		&notes.MedicalHistory, &notes.DentalHistory, &notes.Allergies,
		&p.EmergencyContact, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dob != nil {
		y, m, d := dob.Date()
		date := NewDate(y, m, d)
		p.DateOfBirth = &date
	}
	if err := r.notes.open(&p, notes); err != nil {
		return nil, err
	}
	return &p, nil
}

func dobArg(p *Patient) *time.Time {
	if p.DateOfBirth == nil {
		return nil
	}
	t := p.DateOfBirth.Time
	return &t
}

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
