package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

var (
	ErrPatientNotFound = errors.New("patient: not found")
	ErrInvalidInput    = errors.New("patient: invalid input")
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("date %q: expected YYYY-MM-DD", s)
	}
	y, m, d := t.Date()
	return NewDate(y, m, d), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Patient is a clinic patient record. MedicalHistory, DentalHistory and
// Allergies are clinical free text and are encrypted at rest when a key is
// configured.
type Patient struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	DateOfBirth      *Date     `json:"date_of_birth,omitempty"`
	Age              *int      `json:"age,omitempty"`
	Address          string    `json:"address,omitempty"`
	MedicalHistory   string    `json:"medical_history,omitempty"`
	DentalHistory    string    `json:"dental_history,omitempty"`
	Allergies        string    `json:"allergies,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AgeAt returns the patient's age in whole years on the given day. ok is
// false when no date of birth is recorded.
func (p *Patient) AgeAt(now time.Time) (age int, ok bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	return yearsBetween(p.DateOfBirth.Time, now), true
}

func yearsBetween(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// birthCutoff returns the latest date of birth of someone who is at least
// n years old on now. A Feb 29 anniversary in a common year maps to Feb 28.
func birthCutoff(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	cutoff := time.Date(y-n, m, d, 0, 0, 0, 0, time.UTC)
	if cutoff.Month() != m {
		cutoff = time.Date(y-n, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return cutoff
}

// Input carries the writable patient fields. nil means "not supplied", so
// the same type serves create and partial update.
type Input struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	DateOfBirth      *Date   `json:"date_of_birth"`
	Address          *string `json:"address"`
	MedicalHistory   *string `json:"medical_history"`
	DentalHistory    *string `json:"dental_history"`
	Allergies        *string `json:"allergies"`
	EmergencyContact *string `json:"emergency_contact"`
}

func inputRules(in *Input, now time.Time, nameRule validation.Rule) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&in.FirstName, nameRule, validation.By(notBlank), validation.Length(1, 100)),
		validation.Field(&in.LastName, nameRule, validation.By(notBlank), validation.Length(1, 100)),
		validation.Field(&in.Email, is.Email, validation.Length(0, 255)),
		validation.Field(&in.Phone, validation.Length(0, 30), validation.By(possiblePhone)),
		validation.Field(&in.DateOfBirth, validation.By(notAfter(now))),
	}
}

// ValidateCreate requires both names.
func (in Input) ValidateCreate(now time.Time) error {
	return validation.ValidateStruct(&in, inputRules(&in, now, validation.Required)...)
}

// ValidateUpdate allows omitted names but rejects blanking them.
func (in Input) ValidateUpdate(now time.Time) error {
	return validation.ValidateStruct(&in, inputRules(&in, now, validation.NilOrNotEmpty)...)
}

func notBlank(value interface{}) error {
	s, ok := value.(*string)
	if ok && s != nil && strings.TrimSpace(*s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// defaultPhoneRegion is assumed for numbers written without a country code.
const defaultPhoneRegion = "US"

func possiblePhone(value interface{}) error {
	s, ok := value.(*string)
	if !ok || s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	num, err := phonenumbers.Parse(*s, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func notAfter(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		d, ok := value.(*Date)
		if !ok || d == nil {
			return nil
		}
		if d.After(now) {
			return errors.New("must not be in the future")
		}
		return nil
	}
}

// Apply copies every supplied field onto p.
func (in Input) Apply(p *Patient) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FirstName, in.FirstName)
	set(&p.LastName, in.LastName)
	set(&p.Email, in.Email)
	set(&p.Phone, in.Phone)
	set(&p.Address, in.Address)
	set(&p.MedicalHistory, in.MedicalHistory)
	set(&p.DentalHistory, in.DentalHistory)
	set(&p.Allergies, in.Allergies)
	set(&p.EmergencyContact, in.EmergencyContact)
	if in.DateOfBirth != nil {
		d := *in.DateOfBirth
		p.DateOfBirth = &d
	}
}

// Filter narrows a search. Query matches first name, last name or email;
// Name matches first, last or full name. Both are case-insensitive
// substring matches. The age bounds are inclusive and only match patients
// with a recorded date of birth.
type Filter struct {
	Query  string
	Name   string
	MinAge *int
	MaxAge *int
}

func (f Filter) Validate() error {
	if f.MinAge != nil && *f.MinAge < 0 {
		return fmt.Errorf("%w: min_age must be non-negative", ErrInvalidInput)
	}
	if f.MaxAge != nil && *f.MaxAge < 0 {
		return fmt.Errorf("%w: max_age must be non-negative", ErrInvalidInput)
	}
	if f.MinAge != nil && f.MaxAge != nil && *f.MinAge > *f.MaxAge {
		return fmt.Errorf("%w: min_age must not exceed max_age", ErrInvalidInput)
	}
	return nil
}

// BirthRange translates the age bounds into date-of-birth bounds on now:
// dob <= latest and dob > earliestExclusive. Either may be nil.
func (f Filter) BirthRange(now time.Time) (latest, earliestExclusive *time.Time) {
	if f.MinAge != nil {
		t := birthCutoff(now, *f.MinAge)
		latest = &t
	}
	if f.MaxAge != nil {
		t := birthCutoff(now, *f.MaxAge+1)
		earliestExclusive = &t
	}
	return latest, earliestExclusive
}

// AgeEntry identifies the oldest or youngest patient in Stats.
type AgeEntry struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Age  int       `json:"age"`
}

type Stats struct {
	Total      int       `json:"total"`
	WithAge    int       `json:"with_age"`
	AverageAge float64   `json:"average_age"`
	Oldest     *AgeEntry `json:"oldest"`
	Youngest   *AgeEntry `json:"youngest"`
}

// Birthdate is the projection used for statistics.
type Birthdate struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}
