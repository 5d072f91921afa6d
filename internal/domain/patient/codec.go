package patient

import (
	"fmt"

	"github.com/clinic/clinic/internal/platform/hipaa"
)

// clinicalNotes holds the encrypted-at-rest fields in storage form.
type clinicalNotes struct {
	MedicalHistory string
	DentalHistory  string
	Allergies      string
}

// noteCodec seals and opens clinical notes. A nil encryptor stores
// plaintext.
type noteCodec struct {
	enc hipaa.FieldEncryptor
}

func (c noteCodec) seal(p *Patient) (clinicalNotes, error) {
	if c.enc == nil {
		return clinicalNotes{p.MedicalHistory, p.DentalHistory, p.Allergies}, nil
	}
	var out clinicalNotes
	var err error
	if out.MedicalHistory, err = c.enc.Encrypt(p.MedicalHistory); err != nil {
		return out, fmt.Errorf("encrypt medical_history: %w", err)
	}
	if out.DentalHistory, err = c.enc.Encrypt(p.DentalHistory); err != nil {
		return out, fmt.Errorf("encrypt dental_history: %w", err)
	}
	if out.Allergies, err = c.enc.Encrypt(p.Allergies); err != nil {
		return out, fmt.Errorf("encrypt allergies: %w", err)
	}
	return out, nil
}

func (c noteCodec) open(p *Patient, n clinicalNotes) error {
	if c.enc == nil {
		p.MedicalHistory, p.DentalHistory, p.Allergies = n.MedicalHistory, n.DentalHistory, n.Allergies
		return nil
	}
	var err error
	if p.MedicalHistory, err = c.enc.Decrypt(n.MedicalHistory); err != nil {
		return fmt.Errorf("decrypt medical_history: %w", err)
	}
	if p.DentalHistory, err = c.enc.Decrypt(n.DentalHistory); err != nil {
		return fmt.Errorf("decrypt dental_history: %w", err)
	}
	if p.Allergies, err = c.enc.Decrypt(n.Allergies); err != nil {
		return fmt.Errorf("decrypt allergies: %w", err)
	}
	return nil
}
