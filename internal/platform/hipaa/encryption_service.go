package hipaa

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// EncryptionService is the FieldEncryptor handed to repositories. With no
// key configured it is disabled and passes values through unchanged.
type EncryptionService struct {
	encryptor *PHIEncryptor
}

// NewEncryptionService builds the service from a hex-encoded 32-byte key.
// An empty key disables encryption (development only; config validation
// rejects it in production). A malformed key is an error so the server
// refuses to start.
func NewEncryptionService(key string, logger zerolog.Logger) (*EncryptionService, error) {
	if key == "" {
		logger.Warn().Msg("clinical note encryption disabled: HIPAA_ENCRYPTION_KEY is not set")
		return &EncryptionService{}, nil
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	enc, err := NewPHIEncryptor(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create PHI encryptor: %w", err)
	}

	logger.Info().Msg("clinical note encryption enabled")
	return &EncryptionService{encryptor: enc}, nil
}

func (s *EncryptionService) IsEnabled() bool {
	return s != nil && s.encryptor != nil
}

func (s *EncryptionService) Encrypt(value string) (string, error) {
	if !s.IsEnabled() {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

// Decrypt still refuses ciphertext when disabled: returning the raw
// envelope to a client would look like corrupted notes.
func (s *EncryptionService) Decrypt(value string) (string, error) {
	if !s.IsEnabled() {
		if IsEncrypted(value) {
			return "", fmt.Errorf("%w: encryption key not configured", ErrCiphertextCorrupt)
		}
		return value, nil
	}
	return s.encryptor.Decrypt(value)
}
