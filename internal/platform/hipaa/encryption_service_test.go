package hipaa

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEncryptionService_Disabled(t *testing.T) {
	svc, err := NewEncryptionService("", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.IsEnabled() {
		t.Error("expected encryption to be disabled without a key")
	}

	got, err := svc.Encrypt("Penicillin")
	if err != nil || got != "Penicillin" {
		t.Errorf("expected passthrough, got %q, %v", got, err)
	}
	got, err = svc.Decrypt("Penicillin")
	if err != nil || got != "Penicillin" {
		t.Errorf("expected passthrough, got %q, %v", got, err)
	}
}

func TestNewEncryptionService_InvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "abcd"},
		{"too long", strings.Repeat("ab", 48)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEncryptionService(tt.key, zerolog.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncryptionService_Enabled(t *testing.T) {
	key := hex.EncodeToString(generateTestKey(t))
	svc, err := NewEncryptionService(key, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatal("expected encryption to be enabled")
	}

	ct, err := svc.Encrypt("Bruxism, night guard fitted")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsEncrypted(ct) {
		t.Errorf("expected ciphertext, got %q", ct)
	}
	pt, err := svc.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "Bruxism, night guard fitted" {
		t.Errorf("unexpected plaintext %q", pt)
	}
}

func TestEncryptionService_DisabledRejectsCiphertext(t *testing.T) {
	on, err := NewEncryptionService(hex.EncodeToString(generateTestKey(t)), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct, err := on.Encrypt("Asthma")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	off, _ := NewEncryptionService("", zerolog.Nop())
	if _, err := off.Decrypt(ct); !errors.Is(err, ErrCiphertextCorrupt) {
		t.Errorf("expected ErrCiphertextCorrupt, got %v", err)
	}
}

func TestEncryptionService_ImplementsFieldEncryptor(t *testing.T) {
	var _ FieldEncryptor = (*EncryptionService)(nil)
	var _ FieldEncryptor = (*PHIEncryptor)(nil)
}
