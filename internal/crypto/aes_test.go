package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealer_SealOpen_Roundtrip(t *testing.T) {
	plaintext := []byte("hello, cumulus encryption!")
	s, err := NewSealer("strong-secret-42", GenerateSalt())
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	sealed, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed payload contains the plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(plaintext, opened) {
		t.Fatalf("opened text does not match original: got %q, want %q", opened, plaintext)
	}
}

func TestSealer_WrongSecret_Fails(t *testing.T) {
	salt := GenerateSalt()
	right, err := NewSealer("correct-secret", salt)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	wrong, err := NewSealer("wrong-secret", salt)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	sealed, err := right.Seal([]byte("secret data"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := wrong.Open(sealed); err == nil {
		t.Fatal("Open should fail with a key derived from another secret")
	}
}

func TestSealer_TamperedPayload_Fails(t *testing.T) {
	s, err := NewSealer("secret", GenerateSalt())
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	sealed, err := s.Seal([]byte("integrity matters"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := s.Open(sealed); err == nil {
		t.Fatal("Open should reject a modified payload")
	}
}

func TestSealer_ShortPayload(t *testing.T) {
	s, err := NewSealer("secret", GenerateSalt())
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	if _, err := s.Open([]byte{1, 2, 3}); !errors.Is(err, ErrSealedTooShort) {
		t.Fatalf("Open short payload: got %v, want ErrSealedTooShort", err)
	}
}

func TestNewSealer_EmptySecret(t *testing.T) {
	if _, err := NewSealer("", GenerateSalt()); err == nil {
		t.Fatal("NewSealer should reject an empty secret")
	}
}

func TestSealer_NonceIsFresh(t *testing.T) {
	s, err := NewSealer("secret", GenerateSalt())
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Fatal("sealing the same plaintext twice should not produce identical output")
	}
}
