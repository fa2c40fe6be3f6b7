package crypto

import (
	"bytes"
	"errors"
	"testing"
)

// cheapKDF keeps tests fast; cost parameters do not change the contract.
var cheapKDF = KDFParams{Time: 1, Memory: 1024, Threads: 1}

func TestDerive_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	key1, err := cheapKDF.Derive("test-secret-123", salt)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	key2, _ := cheapKDF.Derive("test-secret-123", salt)

	if len(key1) != 32 {
		t.Fatalf("expected key length 32, got %d", len(key1))
	}
	if !bytes.Equal(key1, key2) {
		t.Fatal("same secret and salt should produce the same key")
	}
}

func TestDerive_InputsChangeKey(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	base, _ := cheapKDF.Derive("secret-one", salt)

	other, _ := cheapKDF.Derive("secret-two", salt)
	if bytes.Equal(base, other) {
		t.Fatal("different secrets should produce different keys")
	}

	resalted, _ := cheapKDF.Derive("secret-one", []byte("fedcba9876543210fedcba9876543210"))
	if bytes.Equal(base, resalted) {
		t.Fatal("different salts should produce different keys")
	}

	costlier := cheapKDF
	costlier.Time = 2
	if k, _ := costlier.Derive("secret-one", salt); bytes.Equal(base, k) {
		t.Fatal("different cost parameters should produce different keys")
	}
}

func TestDerive_RejectsBadInput(t *testing.T) {
	if _, err := cheapKDF.Derive("", GenerateSalt()); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("empty secret: err = %v, want ErrEmptySecret", err)
	}
	if _, err := cheapKDF.Derive("secret", []byte("short")); !errors.Is(err, ErrShortSalt) {
		t.Fatalf("short salt: err = %v, want ErrShortSalt", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	salt1 := GenerateSalt()
	salt2 := GenerateSalt()

	if len(salt1) != 32 || len(salt2) != 32 {
		t.Fatalf("expected salt length 32, got %d and %d", len(salt1), len(salt2))
	}
	if bytes.Equal(salt1, salt2) {
		t.Fatal("two generated salts should not be equal")
	}
}
