package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// MinSaltLen is the shortest salt DeriveKey accepts.
const MinSaltLen = 16

var (
	ErrEmptySecret = errors.New("empty secret")
	ErrShortSalt   = fmt.Errorf("salt shorter than %d bytes", MinSaltLen)
)

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDF costs roughly 64 MiB and a few tens of milliseconds per key.
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// Derive stretches secret into a 256-bit key.
func (p KDFParams) Derive(secret string, salt []byte) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(salt) < MinSaltLen {
		return nil, ErrShortSalt
	}
	return argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Threads, 32), nil
}

// DeriveKey derives a key with DefaultKDF.
func DeriveKey(secret string, salt []byte) ([]byte, error) {
	return DefaultKDF.Derive(secret, salt)
}

// GenerateSalt returns 32 random bytes.
func GenerateSalt() []byte {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return salt
}
