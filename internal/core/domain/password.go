package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2 parameters for user password hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// HashPassword computes an Argon2id hash of the password.
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrUserValidation.WithDetails("password is required")
	}

	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword checks a password against an encoded Argon2id hash.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
