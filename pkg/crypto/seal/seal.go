package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeType identifies sealed documents.
const EnvelopeType = "fieldstore-sealed"

// MinPassphraseLength is the shortest accepted passphrase.
const MinPassphraseLength = 8

// Errors returned by Seal and Open.
var (
	ErrPassphraseTooShort = fmt.Errorf("seal: passphrase must have at least %d characters", MinPassphraseLength)
	ErrNotSealed          = errors.New("seal: not a sealed document")
	ErrDecryptionFailed   = errors.New("seal: wrong passphrase or corrupted document")
)

// Algorithm names an AEAD cipher.
type Algorithm string

const (
	AESGCM   Algorithm = "aes-256-gcm"
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// Params are the argon2id key derivation parameters.
type Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultParams derive a key in well under a second on field hardware.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// Envelope is the sealed document.
type Envelope struct {
	Type      string    `json:"type"`
	Algorithm Algorithm `json:"algorithm"`
	KDF       Params    `json:"kdf"`
	Salt      []byte    `json:"salt"`
	Nonce     []byte    `json:"nonce"`
	Data      []byte    `json:"data"`
}

// PreferredAlgorithm returns the cipher for this host.
func PreferredAlgorithm() Algorithm {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return AESGCM
	default:
		return ChaCha20
	}
}

// Seal encrypts plaintext under passphrase with DefaultParams and the
// preferred cipher. label is authenticated but not encrypted; Open must
// be given the same label.
func Seal(plaintext, passphrase []byte, label string) ([]byte, error) {
	return SealWith(plaintext, passphrase, label, PreferredAlgorithm(), DefaultParams)
}

// SealWith is Seal with an explicit cipher and key derivation cost.
func SealWith(plaintext, passphrase []byte, label string, alg Algorithm, p Params) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooShort
	}

	env := Envelope{Type: EnvelopeType, Algorithm: alg, KDF: p, Salt: make([]byte, 16)}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, fmt.Errorf("seal: salt: %w", err)
	}
	aead, err := newAEAD(alg, deriveKey(passphrase, env.Salt, p))
	if err != nil {
		return nil, err
	}
	env.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	env.Data = aead.Seal(nil, env.Nonce, plaintext, []byte(label))
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts a sealed document.
func Open(data, passphrase []byte, label string) ([]byte, error) {
	env, ok := parse(data)
	if !ok {
		return nil, ErrNotSealed
	}
	if env.KDF.Time == 0 || env.KDF.Memory == 0 || env.KDF.Threads == 0 {
		return nil, fmt.Errorf("seal: invalid key derivation parameters %+v", env.KDF)
	}
	aead, err := newAEAD(env.Algorithm, deriveKey(passphrase, env.Salt, env.KDF))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Data, []byte(label))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data is a sealed document.
func IsSealed(data []byte) bool {
	_, ok := parse(data)
	return ok
}

func parse(data []byte) (*Envelope, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != EnvelopeType {
		return nil, false
	}
	return &env, true
}

func deriveKey(passphrase, salt []byte, p Params) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, 32)
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("seal: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("seal: unknown algorithm %q", alg)
	}
}
