package seal

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

// Cheap key derivation keeps the tests fast.
var testParams = Params{Time: 1, Memory: 1024, Threads: 1}

func TestSealOpen(t *testing.T) {
	plaintext := []byte(`{"type":"fieldstore-backup","version":1}`)
	pass := []byte("correct horse")

	for _, alg := range []Algorithm{AESGCM, ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			sealed, err := SealWith(plaintext, pass, "backup", alg, testParams)
			if err != nil {
				t.Fatalf("SealWith() error = %v", err)
			}
			if bytes.Contains(sealed, []byte("fieldstore-backup")) {
				t.Error("sealed document leaks plaintext")
			}
			if !IsSealed(sealed) {
				t.Error("IsSealed() = false")
			}

			var env Envelope
			if err := json.Unmarshal(sealed, &env); err != nil {
				t.Fatal(err)
			}
			if env.Algorithm != alg || env.KDF != testParams || len(env.Salt) != 16 {
				t.Errorf("envelope = %+v", env)
			}

			got, err := Open(sealed, pass, "backup")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("Open() = %q", got)
			}
		})
	}
}

func TestSeal_FreshSaltAndNonce(t *testing.T) {
	pass := []byte("correct horse")
	a, err := SealWith([]byte("x"), pass, "", AESGCM, testParams)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SealWith([]byte("x"), pass, "", AESGCM, testParams)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two seals of the same input are identical")
	}
}

func TestOpen_Errors(t *testing.T) {
	pass := []byte("correct horse")
	sealed, err := SealWith([]byte("secret"), pass, "backup", ChaCha20, testParams)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		data    []byte
		pass    string
		label   string
		wantErr error
	}{
		{"wrong passphrase", sealed, "battery staple", "backup", ErrDecryptionFailed},
		{"wrong label", sealed, "correct horse", "snapshot", ErrDecryptionFailed},
		{"plain json", []byte(`{"type":"fieldstore-backup"}`), "correct horse", "backup", ErrNotSealed},
		{"not json", []byte("hello"), "correct horse", "backup", ErrNotSealed},
		{"tampered", bytes.Replace(sealed, []byte(`"data": "`), []byte(`"data": "AAAA`), 1), "correct horse", "backup", ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data, []byte(tt.pass), tt.label)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeal_ShortPassphrase(t *testing.T) {
	if _, err := Seal([]byte("x"), []byte("short"), ""); !errors.Is(err, ErrPassphraseTooShort) {
		t.Errorf("error = %v, want ErrPassphraseTooShort", err)
	}
}

func TestPreferredAlgorithm(t *testing.T) {
	switch alg := PreferredAlgorithm(); alg {
	case AESGCM, ChaCha20:
	default:
		t.Errorf("PreferredAlgorithm() = %q", alg)
	}
}
