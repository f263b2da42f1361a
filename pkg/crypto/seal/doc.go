// Package seal encrypts documents under a passphrase.
//
// A sealed document is a JSON envelope carrying the cipher name, the
// argon2id parameters and salt used to derive the key, the nonce and the
// ciphertext. The cipher follows the hardware: AES-256-GCM where the
// architecture accelerates AES, ChaCha20-Poly1305 elsewhere. Either one
// opens on any host.
package seal
