// Package crypto implements the vault's key management and authenticated
// encryption.
//
// A Service holds the master key derived from the vault's master password and
// moves between two states: Locked (no key material in memory) and Unlocked.
// All encryption is AES-256-GCM with caller-supplied associated data, so a
// ciphertext is bound to the context it was produced under and fails closed
// if either the ciphertext or the context is altered.
//
// Key derivation is Argon2id. The stored master-password verifier is a
// self-describing PHC string (see hash.go) carrying the algorithm, cost
// parameters, salt and digest; unlocking verifies against that record and
// re-derives the encryption key from the same stored salt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

const (
	// KeyLength is the length of the master key in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// SaltLength is the length of freshly generated KDF salts in bytes.
	SaltLength = 16
)

// Sentinel errors for the vault-wide failure taxonomy. Callers match these
// with errors.Is.
var (
	// ErrVaultLocked indicates an operation that needs key material was
	// attempted while no key is held.
	ErrVaultLocked = errors.New("crypto: vault is locked")

	// ErrAuthenticationFailed indicates the master password did not match
	// the stored verifier.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")

	// ErrKeyDerivation indicates malformed stored-hash data or a parameter
	// failure during key derivation.
	ErrKeyDerivation = errors.New("crypto: key derivation failed")

	// ErrEncryptionFailed indicates a cipher-level encryption failure.
	ErrEncryptionFailed = errors.New("crypto: encryption failed")

	// ErrDecryptionFailed indicates decryption or authentication-tag
	// verification failed. Tag failure means tampering or corruption and is
	// never downgraded to a generic I/O error.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")

	// ErrInvalidFormat indicates a malformed container, nonce or ciphertext
	// encoding.
	ErrInvalidFormat = errors.New("crypto: invalid format")
)

// Params are the Argon2id cost parameters. All three are caller-configurable
// through the application settings.
type Params struct {
	// MemoryKB is the memory cost in KiB.
	MemoryKB uint32
	// Iterations is the time cost.
	Iterations uint32
	// Parallelism is the degree of parallelism.
	Parallelism uint8
}

// DefaultParams follows the OWASP recommendation (64 MB, 3 iterations,
// 4 threads).
var DefaultParams = Params{MemoryKB: 64 * 1024, Iterations: 3, Parallelism: 4}

// HashStore persists the master-password verifier. The SQLite settings store
// satisfies this.
type HashStore interface {
	// GetMasterPasswordHash returns the stored PHC verifier string, or ""
	// when the vault has never been initialized.
	GetMasterPasswordHash() (string, error)

	// SaveMasterPasswordHash stores the PHC verifier string (upsert).
	SaveMasterPasswordHash(hash string) error
}

// container is the wire/storage representation of one AEAD operation, used
// for credential secrets. Settings keep nonce and ciphertext in separate
// columns instead and bypass this shape.
type container struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Service derives and holds the master key and performs authenticated
// encryption. It has no knowledge of vault contents.
//
// The internal mutex is held only for the duration of a single derive,
// encrypt or decrypt call and never across I/O; storage access for the
// verifier hash happens through the injected HashStore before key material
// is touched.
type Service struct {
	mu     sync.Mutex
	key    []byte // nil while locked
	params Params
	hashes HashStore
}

// NewService creates a Service in the Locked state.
func NewService(hashes HashStore, params Params) *Service {
	return &Service{params: params, hashes: hashes}
}

// Unlock derives the master key from the master password.
//
// If no verifier hash is stored yet this is vault creation: a fresh random
// salt is generated, the key and a PHC verifier are derived, and the verifier
// is persisted for future unlocks. Otherwise the password is checked against
// the stored verifier (constant-time digest comparison, no trial decryption)
// using the cost parameters embedded in the verifier itself, and only on
// success is the key re-derived from the verifier's salt.
//
// On any failure the Service stays Locked.
func (s *Service) Unlock(masterPassword string) error {
	stored, err := s.hashes.GetMasterPasswordHash()
	if err != nil {
		return fmt.Errorf("crypto: failed to load master password hash: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored == "" {
		return s.unlockNew(masterPassword)
	}

	hash, err := ParsePasswordHash(stored)
	if err != nil {
		return err
	}
	if !hash.Verify([]byte(masterPassword)) {
		return ErrAuthenticationFailed
	}

	s.key = hash.Key([]byte(masterPassword))
	return nil
}

// unlockNew handles first-time unlock: generate a salt, derive key and
// verifier, persist the verifier. Caller holds s.mu.
func (s *Service) unlockNew(masterPassword string) error {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("%w: salt generation: %v", ErrKeyDerivation, err)
	}

	hash := NewPasswordHash([]byte(masterPassword), salt, s.params)
	if err := s.hashes.SaveMasterPasswordHash(hash.String()); err != nil {
		return fmt.Errorf("crypto: failed to save master password hash: %w", err)
	}

	s.key = hash.Key([]byte(masterPassword))
	return nil
}

// Lock discards the key material and returns to the Locked state. The stored
// verifier hash is retained; it is needed for the next unlock and depends
// only on the password, not on the key.
func (s *Service) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		SecureWipe(s.key)
		s.key = nil
	}
}

// IsUnlocked reports whether key material is currently held.
func (s *Service) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != nil
}

// SetParams replaces the Argon2id cost parameters used for future verifier
// creation. Existing verifiers are unaffected: unlock always uses the
// parameters embedded in the stored hash.
func (s *Service) SetParams(params Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
}

// Encrypt encrypts plaintext bound to associatedData and returns a
// self-contained JSON container with base64-encoded nonce and ciphertext.
// This is the shape persisted in a credential's secret_enc field.
func (s *Service) Encrypt(plaintext, associatedData []byte) (string, error) {
	nonce, ciphertext, err := s.EncryptWithNonce(plaintext, associatedData)
	if err != nil {
		return "", err
	}

	c := container{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	out, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("%w: container encoding: %v", ErrEncryptionFailed, err)
	}
	return string(out), nil
}

// EncryptWithNonce encrypts plaintext bound to associatedData and returns the
// nonce and ciphertext separately, for stores that keep the nonce in its own
// column (the settings row).
func (s *Service) EncryptWithNonce(plaintext, associatedData []byte) (nonce, ciphertext []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil, nil, ErrVaultLocked
	}

	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	// Fresh random nonce per call. Reuse under the same key breaks GCM.
	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: nonce generation: %v", ErrEncryptionFailed, err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, associatedData)
	return nonce, ciphertext, nil
}

// Decrypt decrypts a JSON container produced by Encrypt. The associated data
// must match the value used at encryption time exactly or decryption fails.
func (s *Service) Decrypt(encryptedContainer string, associatedData []byte) ([]byte, error) {
	var c container
	if err := json.Unmarshal([]byte(encryptedContainer), &c); err != nil {
		return nil, fmt.Errorf("%w: container: %v", ErrInvalidFormat, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(c.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce encoding: %v", ErrInvalidFormat, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(c.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext encoding: %v", ErrInvalidFormat, err)
	}

	return s.DecryptWithNonce(ciphertext, associatedData, nonce)
}

// DecryptWithNonce decrypts raw ciphertext with a separately stored nonce.
func (s *Service) DecryptWithNonce(ciphertext, associatedData, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceLength {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidFormat, NonceLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil, ErrVaultLocked
	}

	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		// Authentication-tag mismatch: tamper or corruption.
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents the
// compiler from optimizing the writes away. Zeroization of key material on
// lock is a correctness requirement, not an optimization.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
