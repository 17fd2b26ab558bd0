package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// phcVersion is the Argon2 version emitted in PHC strings (0x13).
const phcVersion = 19

// PasswordHash is a parsed Argon2id verifier in PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<b64 salt>$<b64 digest>
//
// The record is self-describing: the cost parameters and salt that produced
// the digest travel with it, so verification never depends on the live
// settings.
type PasswordHash struct {
	Params Params
	Salt   []byte
	Digest []byte
}

// NewPasswordHash derives a verifier for password under the given salt and
// parameters.
func NewPasswordHash(password, salt []byte, params Params) *PasswordHash {
	digest := argon2.IDKey(password, salt, params.Iterations, params.MemoryKB, params.Parallelism, KeyLength)
	return &PasswordHash{Params: params, Salt: salt, Digest: digest}
}

// ParsePasswordHash parses a PHC string produced by String. Malformed input
// fails with ErrKeyDerivation.
func ParsePasswordHash(s string) (*PasswordHash, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: invalid stored hash format", ErrKeyDerivation)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != phcVersion {
		return nil, fmt.Errorf("%w: unsupported hash version %q", ErrKeyDerivation, parts[2])
	}

	var h PasswordHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&h.Params.MemoryKB, &h.Params.Iterations, &h.Params.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: invalid hash parameters %q", ErrKeyDerivation, parts[3])
	}
	if h.Params.MemoryKB == 0 || h.Params.Iterations == 0 || h.Params.Parallelism == 0 {
		return nil, fmt.Errorf("%w: zero cost parameter in stored hash", ErrKeyDerivation)
	}

	var err error
	if h.Salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: invalid salt encoding: %v", ErrKeyDerivation, err)
	}
	if h.Digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: invalid digest encoding: %v", ErrKeyDerivation, err)
	}
	if len(h.Salt) == 0 || len(h.Digest) == 0 {
		return nil, fmt.Errorf("%w: missing salt or digest in stored hash", ErrKeyDerivation)
	}

	return &h, nil
}

// String encodes the verifier in PHC format for storage.
func (h *PasswordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		h.Params.MemoryKB, h.Params.Iterations, h.Params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Digest))
}

// Verify reports whether password matches the stored digest. The comparison
// is constant time.
func (h *PasswordHash) Verify(password []byte) bool {
	candidate := argon2.IDKey(password, h.Salt, h.Params.Iterations, h.Params.MemoryKB, h.Params.Parallelism, uint32(len(h.Digest)))
	return subtle.ConstantTimeCompare(candidate, h.Digest) == 1
}

// Key derives the 256-bit encryption key for password from this verifier's
// salt and parameters.
//
// Key mode feeds Argon2 the salt's base64 text form while the verifier
// digest uses the raw salt bytes: both derivations share the one stored
// salt, but the persisted digest never equals the encryption key.
func (h *PasswordHash) Key(password []byte) []byte {
	keySalt := []byte(base64.RawStdEncoding.EncodeToString(h.Salt))
	return argon2.IDKey(password, keySalt, h.Params.Iterations, h.Params.MemoryKB, h.Params.Parallelism, KeyLength)
}
