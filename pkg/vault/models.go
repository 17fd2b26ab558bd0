// Package vault implements the vault engine: the shared data model, the
// storage contracts any backing store must satisfy, and the Manager that
// orchestrates the credential lifecycle behind the lock gate.
package vault

import (
	"time"

	"github.com/google/uuid"
)

// BreachState is the tri-state breach status of a credential. It only
// transitions via an explicit breach check or manual override, never
// silently.
type BreachState int

const (
	// BreachUnknown means the credential was never checked. Default.
	BreachUnknown BreachState = iota
	// BreachSafe means the last check found no match in the breach corpus.
	BreachSafe
	// BreachCompromised means the password appeared in the breach corpus.
	BreachCompromised
)

// String returns a human-readable representation of the breach state.
func (s BreachState) String() string {
	switch s {
	case BreachSafe:
		return "safe"
	case BreachCompromised:
		return "compromised"
	default:
		return "unknown"
	}
}

// BreachStateFromInt converts a persisted integer to a BreachState.
// Out-of-range values map to BreachUnknown.
func BreachStateFromInt(v int) BreachState {
	switch v {
	case 1:
		return BreachSafe
	case 2:
		return BreachCompromised
	default:
		return BreachUnknown
	}
}

// Secret is the plaintext payload of a credential. It is never persisted
// unencrypted and exists only transiently in memory while the vault is
// unlocked.
type Secret struct {
	Password     string            `json:"password"`
	Notes        string            `json:"notes,omitempty"`
	TOTP         string            `json:"totp,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Credential is the stored record for one login. The UUID is immutable
// identity, assigned once at creation. SecretEnc is the opaque encrypted
// container holding the Secret; it is only decryptable under the same master
// password and the same "site:username" context that produced it.
type Credential struct {
	UUID        string      `json:"uuid"`
	Site        string      `json:"site"`
	Username    string      `json:"username"`
	SecretEnc   string      `json:"secret_enc"`
	Tags        []string    `json:"tags"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	Strength    int         `json:"strength"`
	BreachState BreachState `json:"breach_state"`
}

// NewCredential creates a credential with a fresh UUID, both timestamps set
// to now, and the default breach state.
func NewCredential(site, username, secretEnc string) *Credential {
	now := time.Now().UTC()
	return &Credential{
		UUID:        uuid.NewString(),
		Site:        site,
		Username:    username,
		SecretEnc:   secretEnc,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		BreachState: BreachUnknown,
	}
}

// AppSettings are the KDF tuning parameters and feature flags. They are
// persisted as their own encrypted container under the fixed "app_settings"
// context, independent of credential encryption.
type AppSettings struct {
	Argon2MemoryKB    uint32            `json:"argon2_memory_kb"`
	Argon2Iterations  uint32            `json:"argon2_iterations"`
	Argon2Parallelism uint8             `json:"argon2_parallelism"`
	UseBiometrics     bool              `json:"use_biometrics"`
	AutoLockTimeout   uint32            `json:"auto_lock_timeout"` // minutes, 0 = never
	EnableSync        bool              `json:"enable_sync"`
	SyncConfig        map[string]string `json:"sync_config,omitempty"`
}

// DefaultSettings returns the settings used before any have been saved, and
// whenever the vault is locked.
func DefaultSettings() AppSettings {
	return AppSettings{
		Argon2MemoryKB:    64 * 1024,
		Argon2Iterations:  3,
		Argon2Parallelism: 4,
		UseBiometrics:     true,
		AutoLockTimeout:   5,
	}
}

// AuditLogEntry is one append-only audit record. IDs are store-assigned and
// monotonically increasing. CredentialUUID is empty for entries not related
// to a specific credential.
type AuditLogEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Action         string    `json:"action"`
	CredentialUUID string    `json:"credential_uuid,omitempty"`
}

// Filter selects credentials in ListCredentials. All fields are optional and
// combine with AND; a zero field imposes no constraint.
type Filter struct {
	// SearchTerm matches as a case-insensitive substring of site OR
	// username.
	SearchTerm string
	// Tag matches exact membership in the credential's tag set.
	Tag string
	// MinStrength is an inclusive lower bound on the 0-100 strength score.
	MinStrength *int
	// BreachStateIs matches the breach state exactly.
	BreachStateIs *BreachState
}
