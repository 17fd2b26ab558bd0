package vault

import (
	"context"
	"errors"

	"github.com/passvault/passvault/pkg/crypto"
)

// Errors returned by the vault engine. The crypto sentinels are re-exported
// so callers can match the whole taxonomy through this package.
var (
	// ErrNotFound indicates the referenced credential UUID does not exist.
	ErrNotFound = errors.New("vault: credential not found")

	// ErrVaultLocked mirrors crypto.ErrVaultLocked for operations gated by
	// the manager itself.
	ErrVaultLocked = crypto.ErrVaultLocked
)

// CredentialStore persists credentials. Implementations must make each
// mutating operation atomic with exactly one audit-log append: if
// persistence fails no audit entry is written, and vice versa.
type CredentialStore interface {
	// AddCredential inserts a new credential and appends an audit entry
	// ("Added credential for <site>") in the same atomic unit.
	AddCredential(c *Credential) error

	// UpdateCredential overwrites an existing credential and appends an
	// audit entry in the same atomic unit. Returns ErrNotFound if the UUID
	// is absent; in that case nothing is written.
	UpdateCredential(c *Credential) error

	// DeleteCredential removes a credential and appends an audit entry in
	// the same atomic unit. It returns the deleted record's site so callers
	// can compose audit text without a second read. Returns ErrNotFound if
	// the UUID is absent.
	DeleteCredential(uuid string) (site string, err error)

	// GetCredential returns the stored record. Returns ErrNotFound if
	// absent.
	GetCredential(uuid string) (*Credential, error)

	// ListCredentials returns records matching the filter (nil means all),
	// ordered by site then username.
	ListCredentials(f *Filter) ([]*Credential, error)

	// UpdateBreachState sets the breach state and appends the matching
	// audit entry atomically. Returns ErrNotFound if the UUID is absent.
	UpdateBreachState(uuid string, state BreachState) error

	// CredentialExists reports whether the UUID is present.
	CredentialExists(uuid string) (bool, error)
}

// SettingsStore is pure opaque-blob storage for the two singleton records:
// the encrypted settings container and the master-password verifier hash.
// No encryption logic lives here.
type SettingsStore interface {
	// GetEncryptedSettings returns the stored nonce and ciphertext, or
	// (nil, nil, nil) when no settings have been saved.
	GetEncryptedSettings() (nonce, ciphertext []byte, err error)

	// SaveEncryptedSettings upserts the single settings row.
	SaveEncryptedSettings(nonce, ciphertext []byte) error

	// GetMasterPasswordHash returns the stored verifier, or "" when the
	// vault has never been initialized.
	GetMasterPasswordHash() (string, error)

	// SaveMasterPasswordHash upserts the single verifier row.
	SaveMasterPasswordHash(hash string) error
}

// AuditLog is the append-only audit trail. Entries are never updated or
// deleted by the engine.
type AuditLog interface {
	// AddEntry appends an entry and returns its store-assigned id.
	// credentialUUID may be empty for entries not tied to a credential.
	AddEntry(action, credentialUUID string) (int64, error)

	// Entries returns the most recent limit entries, newest first.
	Entries(limit int64) ([]AuditLogEntry, error)
}

// StrengthCalculator scores a password on the 0-100 scale. Implementations
// are pluggable; pkg/security provides the default.
type StrengthCalculator interface {
	Calculate(password string) int
}

// BreachChecker checks a password digest against a breach corpus. The input
// is the full 40-character hexadecimal SHA-1 digest computed locally by the
// engine; implementations must transmit at most a prefix of it (k-anonymity).
type BreachChecker interface {
	Check(ctx context.Context, sha1Hex string) (BreachState, error)
}
