package vault

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/passvault/passvault/pkg/crypto"
)

// settingsContext is the fixed associated-data context for the settings
// container.
const settingsContext = "app_settings"

// DefaultAuditLimit is the number of audit entries returned when no limit is
// given.
const DefaultAuditLimit = 100

// secretContext builds the associated-data context binding a credential's
// secret to its site and username.
func secretContext(site, username string) []byte {
	return []byte(site + ":" + username)
}

// ManagerConfig collects the collaborators a Manager is built from. All
// fields except Logger are required.
type ManagerConfig struct {
	Crypto      *crypto.Service
	Credentials CredentialStore
	Settings    SettingsStore
	Audit       AuditLog
	Strength    StrengthCalculator
	Breach      BreachChecker
	Logger      *zap.Logger
}

// Manager is the orchestrator callers interact with. It enforces the lock
// gate before every data operation and keeps encryption, persistence and
// audit logging consistent.
//
// The manager's own mutex guards only the unlocked flag and the activity
// timestamp. The crypto mutex and the storage mutex are never held together:
// encryption happens before or after a store call, never interleaved.
type Manager struct {
	mu           sync.Mutex
	unlocked     bool
	lastActivity time.Time

	crypto   *crypto.Service
	creds    CredentialStore
	settings SettingsStore
	audit    AuditLog
	strength StrengthCalculator
	breach   BreachChecker
	log      *zap.Logger
}

// NewManager creates a Manager in the locked state.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		crypto:   cfg.Crypto,
		creds:    cfg.Credentials,
		settings: cfg.Settings,
		audit:    cfg.Audit,
		strength: cfg.Strength,
		breach:   cfg.Breach,
		log:      logger,
	}
}

// Unlock unlocks the vault with the master password. On the very first
// unlock this creates the vault (see crypto.Service.Unlock). Failed attempts
// leave the state unchanged and are audit-logged without a credential uuid.
func (m *Manager) Unlock(masterPassword string) error {
	if err := m.crypto.Unlock(masterPassword); err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			m.addAuditBestEffort("Failed unlock attempt", "")
			m.log.Warn("unlock failed: wrong master password")
		}
		return err
	}

	m.mu.Lock()
	m.unlocked = true
	m.lastActivity = time.Now()
	m.mu.Unlock()

	m.addAuditBestEffort("Vault unlocked", "")
	m.log.Info("vault unlocked")
	return nil
}

// Lock locks the vault and zeroizes key material. Locking an already locked
// vault is a no-op with no audit entry.
func (m *Manager) Lock() {
	m.mu.Lock()
	wasUnlocked := m.unlocked
	m.unlocked = false
	m.mu.Unlock()

	m.crypto.Lock()

	if wasUnlocked {
		m.addAuditBestEffort("Vault locked", "")
		m.log.Info("vault locked")
	}
}

// IsUnlocked reports whether the vault is unlocked.
func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked
}

// LastActivity returns the time of the most recent successful gated
// operation. The auto-lock monitor uses this.
func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// ensureUnlocked is the lock gate. Every data operation calls it first and
// fails with ErrVaultLocked while locked; none silently no-op.
func (m *Manager) ensureUnlocked() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return ErrVaultLocked
	}
	m.lastActivity = time.Now()
	return nil
}

// AddCredential encrypts the secret under the "site:username" context,
// scores its strength, and persists the new credential atomically with an
// audit entry. The returned credential carries metadata only; the plaintext
// secret is never returned here.
func (m *Manager) AddCredential(site, username string, secret Secret, tags []string) (*Credential, error) {
	if err := m.ensureUnlocked(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(secret)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to serialize secret: %w", err)
	}

	secretEnc, err := m.crypto.Encrypt(payload, secretContext(site, username))
	if err != nil {
		return nil, err
	}

	c := NewCredential(site, username, secretEnc)
	if len(tags) > 0 {
		c.Tags = append([]string{}, tags...)
	}
	c.Strength = m.strength.Calculate(secret.Password)

	if err := m.creds.AddCredential(c); err != nil {
		return nil, err
	}

	m.log.Debug("credential added",
		zap.String("uuid", c.UUID), zap.String("site", site))
	return c, nil
}

// UpdateCredential re-encrypts the secret under the (possibly new)
// site/username context, recomputes strength, and persists the update
// atomically with an audit entry. CreatedAt and BreachState are preserved
// from the existing record; UpdatedAt is refreshed. Fails with ErrNotFound
// if the UUID does not exist.
func (m *Manager) UpdateCredential(uuid, site, username string, secret Secret, tags []string, expiresAt *time.Time) error {
	if err := m.ensureUnlocked(); err != nil {
		return err
	}

	existing, err := m.creds.GetCredential(uuid)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("vault: failed to serialize secret: %w", err)
	}

	secretEnc, err := m.crypto.Encrypt(payload, secretContext(site, username))
	if err != nil {
		return err
	}

	updated := &Credential{
		UUID:        uuid,
		Site:        site,
		Username:    username,
		SecretEnc:   secretEnc,
		Tags:        append([]string{}, tags...),
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
		Strength:    m.strength.Calculate(secret.Password),
		BreachState: existing.BreachState,
	}

	if err := m.creds.UpdateCredential(updated); err != nil {
		return err
	}

	m.log.Debug("credential updated", zap.String("uuid", uuid))
	return nil
}

// DeleteCredential removes the record, atomically with an audit entry, and
// returns the deleted record's site. Fails with ErrNotFound if absent.
func (m *Manager) DeleteCredential(uuid string) (string, error) {
	if err := m.ensureUnlocked(); err != nil {
		return "", err
	}

	site, err := m.creds.DeleteCredential(uuid)
	if err != nil {
		return "", err
	}

	m.log.Debug("credential deleted",
		zap.String("uuid", uuid), zap.String("site", site))
	return site, nil
}

// GetCredential returns metadata only; it never decrypts.
func (m *Manager) GetCredential(uuid string) (*Credential, error) {
	if err := m.ensureUnlocked(); err != nil {
		return nil, err
	}
	return m.creds.GetCredential(uuid)
}

// DecryptSecret decrypts the credential's secret using the context derived
// from its stored site and username. This is the only path that reveals
// plaintext; callers must request it deliberately and separately from
// metadata retrieval.
func (m *Manager) DecryptSecret(uuid string) (*Secret, error) {
	if err := m.ensureUnlocked(); err != nil {
		return nil, err
	}

	c, err := m.creds.GetCredential(uuid)
	if err != nil {
		return nil, err
	}
	return m.decryptCredential(c)
}

// decryptCredential decrypts an already fetched record. Caller has passed
// the lock gate.
func (m *Manager) decryptCredential(c *Credential) (*Secret, error) {
	plaintext, err := m.crypto.Decrypt(c.SecretEnc, secretContext(c.Site, c.Username))
	if err != nil {
		return nil, err
	}

	var secret Secret
	if err := json.Unmarshal(plaintext, &secret); err != nil {
		return nil, fmt.Errorf("vault: failed to deserialize secret: %w", err)
	}
	return &secret, nil
}

// ListCredentials returns records matching the filter (nil means all),
// ordered by site then username. No decryption is performed.
func (m *Manager) ListCredentials(f *Filter) ([]*Credential, error) {
	if err := m.ensureUnlocked(); err != nil {
		return nil, err
	}
	return m.creds.ListCredentials(f)
}

// UpdateBreachState sets the breach state explicitly, atomically with the
// matching audit entry. Fails with ErrNotFound if absent.
func (m *Manager) UpdateBreachState(uuid string, state BreachState) error {
	if err := m.ensureUnlocked(); err != nil {
		return err
	}

	if err := m.creds.UpdateBreachState(uuid, state); err != nil {
		return err
	}

	m.log.Debug("breach state updated",
		zap.String("uuid", uuid), zap.Stringer("state", state))
	return nil
}

// CheckBreach checks a credential's password against the breach corpus and
// persists the result. The SHA-1 digest is computed locally; only the
// injected BreachChecker sees it, and only a prefix of it leaves the
// process.
//
// Decryption happens under brief locks before the network call; the network
// call runs with no vault lock held; the result is written back afterwards.
func (m *Manager) CheckBreach(ctx context.Context, uuid string) (BreachState, error) {
	secret, err := m.DecryptSecret(uuid)
	if err != nil {
		return BreachUnknown, err
	}

	sum := sha1.Sum([]byte(secret.Password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))

	state, err := m.breach.Check(ctx, digest)
	if err != nil {
		m.log.Warn("breach check failed", zap.String("uuid", uuid), zap.Error(err))
		return BreachUnknown, err
	}

	if err := m.UpdateBreachState(uuid, state); err != nil {
		return BreachUnknown, err
	}
	return state, nil
}

// GetSettings returns the decrypted settings. While locked it returns
// defaults without error: settings are non-secret defaults the UI needs
// before authentication, not an error condition. This is the only place an
// error is absorbed into a default value.
func (m *Manager) GetSettings() (AppSettings, error) {
	if !m.IsUnlocked() {
		return DefaultSettings(), nil
	}

	nonce, ciphertext, err := m.settings.GetEncryptedSettings()
	if err != nil {
		return AppSettings{}, err
	}
	if nonce == nil {
		// Nothing saved yet.
		return DefaultSettings(), nil
	}

	plaintext, err := m.crypto.DecryptWithNonce(ciphertext, []byte(settingsContext), nonce)
	if err != nil {
		return AppSettings{}, err
	}

	var settings AppSettings
	if err := json.Unmarshal(plaintext, &settings); err != nil {
		return AppSettings{}, fmt.Errorf("vault: failed to deserialize settings: %w", err)
	}
	return settings, nil
}

// SaveSettings encrypts and persists the settings, audit-logs the change,
// and updates the live KDF parameters used for future key derivation. The
// existing master-password verifier keeps its own embedded parameters and is
// not re-hashed.
func (m *Manager) SaveSettings(settings AppSettings) error {
	if err := m.ensureUnlocked(); err != nil {
		return err
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("vault: failed to serialize settings: %w", err)
	}

	nonce, ciphertext, err := m.crypto.EncryptWithNonce(payload, []byte(settingsContext))
	if err != nil {
		return err
	}

	if err := m.settings.SaveEncryptedSettings(nonce, ciphertext); err != nil {
		return err
	}

	m.crypto.SetParams(crypto.Params{
		MemoryKB:    settings.Argon2MemoryKB,
		Iterations:  settings.Argon2Iterations,
		Parallelism: settings.Argon2Parallelism,
	})

	if _, err := m.audit.AddEntry("Updated app settings", ""); err != nil {
		return err
	}

	m.log.Info("settings saved")
	return nil
}

// GetAuditLog returns the most recent limit entries, newest first. A limit
// of zero or less means DefaultAuditLimit.
func (m *Manager) GetAuditLog(limit int64) ([]AuditLogEntry, error) {
	if err := m.ensureUnlocked(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return m.audit.Entries(limit)
}

// addAuditBestEffort writes a standalone audit entry for lock-state
// transitions. These are not paired with a data mutation, so a failing
// append must not undo the transition itself; it is logged instead.
func (m *Manager) addAuditBestEffort(action, credentialUUID string) {
	if _, err := m.audit.AddEntry(action, credentialUUID); err != nil {
		m.log.Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}
