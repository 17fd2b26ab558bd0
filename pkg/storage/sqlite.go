// Package storage provides the SQLite reference implementation of the vault
// storage contracts: CredentialStore, SettingsStore and AuditLog, all backed
// by one transactional connection.
//
// Every mutation is paired with its audit-log append inside a single
// transaction, so a crash or error mid-operation leaves no partial state.
// The connection is guarded by a mutex; callers never hold it across an
// encryption operation.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/passvault/passvault/pkg/vault"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	nonce BLOB
);
CREATE TABLE IF NOT EXISTS vault_items (
	uuid TEXT PRIMARY KEY,
	site TEXT NOT NULL,
	username TEXT NOT NULL,
	secret_enc TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER,
	strength INTEGER NOT NULL DEFAULT 0,
	breach_state INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	action TEXT NOT NULL,
	item_uuid TEXT
);
CREATE INDEX IF NOT EXISTS idx_vault_site ON vault_items(site);
CREATE INDEX IF NOT EXISTS idx_vault_username ON vault_items(username);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
`

// Meta row keys for the singleton blobs.
const (
	metaSettingsKey = "settings"
	metaHashKey     = "master_password_hash"
)

// SQLiteStore backs all three storage contracts with one SQLite connection.
type SQLiteStore struct {
	mu  sync.Mutex
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}

	// Single-writer discipline: one connection, serialized through the
	// store mutex.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to initialize schema: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing database handle. The schema must already exist.
func New(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, log: logger}
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// addAuditTx appends an audit entry inside the given transaction.
func addAuditTx(tx *sql.Tx, action, itemUUID string) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO audit_log (timestamp, action, item_uuid) VALUES (?, ?, ?)`,
		time.Now().Unix(), action, nullString(itemUUID))
	if err != nil {
		return 0, fmt.Errorf("storage: failed to append audit entry: %w", err)
	}
	return res.LastInsertId()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// AddCredential inserts the credential and its audit entry in one
// transaction.
func (s *SQLiteStore) AddCredential(c *vault.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("storage: failed to serialize tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO vault_items (
			uuid, site, username, secret_enc, tags,
			created_at, updated_at, expires_at, strength, breach_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.Site, c.Username, c.SecretEnc, string(tagsJSON),
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(), nullUnix(c.ExpiresAt),
		c.Strength, int(c.BreachState))
	if err != nil {
		return fmt.Errorf("storage: failed to insert credential: %w", err)
	}

	if _, err := addAuditTx(tx, "Added credential for "+c.Site, c.UUID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: failed to commit transaction: %w", err)
	}

	s.log.Debug("credential row inserted", zap.String("uuid", c.UUID))
	return nil
}

// UpdateCredential overwrites the stored record and appends the audit entry
// in one transaction. Returns vault.ErrNotFound (writing nothing) if the
// UUID is absent.
func (s *SQLiteStore) UpdateCredential(c *vault.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("storage: failed to serialize tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE vault_items SET
			site = ?, username = ?, secret_enc = ?, tags = ?,
			updated_at = ?, expires_at = ?, strength = ?, breach_state = ?
		WHERE uuid = ?`,
		c.Site, c.Username, c.SecretEnc, string(tagsJSON),
		c.UpdatedAt.Unix(), nullUnix(c.ExpiresAt), c.Strength, int(c.BreachState),
		c.UUID)
	if err != nil {
		return fmt.Errorf("storage: failed to update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return vault.ErrNotFound
	}

	if _, err := addAuditTx(tx, "Updated credential for "+c.Site, c.UUID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteCredential removes the record and appends the audit entry in one
// transaction, returning the deleted record's site.
func (s *SQLiteStore) DeleteCredential(uuid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var site string
	err = tx.QueryRow(`SELECT site FROM vault_items WHERE uuid = ?`, uuid).Scan(&site)
	if errors.Is(err, sql.ErrNoRows) {
		return "", vault.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: failed to read credential: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM vault_items WHERE uuid = ?`, uuid); err != nil {
		return "", fmt.Errorf("storage: failed to delete credential: %w", err)
	}

	if _, err := addAuditTx(tx, "Deleted credential for "+site, uuid); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage: failed to commit transaction: %w", err)
	}
	return site, nil
}

// GetCredential returns the stored record, or vault.ErrNotFound.
func (s *SQLiteStore) GetCredential(uuid string) (*vault.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT uuid, site, username, secret_enc, tags,
			created_at, updated_at, expires_at, strength, breach_state
		FROM vault_items WHERE uuid = ?`, uuid)

	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CredentialExists reports whether the UUID is present.
func (s *SQLiteStore) CredentialExists(uuid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM vault_items WHERE uuid = ?`, uuid).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: failed to check credential: %w", err)
	}
	return n > 0, nil
}

// ListCredentials returns records matching the filter, ordered by site then
// username. All filter fields combine with AND.
func (s *SQLiteStore) ListCredentials(f *vault.Filter) ([]*vault.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT uuid, site, username, secret_enc, tags,
			created_at, updated_at, expires_at, strength, breach_state
		FROM vault_items`

	var conditions []string
	var args []any
	if f != nil {
		if f.SearchTerm != "" {
			conditions = append(conditions, "(site LIKE ? OR username LIKE ?)")
			like := "%" + f.SearchTerm + "%"
			args = append(args, like, like)
		}
		if f.Tag != "" {
			// Prefilter on the serialized array; exact membership is
			// verified after scanning.
			conditions = append(conditions, "tags LIKE ?")
			args = append(args, `%"`+f.Tag+`"%`)
		}
		if f.MinStrength != nil {
			conditions = append(conditions, "strength >= ?")
			args = append(args, *f.MinStrength)
		}
		if f.BreachStateIs != nil {
			conditions = append(conditions, "breach_state = ?")
			args = append(args, int(*f.BreachStateIs))
		}
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY site, username"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to query credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*vault.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		if f != nil && f.Tag != "" && !slices.Contains(c.Tags, f.Tag) {
			continue
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: error iterating credentials: %w", err)
	}
	return credentials, nil
}

// UpdateBreachState sets the state and appends the matching audit entry in
// one transaction. Returns vault.ErrNotFound (writing nothing) if absent.
func (s *SQLiteStore) UpdateBreachState(uuid string, state vault.BreachState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE vault_items SET breach_state = ? WHERE uuid = ?`,
		int(state), uuid)
	if err != nil {
		return fmt.Errorf("storage: failed to update breach state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return vault.ErrNotFound
	}

	var action string
	switch state {
	case vault.BreachSafe:
		action = "Marked credential as safe"
	case vault.BreachCompromised:
		action = "Marked credential as compromised"
	default:
		action = "Reset credential breach state"
	}
	if _, err := addAuditTx(tx, action, uuid); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: failed to commit transaction: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*vault.Credential, error) {
	var (
		c           vault.Credential
		tagsJSON    string
		createdTS   int64
		updatedTS   int64
		expiresTS   sql.NullInt64
		breachState int
	)
	err := row.Scan(&c.UUID, &c.Site, &c.Username, &c.SecretEnc, &tagsJSON,
		&createdTS, &updatedTS, &expiresTS, &c.Strength, &breachState)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to scan credential: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("storage: failed to deserialize tags: %w", err)
	}
	c.CreatedAt = time.Unix(createdTS, 0).UTC()
	c.UpdatedAt = time.Unix(updatedTS, 0).UTC()
	if expiresTS.Valid {
		t := time.Unix(expiresTS.Int64, 0).UTC()
		c.ExpiresAt = &t
	}
	c.BreachState = vault.BreachStateFromInt(breachState)
	return &c, nil
}

// GetEncryptedSettings returns the stored settings nonce and ciphertext, or
// (nil, nil, nil) when nothing has been saved yet.
func (s *SQLiteStore) GetEncryptedSettings() ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nonce, ciphertext []byte
	err := s.db.QueryRow(`SELECT nonce, value FROM meta WHERE key = ?`, metaSettingsKey).
		Scan(&nonce, &ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: failed to read settings: %w", err)
	}
	return nonce, ciphertext, nil
}

// SaveEncryptedSettings upserts the single settings row.
func (s *SQLiteStore) SaveEncryptedSettings(nonce, ciphertext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, nonce, value) VALUES (?, ?, ?)`,
		metaSettingsKey, nonce, ciphertext)
	if err != nil {
		return fmt.Errorf("storage: failed to save settings: %w", err)
	}
	return nil
}

// GetMasterPasswordHash returns the stored verifier, or "" when the vault
// has never been initialized.
func (s *SQLiteStore) GetMasterPasswordHash() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaHashKey).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: failed to read master password hash: %w", err)
	}
	return hash, nil
}

// SaveMasterPasswordHash upserts the single verifier row.
func (s *SQLiteStore) SaveMasterPasswordHash(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaHashKey, hash)
	if err != nil {
		return fmt.Errorf("storage: failed to save master password hash: %w", err)
	}
	return nil
}

// AddEntry appends a standalone audit entry outside any transaction.
func (s *SQLiteStore) AddEntry(action, credentialUUID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO audit_log (timestamp, action, item_uuid) VALUES (?, ?, ?)`,
		time.Now().Unix(), action, nullString(credentialUUID))
	if err != nil {
		return 0, fmt.Errorf("storage: failed to append audit entry: %w", err)
	}
	return res.LastInsertId()
}

// Entries returns the most recent limit entries, newest first.
func (s *SQLiteStore) Entries(limit int64) ([]vault.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, action, item_uuid FROM audit_log
		ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []vault.AuditLogEntry
	for rows.Next() {
		var (
			e        vault.AuditLogEntry
			ts       int64
			itemUUID sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Action, &itemUUID); err != nil {
			return nil, fmt.Errorf("storage: failed to scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.CredentialUUID = itemUUID.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: error iterating audit log: %w", err)
	}
	return entries, nil
}
