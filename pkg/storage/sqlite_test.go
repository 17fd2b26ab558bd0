package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/passvault/passvault/pkg/vault"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vault.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addTestCredential(t *testing.T, store *SQLiteStore, site, username string, strength int, tags ...string) *vault.Credential {
	t.Helper()
	c := vault.NewCredential(site, username, `{"nonce":"","ciphertext":""}`)
	c.Strength = strength
	c.Tags = append(c.Tags, tags...)
	if err := store.AddCredential(c); err != nil {
		t.Fatalf("AddCredential(%s) error = %v", site, err)
	}
	return c
}

func TestAddGetCredential(t *testing.T) {
	store := newTestStore(t)

	expires := time.Now().Add(90 * 24 * time.Hour).UTC().Truncate(time.Second)
	c := vault.NewCredential("example.com", "alice", "enc-blob")
	c.Strength = 75
	c.Tags = []string{"work", "email"}
	c.ExpiresAt = &expires

	if err := store.AddCredential(c); err != nil {
		t.Fatalf("AddCredential() error = %v", err)
	}

	got, err := store.GetCredential(c.UUID)
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if got.Site != "example.com" || got.Username != "alice" {
		t.Errorf("got %s/%s, want example.com/alice", got.Site, got.Username)
	}
	if got.SecretEnc != "enc-blob" {
		t.Errorf("SecretEnc = %q, want enc-blob", got.SecretEnc)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" || got.Tags[1] != "email" {
		t.Errorf("Tags = %v, want [work email]", got.Tags)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.BreachState != vault.BreachUnknown {
		t.Errorf("BreachState = %v, want unknown", got.BreachState)
	}
}

func TestGetCredential_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCredential("missing-uuid")
	if !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("GetCredential(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateCredential_NotFoundWritesNothing(t *testing.T) {
	store := newTestStore(t)

	c := vault.NewCredential("ghost.example", "nobody", "enc")
	err := store.UpdateCredential(c)
	if !errors.Is(err, vault.ErrNotFound) {
		t.Fatalf("UpdateCredential(missing) error = %v, want ErrNotFound", err)
	}

	// The failed update must not leave an audit entry behind.
	entries, err := store.Entries(10)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("audit log has %d entries after failed update, want 0", len(entries))
	}
}

func TestDeleteCredential_ReturnsSite(t *testing.T) {
	store := newTestStore(t)
	c := addTestCredential(t, store, "example.com", "alice", 50)

	site, err := store.DeleteCredential(c.UUID)
	if err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if site != "example.com" {
		t.Errorf("DeleteCredential() site = %q, want example.com", site)
	}

	if _, err := store.GetCredential(c.UUID); !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("GetCredential after delete error = %v, want ErrNotFound", err)
	}

	if _, err := store.DeleteCredential(c.UUID); !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("second DeleteCredential() error = %v, want ErrNotFound", err)
	}
}

func TestCredentialExists(t *testing.T) {
	store := newTestStore(t)
	c := addTestCredential(t, store, "example.com", "alice", 50)

	exists, err := store.CredentialExists(c.UUID)
	if err != nil {
		t.Fatalf("CredentialExists() error = %v", err)
	}
	if !exists {
		t.Error("CredentialExists(present) = false")
	}

	exists, err = store.CredentialExists("missing")
	if err != nil {
		t.Fatalf("CredentialExists() error = %v", err)
	}
	if exists {
		t.Error("CredentialExists(missing) = true")
	}
}

func TestListCredentials_Filters(t *testing.T) {
	store := newTestStore(t)
	addTestCredential(t, store, "example.com", "alice", 80, "work")
	addTestCredential(t, store, "example.org", "bob", 40, "personal")
	addTestCredential(t, store, "secure-site.com", "alice", 95, "work")

	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name      string
		filter    *vault.Filter
		wantSites []string
	}{
		{"no_filter", nil, []string{"example.com", "example.org", "secure-site.com"}},
		{"search_example", &vault.Filter{SearchTerm: "example"}, []string{"example.com", "example.org"}},
		{"search_username", &vault.Filter{SearchTerm: "alice"}, []string{"example.com", "secure-site.com"}},
		{"tag_work", &vault.Filter{Tag: "work"}, []string{"example.com", "secure-site.com"}},
		{"tag_and_unreachable_strength", &vault.Filter{Tag: "work", MinStrength: intPtr(101)}, nil},
		{"min_strength", &vault.Filter{MinStrength: intPtr(80)}, []string{"example.com", "secure-site.com"}},
		{"no_match", &vault.Filter{SearchTerm: "nothing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListCredentials(tt.filter)
			if err != nil {
				t.Fatalf("ListCredentials() error = %v", err)
			}
			if len(got) != len(tt.wantSites) {
				t.Fatalf("ListCredentials() returned %d, want %d", len(got), len(tt.wantSites))
			}
			for i, c := range got {
				if c.Site != tt.wantSites[i] {
					t.Errorf("result[%d].Site = %q, want %q", i, c.Site, tt.wantSites[i])
				}
			}
		})
	}
}

func TestListCredentials_TagExactMembership(t *testing.T) {
	store := newTestStore(t)
	addTestCredential(t, store, "example.com", "alice", 50, "work")
	addTestCredential(t, store, "example.org", "bob", 50, "workout")

	got, err := store.ListCredentials(&vault.Filter{Tag: "work"})
	if err != nil {
		t.Fatalf("ListCredentials() error = %v", err)
	}
	if len(got) != 1 || got[0].Site != "example.com" {
		t.Errorf("tag filter matched %d results, want only example.com", len(got))
	}
}

func TestListCredentials_BreachStateFilter(t *testing.T) {
	store := newTestStore(t)
	safe := addTestCredential(t, store, "example.com", "alice", 50)
	addTestCredential(t, store, "example.org", "bob", 50)

	if err := store.UpdateBreachState(safe.UUID, vault.BreachCompromised); err != nil {
		t.Fatalf("UpdateBreachState() error = %v", err)
	}

	state := vault.BreachCompromised
	got, err := store.ListCredentials(&vault.Filter{BreachStateIs: &state})
	if err != nil {
		t.Fatalf("ListCredentials() error = %v", err)
	}
	if len(got) != 1 || got[0].UUID != safe.UUID {
		t.Errorf("breach filter returned %d results, want the compromised one", len(got))
	}
}

func TestUpdateBreachState_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateBreachState("missing", vault.BreachSafe)
	if !errors.Is(err, vault.ErrNotFound) {
		t.Errorf("UpdateBreachState(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAuditLog_MutationsPaired(t *testing.T) {
	store := newTestStore(t)

	c := addTestCredential(t, store, "example.com", "alice", 50)
	c.Username = "alice2"
	if err := store.UpdateCredential(c); err != nil {
		t.Fatalf("UpdateCredential() error = %v", err)
	}
	if _, err := store.DeleteCredential(c.UUID); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}

	entries, err := store.Entries(10)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("audit log has %d entries, want 3", len(entries))
	}

	// Newest first, ids strictly increasing in insertion order.
	wantActions := []string{
		"Deleted credential for example.com",
		"Updated credential for example.com",
		"Added credential for example.com",
	}
	for i, e := range entries {
		if e.Action != wantActions[i] {
			t.Errorf("entries[%d].Action = %q, want %q", i, e.Action, wantActions[i])
		}
		if e.CredentialUUID != c.UUID {
			t.Errorf("entries[%d].CredentialUUID = %q, want %q", i, e.CredentialUUID, c.UUID)
		}
	}
	if !(entries[0].ID > entries[1].ID && entries[1].ID > entries[2].ID) {
		t.Errorf("entry ids not strictly decreasing newest-first: %d, %d, %d",
			entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestAuditLog_AddEntryAndLimit(t *testing.T) {
	store := newTestStore(t)

	var lastID int64
	for i := 0; i < 5; i++ {
		id, err := store.AddEntry("Vault unlocked", "")
		if err != nil {
			t.Fatalf("AddEntry() error = %v", err)
		}
		if id <= lastID {
			t.Errorf("AddEntry() id = %d, want > %d", id, lastID)
		}
		lastID = id
	}

	entries, err := store.Entries(3)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Entries(3) returned %d, want 3", len(entries))
	}
	if entries[0].ID != lastID {
		t.Errorf("first entry id = %d, want newest %d", entries[0].ID, lastID)
	}
	if entries[0].CredentialUUID != "" {
		t.Errorf("CredentialUUID = %q, want empty for lifecycle entry", entries[0].CredentialUUID)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	nonce, ciphertext, err := store.GetEncryptedSettings()
	if err != nil {
		t.Fatalf("GetEncryptedSettings() error = %v", err)
	}
	if nonce != nil || ciphertext != nil {
		t.Error("expected no settings before first save")
	}

	if err := store.SaveEncryptedSettings([]byte("nonce-1"), []byte("cipher-1")); err != nil {
		t.Fatalf("SaveEncryptedSettings() error = %v", err)
	}
	// Second save replaces, not duplicates.
	if err := store.SaveEncryptedSettings([]byte("nonce-2"), []byte("cipher-2")); err != nil {
		t.Fatalf("SaveEncryptedSettings() error = %v", err)
	}

	nonce, ciphertext, err = store.GetEncryptedSettings()
	if err != nil {
		t.Fatalf("GetEncryptedSettings() error = %v", err)
	}
	if string(nonce) != "nonce-2" || string(ciphertext) != "cipher-2" {
		t.Errorf("got %q/%q, want nonce-2/cipher-2", nonce, ciphertext)
	}
}

func TestMasterPasswordHashRoundTrip(t *testing.T) {
	store := newTestStore(t)

	hash, err := store.GetMasterPasswordHash()
	if err != nil {
		t.Fatalf("GetMasterPasswordHash() error = %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q before first save, want empty", hash)
	}

	const stored = "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$ZGlnZXN0"
	if err := store.SaveMasterPasswordHash(stored); err != nil {
		t.Fatalf("SaveMasterPasswordHash() error = %v", err)
	}

	hash, err = store.GetMasterPasswordHash()
	if err != nil {
		t.Fatalf("GetMasterPasswordHash() error = %v", err)
	}
	if hash != stored {
		t.Errorf("hash = %q, want %q", hash, stored)
	}
}
