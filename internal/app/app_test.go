package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/passvault/passvault/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.VaultDir = filepath.Join(t.TempDir(), "vault")
	cfg.LogLevel = "error"
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Manager == nil || a.Store == nil || a.Log == nil {
		t.Fatal("New() left components unwired")
	}
	if a.Manager.IsUnlocked() {
		t.Error("vault starts unlocked")
	}
	if _, err := os.Stat(a.Config.VaultDir); err != nil {
		t.Errorf("vault directory not created: %v", err)
	}
}

func TestNew_InvalidLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "chatty"
	if _, err := New(cfg); err == nil {
		t.Error("New() accepted an invalid log level")
	}
}

func TestCheckIdle_SkipsWhenLocked(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	// Must not panic or unlock anything.
	a.checkIdle()
	if a.Manager.IsUnlocked() {
		t.Error("vault unlocked after idle check")
	}
}

func TestCheckIdle_RecentActivityKeepsUnlocked(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.Manager.Unlock("master"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	a.checkIdle()
	if !a.Manager.IsUnlocked() {
		t.Error("vault locked despite recent activity")
	}
}

func TestClose_LocksVault(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Manager.Unlock("master"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	a.StartAutoLock()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.Manager.IsUnlocked() {
		t.Error("vault still unlocked after Close")
	}
}
