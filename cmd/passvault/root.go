package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/passvault/passvault/internal/app"
	"github.com/passvault/passvault/internal/config"
)

var (
	configPath string
	a          *app.App
)

var rootCmd = &cobra.Command{
	Use:   "passvault",
	Short: "passvault is a local encrypted password vault",
	Long: `A local, single-user password vault. Secrets are encrypted with
AES-256-GCM under a key derived from your master password with Argon2id.`,
	SilenceUsage: true,
	// PersistentPreRunE wires the application before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			path = filepath.Join(home, ".passvault", config.FileName)
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a, err = app.New(cfg)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if a != nil {
			return a.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// readMasterPassword prompts with no echo when on a terminal, falling back
// to line input for piped stdin.
func readMasterPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(passwordBytes), nil
	}
	return readLine()
}

func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// unlockVault prompts for the master password and unlocks the vault.
func unlockVault() error {
	password, err := readMasterPassword("Master password: ")
	if err != nil {
		return err
	}
	return a.Manager.Unlock(password)
}
