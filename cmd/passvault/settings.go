package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	settingsAutoLock   uint32
	settingsBiometrics bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show application settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		settings, err := a.Manager.GetSettings()
		if err != nil {
			return err
		}
		fmt.Printf("Argon2 memory:      %d KB\n", settings.Argon2MemoryKB)
		fmt.Printf("Argon2 iterations:  %d\n", settings.Argon2Iterations)
		fmt.Printf("Argon2 parallelism: %d\n", settings.Argon2Parallelism)
		fmt.Printf("Biometrics:         %t\n", settings.UseBiometrics)
		fmt.Printf("Auto-lock timeout:  %d minutes\n", settings.AutoLockTimeout)
		fmt.Printf("Sync enabled:       %t\n", settings.EnableSync)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update application settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		settings, err := a.Manager.GetSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("auto-lock") {
			settings.AutoLockTimeout = settingsAutoLock
		}
		if cmd.Flags().Changed("biometrics") {
			settings.UseBiometrics = settingsBiometrics
		}
		if err := a.Manager.SaveSettings(settings); err != nil {
			return err
		}
		fmt.Println("Settings saved")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().Uint32Var(&settingsAutoLock, "auto-lock", 5, "auto-lock timeout in minutes (0 disables)")
	settingsSetCmd.Flags().BoolVar(&settingsBiometrics, "biometrics", true, "enable biometric unlock")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
