package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var breachCmd = &cobra.Command{
	Use:   "breach <uuid>",
	Short: "Check a credential's password against known breaches",
	Long: `Checks the stored password against the Have I Been Pwned corpus
using k-anonymity. Only the first five characters of the password's SHA-1
digest are sent over the network.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		state, err := a.Manager.CheckBreach(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Breach state: %s\n", state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(breachCmd)
}
