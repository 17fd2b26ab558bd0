package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var auditLimit int64

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		entries, err := a.Manager.GetAuditLog(auditLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Audit log is empty")
			return nil
		}
		for _, e := range entries {
			uuid := e.CredentialUUID
			if uuid == "" {
				uuid = "-"
			}
			fmt.Printf("%6d  %s  %-40s %s\n",
				e.ID, e.Timestamp.Format(time.RFC3339), e.Action, uuid)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().Int64Var(&auditLimit, "limit", 100, "maximum entries to show")
	rootCmd.AddCommand(auditCmd)
}
