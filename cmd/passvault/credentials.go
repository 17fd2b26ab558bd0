package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/passvault/passvault/pkg/security"
	"github.com/passvault/passvault/pkg/vault"
)

var (
	addTags  string
	addNotes string
	addTOTP  string

	listSearch      string
	listTag         string
	listMinStrength int

	showPassword bool
)

var addCmd = &cobra.Command{
	Use:   "add <site> <username>",
	Short: "Add a credential to the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		password, err := readMasterPassword("Password for " + args[0] + ": ")
		if err != nil {
			return err
		}

		secret := vault.Secret{
			Password: password,
			Notes:    addNotes,
			TOTP:     addTOTP,
		}
		var tags []string
		if addTags != "" {
			for _, t := range strings.Split(addTags, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}

		c, err := a.Manager.AddCredential(args[0], args[1], secret, tags)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", c.Site, c.UUID)
		fmt.Printf("Strength: %d/100 (%s)\n", c.Strength, security.Level(c.Strength))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show a credential, decrypting its secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		c, err := a.Manager.GetCredential(args[0])
		if err != nil {
			return err
		}
		secret, err := a.Manager.DecryptSecret(c.UUID)
		if err != nil {
			return err
		}

		fmt.Printf("Site:     %s\n", c.Site)
		fmt.Printf("Username: %s\n", c.Username)
		if showPassword {
			fmt.Printf("Password: %s\n", secret.Password)
		} else {
			fmt.Printf("Password: ******** (use --password to reveal)\n")
		}
		if secret.Notes != "" {
			fmt.Printf("Notes:    %s\n", secret.Notes)
		}
		if len(c.Tags) > 0 {
			fmt.Printf("Tags:     %s\n", strings.Join(c.Tags, ", "))
		}
		fmt.Printf("Strength: %d/100\n", c.Strength)
		fmt.Printf("Breach:   %s\n", c.BreachState)
		fmt.Printf("Updated:  %s\n", c.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List credential metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		filter := &vault.Filter{SearchTerm: listSearch, Tag: listTag}
		if cmd.Flags().Changed("min-strength") {
			filter.MinStrength = &listMinStrength
		}

		credentials, err := a.Manager.ListCredentials(filter)
		if err != nil {
			return err
		}
		if len(credentials) == 0 {
			fmt.Println("No credentials found")
			return nil
		}
		for _, c := range credentials {
			fmt.Printf("%s  %-30s %-20s %3d  %s\n",
				c.UUID, c.Site, c.Username, c.Strength, c.BreachState)
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <uuid> <site> <username>",
	Short: "Replace a credential's site, username, secret and tags",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		password, err := readMasterPassword("New password for " + args[1] + ": ")
		if err != nil {
			return err
		}

		secret := vault.Secret{
			Password: password,
			Notes:    addNotes,
			TOTP:     addTOTP,
		}
		var tags []string
		if addTags != "" {
			for _, t := range strings.Split(addTags, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}

		if err := a.Manager.UpdateCredential(args[0], args[1], args[2], secret, tags, nil); err != nil {
			return err
		}
		fmt.Printf("Updated %s (%s)\n", args[1], args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <uuid>",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockVault(); err != nil {
			return err
		}

		site, err := a.Manager.DeleteCredential(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted credential for %s\n", site)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{addCmd, updateCmd} {
		cmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")
		cmd.Flags().StringVar(&addNotes, "notes", "", "free-form notes")
		cmd.Flags().StringVar(&addTOTP, "totp", "", "TOTP seed")
	}

	listCmd.Flags().StringVar(&listSearch, "search", "", "substring match on site or username")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by exact tag")
	listCmd.Flags().IntVar(&listMinStrength, "min-strength", 0, "minimum strength score")

	showCmd.Flags().BoolVar(&showPassword, "password", false, "print the decrypted password")

	rootCmd.AddCommand(addCmd, showCmd, listCmd, updateCmd, removeCmd)
}
