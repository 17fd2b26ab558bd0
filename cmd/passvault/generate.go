package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passvault/passvault/pkg/generator"
	"github.com/passvault/passvault/pkg/security"
)

var (
	genLength         int
	genNoUppercase    bool
	genNoLowercase    bool
	genNoDigits       bool
	genNoSymbols      bool
	genExcludeSimilar bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	// Does not touch the vault, so no unlock prompt.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := generator.Options{
			Length:         genLength,
			Uppercase:      !genNoUppercase,
			Lowercase:      !genNoLowercase,
			Digits:         !genNoDigits,
			Symbols:        !genNoSymbols,
			ExcludeSimilar: genExcludeSimilar,
		}
		password, err := generator.Generate(opts)
		if err != nil {
			return err
		}
		score := security.NewScorer().Calculate(password)
		fmt.Println(password)
		fmt.Fprintf(cmd.ErrOrStderr(), "Strength: %d/100 (%s)\n", score, security.Level(score))
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&genLength, "length", 20, "password length")
	generateCmd.Flags().BoolVar(&genNoUppercase, "no-uppercase", false, "exclude uppercase letters")
	generateCmd.Flags().BoolVar(&genNoLowercase, "no-lowercase", false, "exclude lowercase letters")
	generateCmd.Flags().BoolVar(&genNoDigits, "no-digits", false, "exclude digits")
	generateCmd.Flags().BoolVar(&genNoSymbols, "no-symbols", false, "exclude symbols")
	generateCmd.Flags().BoolVar(&genExcludeSimilar, "exclude-similar", false, "exclude easily confused characters")
	rootCmd.AddCommand(generateCmd)
}
