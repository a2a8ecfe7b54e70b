// Package main provides the corpus CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Scholarly corpus acquisition pipeline",
	Long: `corpus builds a full-text corpus of scholarly documents.

It keeps a per-identifier ledger in SQLite and drives each identifier
through three stages: citation metadata lookup, source PDF retrieval,
and full-text extraction. Downstream commands turn the extracted TEI
into token-level structure and annotation-ready TSV files.

All commands output JSON by default for easy scripting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Service URLs and the API key can come from a .env file.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
