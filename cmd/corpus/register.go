package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pwjlab/corpus/internal/anthology"
	"github.com/spf13/cobra"
)

func init() {
	registerCmd.AddCommand(registerUpdateCmd)
	rootCmd.AddCommand(registerCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Manage the identifier ledger",
}

var registerUpdateCmd = &cobra.Command{
	Use:   "update [n]",
	Short: "Discover identifiers and add the missing ones to the ledger",
	Long: `Download the published bibliography, extract every document identifier,
and register the ones the ledger does not know yet. Entries start open
with an empty step history.

An optional argument caps how many new identifiers are added.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRegisterUpdate,
}

// RegisterResult is the response for the register update command.
type RegisterResult struct {
	Discovered int `json:"discovered"`
	Added      int `json:"added"`
	Skipped    int `json:"skipped"`
}

func runRegisterUpdate(cmd *cobra.Command, args []string) error {
	limit := -1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid limit %q: expected a non-negative integer", args[0])
		}
		limit = n
	}

	cfg := mustLoadConfig()

	httpClient := &http.Client{Timeout: 5 * time.Minute}
	ids, err := anthology.DiscoverIDs(cmd.Context(), httpClient, cfg.BibliographyURL)
	if err != nil {
		exitWithError(ExitDataError, "discovering identifiers: %v", err)
	}

	s := mustOpenStore(cfg)
	defer s.Close()

	result := RegisterResult{Discovered: len(ids)}
	for _, id := range ids {
		if limit >= 0 && result.Added >= limit {
			break
		}
		inserted, err := s.RegisterID(id)
		if err != nil {
			exitWithError(ExitError, "registering %s: %v", id, err)
		}
		if inserted {
			result.Added++
		} else {
			result.Skipped++
		}
	}

	if humanOutput {
		fmt.Printf("Discovered %d identifiers: %d added, %d already known\n",
			result.Discovered, result.Added, result.Skipped)
		return nil
	}
	return outputJSON(result)
}
