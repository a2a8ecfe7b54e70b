package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	storeCmd.AddCommand(storeCheckCmd)
	rootCmd.AddCommand(storeCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the ledger database",
}

var storeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report ledger and document counts",
	RunE:  runStoreCheck,
}

func runStoreCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	s := mustOpenStore(cfg)
	defer s.Close()

	counts, err := s.Count()
	if err != nil {
		exitWithError(ExitError, "counting: %v", err)
	}

	if humanOutput {
		fmt.Printf("%d entries: %d open, %d closed; %d documents\n",
			counts.Total, counts.Open, counts.Closed, counts.Documents)
		return nil
	}
	return outputJSON(counts)
}
