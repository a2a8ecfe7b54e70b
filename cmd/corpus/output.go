package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pwjlab/corpus/internal/config"
	"github.com/pwjlab/corpus/internal/store"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenStore opens the SQLite ledger database, exits on error.
// The caller is responsible for calling Close() on the returned store.
func mustOpenStore(cfg *config.Config) *store.Store {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening store at %s: %v", cfg.DBPath, err)
	}
	return s
}
