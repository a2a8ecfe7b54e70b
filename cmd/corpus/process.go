package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pwjlab/corpus/internal/tei"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(processCmd)
}

var processCmd = &cobra.Command{
	Use:   "process <output.jsonl>",
	Short: "Turn extracted full texts into token-level structure",
	Long: `Read every successfully extracted document from the store, parse its TEI
full text into section spans, sentence spans, and words, and write one
JSON line per document to the output file.

Documents whose TEI cannot be parsed are skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// ProcessResult is the response for the process command.
type ProcessResult struct {
	Written int      `json:"written"`
	Skipped []string `json:"skipped"`
	Path    string   `json:"path"`
}

// structureRecord is one output line: the document identifier plus its
// token-level structure.
type structureRecord struct {
	DocID string `json:"doc_id"`
	*tei.Structure
}

func runProcess(cmd *cobra.Command, args []string) error {
	outPath := args[0]
	cfg := mustLoadConfig()

	s := mustOpenStore(cfg)
	defer s.Close()

	docs, err := s.SuccessfulDocuments()
	if err != nil {
		exitWithError(ExitError, "reading documents: %v", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		exitWithError(ExitError, "creating %s: %v", outPath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	result := ProcessResult{Skipped: []string{}, Path: outPath}
	for i := range docs {
		doc := &docs[i]
		st, err := tei.Parse(doc.FullText)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", doc.ID, err)
			result.Skipped = append(result.Skipped, doc.ID)
			continue
		}
		if err := enc.Encode(structureRecord{DocID: doc.ID, Structure: st}); err != nil {
			exitWithError(ExitError, "writing %s: %v", doc.ID, err)
		}
		result.Written++
	}
	if err := w.Flush(); err != nil {
		exitWithError(ExitError, "flushing %s: %v", outPath, err)
	}

	if humanOutput {
		fmt.Printf("Wrote %d documents to %s (%d skipped)\n", result.Written, outPath, len(result.Skipped))
		return nil
	}
	return outputJSON(result)
}
