package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pwjlab/corpus/internal/webanno"
	"github.com/spf13/cobra"
)

func init() {
	exportCmd.AddCommand(exportTSVCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export annotated documents to external formats",
}

var exportTSVCmd = &cobra.Command{
	Use:   "tsv <input.jsonl> <outdir>",
	Short: "Write WebAnno TSV 3.3 files from an annotated JSONL corpus",
	Long: `Read annotated documents (tokens, sentences, named entities, coreference
chains, n-ary relations) from a JSONL file and write one WebAnno TSV 3.3
file per document into the output directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runExportTSV,
}

// ExportResult is the response for the export tsv command.
type ExportResult struct {
	Documents int    `json:"documents"`
	Dir       string `json:"dir"`
}

func runExportTSV(cmd *cobra.Command, args []string) error {
	inPath, outDir := args[0], args[1]
	if !strings.HasSuffix(inPath, ".jsonl") {
		return fmt.Errorf("input path %q does not end in .jsonl", inPath)
	}

	in, err := os.Open(inPath)
	if err != nil {
		exitWithError(ExitDataError, "opening %s: %v", inPath, err)
	}
	defer in.Close()

	records, err := webanno.ReadJSONL(in)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", inPath, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		exitWithError(ExitError, "creating %s: %v", outDir, err)
	}
	if err := webanno.Export(records, outDir); err != nil {
		exitWithError(ExitError, "exporting: %v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %d TSV files to %s\n", len(records), outDir)
		return nil
	}
	return outputJSON(ExportResult{Documents: len(records), Dir: outDir})
}
