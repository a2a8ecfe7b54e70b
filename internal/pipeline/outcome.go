// Package pipeline drives open ledger entries through the ordered
// acquisition stages: metadata lookup, archive fetch, and full-text
// extraction. A batch orchestrator selects entries, runs the stages,
// persists results, and throttles the cycle.
package pipeline

import (
	"github.com/pwjlab/corpus/internal/ledger"
)

// Stage names recorded in the ledger step history. The values predate this
// implementation and must not change: existing ledgers reference them.
const (
	StageMetadata   = "s2_api"
	StageArchive    = "acl_pdf"
	StageExtraction = "grobid_api"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{StageMetadata, StageArchive, StageExtraction}

// Outcome is the tagged result of one adapter call. Adapters never signal
// failure by panic or error propagation across the stage boundary; every
// attempt reduces to a code and a diagnostic message.
type Outcome struct {
	Code    ledger.StepCode
	Message string
}

// Success returns a SUCCESS outcome.
func Success(message string) Outcome {
	return Outcome{Code: ledger.CodeSuccess, Message: message}
}

// Trashed returns a TRASHED outcome: the resource is confirmed absent
// upstream and the entry closes permanently.
func Trashed(message string) Outcome {
	return Outcome{Code: ledger.CodeTrashed, Message: message}
}

// Error returns an ERROR outcome for any other failure.
func Error(message string) Outcome {
	return Outcome{Code: ledger.CodeError, Message: message}
}

// Item pairs a ledger entry with its in-progress document record. The batch
// is a single ordered sequence of items threaded through every stage.
type Item struct {
	Entry *ledger.Entry
	Doc   *ledger.Document
}

// newBatch pairs each selected entry with a fresh working document.
func newBatch(entries []ledger.Entry) []*Item {
	items := make([]*Item, len(entries))
	for i := range entries {
		entry := entries[i]
		items[i] = &Item{
			Entry: &entry,
			Doc:   ledger.NewDocument(entry.ID),
		}
	}
	return items
}
