// Package ledger defines the persistent processing record kept for every
// known identifier, and the enriched document written when every pipeline
// stage succeeds.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepCode classifies the outcome of a single stage attempt.
type StepCode int

// Step codes are stored numerically so ledgers written by earlier versions
// of the pipeline keep their meaning.
const (
	// CodeSuccess means the stage contract was met and the entry stays open.
	CodeSuccess StepCode = 1
	// CodeTrashed means the resource is confirmed absent upstream (HTTP 404).
	// Retrying will not help; the entry is closed permanently.
	CodeTrashed StepCode = 101
	// CodeError covers everything else: transient network failures,
	// unexpected response shapes, extraction-tool failures. Also terminal.
	CodeError StepCode = 102
)

// String returns the canonical name for a step code.
func (c StepCode) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeTrashed:
		return "TRASHED"
	case CodeError:
		return "ERROR"
	default:
		return fmt.Sprintf("StepCode(%d)", int(c))
	}
}

// Terminal reports whether a code closes the entry.
func (c StepCode) Terminal() bool {
	return c == CodeTrashed || c == CodeError
}

// Step records one stage attempt against an entry. Steps are append-only:
// an entry gains exactly one step per attempted stage and none once closed.
type Step struct {
	Stage     string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Code      StepCode  `json:"code"`
	Message   string    `json:"msg"`
}

// Entry is the per-identifier processing record. Closed is terminal: once
// set, the entry is excluded from every future batch selection and its step
// history never grows again.
type Entry struct {
	ID     string `json:"id"`
	Closed bool   `json:"closed"`
	Steps  []Step `json:"steps"`
}

// NewEntry returns an open entry with an empty step history, as created by
// identifier discovery.
func NewEntry(id string) Entry {
	return Entry{ID: id, Steps: []Step{}}
}

// AppendStep records a stage attempt and closes the entry when the code is
// terminal.
func (e *Entry) AppendStep(stage string, code StepCode, message string, at time.Time) {
	e.Steps = append(e.Steps, Step{
		Stage:     stage,
		Timestamp: at,
		Code:      code,
		Message:   message,
	})
	if code.Terminal() {
		e.Closed = true
	}
}

// Succeeded reports whether the entry passed every listed stage in order
// with a SUCCESS step for each. This is the condition under which a
// document record exists for the identifier.
func (e *Entry) Succeeded(stages ...string) bool {
	if e.Closed || len(e.Steps) != len(stages) {
		return false
	}
	for i, stage := range stages {
		if e.Steps[i].Stage != stage || e.Steps[i].Code != CodeSuccess {
			return false
		}
	}
	return true
}

// Validate checks the entry's structural invariants: a closed entry has a
// non-empty history ending in a terminal code, and an open entry has only
// SUCCESS steps.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("ledger entry has empty id")
	}
	if e.Closed {
		if len(e.Steps) == 0 {
			return fmt.Errorf("closed entry %s has no steps", e.ID)
		}
		last := e.Steps[len(e.Steps)-1]
		if !last.Code.Terminal() {
			return fmt.Errorf("closed entry %s ends with non-terminal code %s", e.ID, last.Code)
		}
		return nil
	}
	for _, s := range e.Steps {
		if s.Code.Terminal() {
			return fmt.Errorf("open entry %s contains terminal step %s/%s", e.ID, s.Stage, s.Code)
		}
	}
	return nil
}

// Document is the consolidated record persisted only for identifiers that
// cleared every stage. Metadata holds the citation-graph payload as
// returned by the metadata service; FullText holds the TEI extraction.
// CreatedAt and UpdatedAt are stamped by the persistence layer.
type Document struct {
	ID        string          `json:"id"`
	Metadata  json.RawMessage `json:"s2,omitempty"`
	FullText  string          `json:"grobid,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewDocument returns an in-progress document for an identifier. Stages fill
// in payloads as they succeed; the document is only persisted if the entry
// is still open after the final stage.
func NewDocument(id string) *Document {
	return &Document{ID: id}
}
