package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pwjlab/corpus/internal/store"
)

const (
	// DefaultBatchSize bounds how many open entries one cycle processes.
	DefaultBatchSize = 100

	// DefaultCycleFloor is the minimum wall-clock duration of one cycle,
	// spacing batches out to respect the external services' rate limits.
	DefaultCycleFloor = 5 * time.Minute
)

// Orchestrator drives the acquisition pipeline: select a batch of open
// ledger entries, run the stages in order, persist results, throttle,
// repeat until no open entries remain. A single orchestrator instance owns
// the ledger; running two against the same store is not supported.
type Orchestrator struct {
	ledgerStore store.Ledger
	documents   store.Documents

	metadata   entryStage
	archive    entryStage
	extraction *extractionStage

	batchSize  int
	cycleFloor time.Duration
	logger     *slog.Logger

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBatchSize overrides the batch selection bound.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCycleFloor overrides the minimum cycle duration.
func WithCycleFloor(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.cycleFloor = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator wires the pipeline against its stores and service clients.
func NewOrchestrator(ledgerStore store.Ledger, documents store.Documents, metadata MetadataClient, archive ArchiveClient, extractor Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledgerStore: ledgerStore,
		documents:   documents,
		metadata:    &metadataStage{client: metadata},
		archive:     &archiveStage{client: archive},
		extraction:  &extractionStage{client: extractor},
		batchSize:   DefaultBatchSize,
		cycleFloor:  DefaultCycleFloor,
		logger:      slog.Default(),
		now:         time.Now,
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run loops batches until the ledger has no open entries, then returns nil.
// The only errors that terminate the run are ledger/document store failures
// and context cancellation; per-entry failures are recorded in the ledger
// and never abort a batch.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := o.ledgerStore.FindOpen(o.batchSize)
		if err != nil {
			return fmt.Errorf("selecting batch: %w", err)
		}
		if len(entries) == 0 {
			o.logger.Info("ledger drained, pipeline done")
			return nil
		}

		start := o.now()
		o.logger.Info("batch selected", "size", len(entries))

		if err := o.runBatch(ctx, newBatch(entries)); err != nil {
			return err
		}

		elapsed := o.now().Sub(start)
		delay := throttleDelay(elapsed, o.cycleFloor)
		o.logger.Info("batch finished", "elapsed", elapsed, "throttle", delay)
		if err := o.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// runBatch drives one batch through the stages and persists every item.
func (o *Orchestrator) runBatch(ctx context.Context, items []*Item) error {
	o.runEntryStage(ctx, o.metadata, items, "")

	// The archive and extraction stages share one scoped working directory,
	// released on every exit path.
	workdir, err := os.MkdirTemp("", "corpus-batch-")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workdir)

	o.runEntryStage(ctx, o.archive, items, workdir)
	o.runExtractionStage(ctx, items, workdir)

	return o.persist(items)
}

// runEntryStage applies a per-entry adapter across the batch, skipping
// closed items and appending exactly one step per attempted item.
func (o *Orchestrator) runEntryStage(ctx context.Context, stage entryStage, items []*Item, workdir string) {
	for _, item := range items {
		if item.Entry.Closed {
			continue
		}
		outcome := o.safeProcess(ctx, stage, item, workdir)
		o.record(stage.Name(), item, outcome)
	}
}

// runExtractionStage invokes the batch-level extraction adapter. An
// invocation-level failure closes every still-open item with ERROR, since
// no outputs can be trusted.
func (o *Orchestrator) runExtractionStage(ctx context.Context, items []*Item, workdir string) {
	anyOpen := false
	for _, item := range items {
		if !item.Entry.Closed {
			anyOpen = true
			break
		}
	}
	if !anyOpen {
		return
	}

	outcomes, err := o.safeProcessBatch(ctx, items, workdir)
	if err != nil {
		msg := fmt.Sprintf("extraction invocation failed: %v", err)
		for _, item := range items {
			if item.Entry.Closed {
				continue
			}
			o.record(StageExtraction, item, Error(msg))
		}
		return
	}

	for _, item := range items {
		if item.Entry.Closed {
			continue
		}
		outcome, ok := outcomes[item.Entry.ID]
		if !ok {
			outcome = Error(fmt.Sprintf("file not found : %s(.tei.xml|.txt)", item.Entry.ID))
		}
		o.record(StageExtraction, item, outcome)
	}
}

// safeProcess calls a per-entry adapter, downgrading panics to ERROR so a
// misbehaving adapter can never abort the batch.
func (o *Orchestrator) safeProcess(ctx context.Context, stage entryStage, item *Item, workdir string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Error(fmt.Sprintf("adapter panic: %v", r))
		}
	}()
	return stage.Process(ctx, item, workdir)
}

func (o *Orchestrator) safeProcessBatch(ctx context.Context, items []*Item, workdir string) (outcomes map[string]Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcomes = nil
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return o.extraction.ProcessBatch(ctx, items, workdir)
}

// record appends the step to the ledger entry, closing it on a terminal
// code.
func (o *Orchestrator) record(stage string, item *Item, outcome Outcome) {
	item.Entry.AppendStep(stage, outcome.Code, outcome.Message, o.now())
	o.logger.Debug("stage outcome",
		"stage", stage,
		"id", item.Entry.ID,
		"code", outcome.Code.String(),
		"msg", outcome.Message)
}

// persist writes a document record for every item that survived all stages
// and updates the ledger entry for every item regardless of outcome.
func (o *Orchestrator) persist(items []*Item) error {
	for _, item := range items {
		if !item.Entry.Closed {
			if err := o.documents.InsertDocument(item.Doc); err != nil {
				return fmt.Errorf("inserting document %s: %w", item.Doc.ID, err)
			}
		}
		if err := o.ledgerStore.UpdateEntry(*item.Entry); err != nil {
			return fmt.Errorf("updating ledger entry %s: %w", item.Entry.ID, err)
		}
	}
	return nil
}

// throttleDelay returns how long to wait before the next selection so a
// cycle lasts at least floor.
func throttleDelay(elapsed, floor time.Duration) time.Duration {
	if elapsed >= floor {
		return 0
	}
	return floor - elapsed
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
