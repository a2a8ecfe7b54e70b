package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pwjlab/corpus/internal/anthology"
	"github.com/pwjlab/corpus/internal/s2"
)

// MetadataClient looks up citation metadata for an identifier.
type MetadataClient interface {
	GetPaper(ctx context.Context, aclID string) (*s2.Paper, error)
}

// ArchiveClient fetches the canonical source PDF for an identifier into a
// working directory.
type ArchiveClient interface {
	FetchPDF(ctx context.Context, id, dir string) (string, error)
}

// Extractor runs full-text extraction over a working directory of PDFs,
// once per batch.
type Extractor interface {
	ProcessDirectory(ctx context.Context, dir string) error
}

// entryStage is an adapter applied to each open item individually.
type entryStage interface {
	Name() string
	Process(ctx context.Context, item *Item, workdir string) Outcome
}

// metadataStage queries the citation-graph service and merges the payload
// into the working document.
type metadataStage struct {
	client MetadataClient
}

func (s *metadataStage) Name() string { return StageMetadata }

func (s *metadataStage) Process(ctx context.Context, item *Item, _ string) Outcome {
	paper, err := s.client.GetPaper(ctx, item.Entry.ID)
	switch {
	case err == nil:
		item.Doc.Metadata = paper.Raw
		return Success("200")
	case s2.IsNotFound(err):
		return Trashed(err.Error())
	default:
		return Error(err.Error())
	}
}

// archiveStage downloads the source PDF into the batch working directory.
// The artifact is consumed by the extraction stage, not the document.
type archiveStage struct {
	client ArchiveClient
}

func (s *archiveStage) Name() string { return StageArchive }

func (s *archiveStage) Process(ctx context.Context, item *Item, workdir string) Outcome {
	_, err := s.client.FetchPDF(ctx, item.Entry.ID, workdir)
	var statusErr *anthology.StatusError
	switch {
	case err == nil:
		return Success("200")
	case errors.Is(err, anthology.ErrNotFound):
		return Trashed("404")
	case errors.As(err, &statusErr):
		return Error(strconv.Itoa(statusErr.StatusCode))
	default:
		return Error(err.Error())
	}
}

// extractionStage invokes the extraction tool once over the working
// directory, then distributes per-item outcomes by inspecting artifacts:
// <id>.tei.xml means success, <id>.txt means degraded output, neither means
// the document produced nothing.
type extractionStage struct {
	client Extractor
}

func (s *extractionStage) Name() string { return StageExtraction }

func (s *extractionStage) ProcessBatch(ctx context.Context, items []*Item, workdir string) (map[string]Outcome, error) {
	if err := s.client.ProcessDirectory(ctx, workdir); err != nil {
		return nil, err
	}

	outcomes := make(map[string]Outcome, len(items))
	for _, item := range items {
		if item.Entry.Closed {
			continue
		}
		outcomes[item.Entry.ID] = s.collect(item, workdir)
	}
	return outcomes, nil
}

// collect reads the extraction artifact for one item and attaches the TEI
// payload on success.
func (s *extractionStage) collect(item *Item, workdir string) Outcome {
	id := item.Entry.ID

	teiPath := filepath.Join(workdir, id+".tei.xml")
	if tei, err := os.ReadFile(teiPath); err == nil {
		item.Doc.FullText = string(tei)
		return Success("200")
	}

	degradedPath := filepath.Join(workdir, id+".txt")
	if degraded, err := os.ReadFile(degradedPath); err == nil {
		return Error(string(degraded))
	}

	return Error(fmt.Sprintf("file not found : %s(.tei.xml|.txt)", id))
}
