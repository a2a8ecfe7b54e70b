package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/pwjlab/corpus/internal/anthology"
	"github.com/pwjlab/corpus/internal/ledger"
	"github.com/pwjlab/corpus/internal/s2"
)

func newItem(id string) *Item {
	e := ledger.NewEntry(id)
	return &Item{Entry: &e, Doc: ledger.NewDocument(id)}
}

func TestMetadataStage_OutcomeMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		client   metadataFunc
		wantCode ledger.StepCode
	}{
		{
			name:     "success",
			client:   okMetadata(),
			wantCode: ledger.CodeSuccess,
		},
		{
			name: "not found is trashed",
			client: func(context.Context, string) (*s2.Paper, error) {
				return nil, s2.ErrNotFound
			},
			wantCode: ledger.CodeTrashed,
		},
		{
			name: "api error",
			client: func(context.Context, string) (*s2.Paper, error) {
				return nil, &s2.APIError{StatusCode: 500, Message: "internal"}
			},
			wantCode: ledger.CodeError,
		},
		{
			name: "network error",
			client: func(context.Context, string) (*s2.Paper, error) {
				return nil, errors.New("dial tcp: timeout")
			},
			wantCode: ledger.CodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := &metadataStage{client: tt.client}
			item := newItem("X")
			out := stage.Process(ctx, item, "")
			if out.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", out.Code, tt.wantCode)
			}
			if tt.wantCode == ledger.CodeSuccess && len(item.Doc.Metadata) == 0 {
				t.Error("success should attach the metadata payload")
			}
			if tt.wantCode != ledger.CodeSuccess && len(item.Doc.Metadata) != 0 {
				t.Error("failures must not mutate the document")
			}
		})
	}
}

func TestArchiveStage_OutcomeMapping(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stage := &archiveStage{client: archiveFunc(func(context.Context, string, string) (string, error) {
		return "", &anthology.StatusError{StatusCode: 502, URL: "u"}
	})}
	out := stage.Process(ctx, newItem("X"), dir)
	if out.Code != ledger.CodeError || out.Message != "502" {
		t.Errorf("unexpected outcome for bad gateway: %+v", out)
	}

	stage = &archiveStage{client: archiveFunc(func(context.Context, string, string) (string, error) {
		return "", anthology.ErrNotFound
	})}
	out = stage.Process(ctx, newItem("X"), dir)
	if out.Code != ledger.CodeTrashed || out.Message != "404" {
		t.Errorf("unexpected outcome for 404: %+v", out)
	}

	stage = &archiveStage{client: archiveFunc(func(context.Context, string, string) (string, error) {
		return "", anthology.ErrNotPDF
	})}
	out = stage.Process(ctx, newItem("X"), dir)
	if out.Code != ledger.CodeError {
		t.Errorf("an unreadable PDF is an error, not trashed: %+v", out)
	}

	stage = &archiveStage{client: okArchive()}
	out = stage.Process(ctx, newItem("X"), dir)
	if out.Code != ledger.CodeSuccess || out.Message != "200" {
		t.Errorf("unexpected success outcome: %+v", out)
	}
}
