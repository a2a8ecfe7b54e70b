package webanno

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const aliceJSON = `{
	"doc_id": "doc1",
	"words": ["Alice", "met", "Bob", ".", "She", "smiled", "."],
	"sentences": [[0, 4], [4, 7]],
	"ner": [[0, 1, "PER"], [2, 3, "PER"]],
	"coref": {"ALICE": [[0, 1], [4, 5]], "BOB": [[2, 3]]},
	"n_ary_relations": [{"A": "ALICE", "B": "BOB", "score": 1}]
}`

func decodeRecord(t *testing.T, raw string) *Record {
	t.Helper()
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	return &rec
}

func renderLines(t *testing.T, rec *Record) []string {
	t.Helper()
	content, err := Render(rec)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return strings.Split(content, "\r")
}

func TestRender(t *testing.T) {
	rec := decodeRecord(t, aliceJSON)
	got := renderLines(t, rec)

	want := []string{
		"#FORMAT=WebAnno TSV 3.3",
		"#T_SP=webanno.custom.Test|value",
		"#T_CH=webanno.custom.TestCorefLink|referenceRelation|referenceType",
		"#T_RL=webanno.custom.TestRelation|BT_webanno.custom.Test",
		"",
		"#Text=Alice met Bob .",
		"1-1\t0-5\tAlice\tPER\t*->1-1\t[1]\t1-3",
		"1-2\t6-9\tmet\t_\t_\t_\t_",
		"1-3\t10-13\tBob\tPER\t*->2-1\t[1]\t_",
		"1-4\t14-15\t.\t_\t_\t_\t_",
		"",
		"#Text=She smiled .",
		"2-1\t16-19\tShe\t_\t*->1-2\t[2]\t_",
		"2-2\t20-26\tsmiled\t_\t_\t_\t_",
		"2-3\t27-28\t.\t_\t_\t_\t_",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rendered lines mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRender_MultiTokenEntity(t *testing.T) {
	rec := &Record{
		DocID:     "doc2",
		Words:     []string{"New", "York", "is", "big", "."},
		Sentences: [][2]int{{0, 5}},
		Entities:  []Entity{{Start: 0, End: 2, Label: "LOC"}},
	}
	got := renderLines(t, rec)

	want := []string{
		"#FORMAT=WebAnno TSV 3.3",
		"#T_SP=webanno.custom.Test|value",
		"#T_CH=webanno.custom.TestCorefLink|referenceRelation|referenceType",
		"#T_RL=webanno.custom.TestRelation|BT_webanno.custom.Test",
		"",
		"#Text=New York is big .",
		"1-1\t0-3\tNew\tLOC[1]\t_\t_\t_",
		"1-2\t4-8\tYork\tLOC[1]\t_\t_\t_",
		"1-3\t9-11\tis\t_\t_\t_\t_",
		"1-4\t12-15\tbig\t_\t_\t_\t_",
		"1-5\t16-17\t.\t_\t_\t_\t_",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rendered lines mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRender_BadSentenceSpan(t *testing.T) {
	rec := &Record{
		DocID:     "bad",
		Words:     []string{"one"},
		Sentences: [][2]int{{0, 5}},
	}
	if _, err := Render(rec); err == nil {
		t.Error("expected error for sentence span outside word range")
	}
}

func TestUnmarshal_PreservesOrder(t *testing.T) {
	raw := `{
		"doc_id": "d",
		"words": ["a"],
		"sentences": [[0, 1]],
		"ner": [],
		"coref": {"ZETA": [[0, 1]], "ALPHA": []},
		"n_ary_relations": [{"z_arg": "ZETA", "a_arg": "ALPHA", "score": 0.5}]
	}`
	rec := decodeRecord(t, raw)

	if len(rec.Coref) != 2 || rec.Coref[0].Name != "ZETA" || rec.Coref[1].Name != "ALPHA" {
		t.Errorf("chain order not preserved: %+v", rec.Coref)
	}
	if len(rec.Relations) != 1 || !reflect.DeepEqual(rec.Relations[0], []string{"ZETA", "ALPHA"}) {
		t.Errorf("relation arguments wrong or out of order: %+v", rec.Relations)
	}
}

func TestUnmarshal_ChainNumbersFollowSourceOrder(t *testing.T) {
	raw := `{
		"doc_id": "d",
		"words": ["x", "y"],
		"sentences": [[0, 2]],
		"ner": [],
		"coref": {"ZETA": [[0, 1]], "ALPHA": [[1, 2]]},
		"n_ary_relations": []
	}`
	got := renderLines(t, decodeRecord(t, raw))

	// ZETA was declared first, so it is chain 1 even though ALPHA sorts
	// before it alphabetically.
	if !strings.Contains(got[6], "*->1-1") {
		t.Errorf("token x should belong to chain 1: %q", got[6])
	}
	if !strings.Contains(got[7], "*->2-1") {
		t.Errorf("token y should belong to chain 2: %q", got[7])
	}
}

func TestReadJSONL(t *testing.T) {
	input := `{"doc_id": "doc1", "words": ["hi"], "sentences": [[0, 1]]}` + "\n\n" +
		`{"doc_id": "doc2", "words": [], "sentences": []}` + "\n"
	records, err := ReadJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].DocID != "doc1" || records[1].DocID != "doc2" {
		t.Errorf("unexpected doc ids: %s, %s", records[0].DocID, records[1].DocID)
	}
	if len(records[0].Words) != 1 {
		t.Errorf("expected 1 word, got %d", len(records[0].Words))
	}

	if _, err := ReadJSONL(strings.NewReader("not json\n")); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	records := []Record{*decodeRecord(t, aliceJSON)}
	if err := Export(records, dir); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "doc1.tsv"))
	if err != nil {
		t.Fatalf("reading exported file: %v", err)
	}
	if !strings.HasPrefix(string(content), "#FORMAT=WebAnno TSV 3.3\r") {
		t.Errorf("unexpected file header: %q", string(content[:40]))
	}

	if err := Export([]Record{{}}, dir); err == nil {
		t.Error("expected error for record without doc_id")
	}
}
