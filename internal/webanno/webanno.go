// Package webanno renders annotated documents as WebAnno TSV 3.3 files.
//
// Input records carry a flat token sequence with sentence spans, named
// entity spans, coreference chains, and n-ary relations. Chains and
// relations are order sensitive: the TSV chain numbers follow the order
// the chains appear in the source JSON, so decoding preserves key order
// instead of using Go maps.
package webanno

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Entity is a half-open token span [Start, End) carrying a label.
type Entity struct {
	Start int
	End   int
	Label string
}

// UnmarshalJSON decodes the [start, end, label] triple form.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("entity span has %d elements, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Start); err != nil {
		return fmt.Errorf("entity start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.End); err != nil {
		return fmt.Errorf("entity end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Label); err != nil {
		return fmt.Errorf("entity label: %w", err)
	}
	return nil
}

// CorefChain is one named coreference cluster and its token spans.
type CorefChain struct {
	Name  string
	Spans [][2]int
}

// Record is one annotated document, as read from a JSONL corpus line.
type Record struct {
	DocID     string
	Sentences [][2]int
	Words     []string
	Entities  []Entity
	Coref     []CorefChain
	Relations [][]string
}

// UnmarshalJSON walks the object token by token so that the insertion
// order of the coref chains and of each relation's arguments survives.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in record", tok)
		}
		switch key {
		case "doc_id":
			err = dec.Decode(&r.DocID)
		case "sentences":
			err = dec.Decode(&r.Sentences)
		case "words":
			err = dec.Decode(&r.Words)
		case "ner":
			err = dec.Decode(&r.Entities)
		case "coref":
			r.Coref, err = decodeChains(dec)
		case "n_ary_relations":
			r.Relations, err = decodeRelations(dec)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	_, err := dec.Token() // closing brace
	return err
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func decodeChains(dec *json.Decoder) ([]CorefChain, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var chains []CorefChain
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected chain key %v", tok)
		}
		var spans [][2]int
		if err := dec.Decode(&spans); err != nil {
			return nil, fmt.Errorf("chain %q: %w", name, err)
		}
		chains = append(chains, CorefChain{Name: name, Spans: spans})
	}
	_, err := dec.Token()
	return chains, err
}

// decodeRelations keeps each relation's argument values in key order and
// drops the score field.
func decodeRelations(dec *json.Decoder) ([][]string, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var relations [][]string
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		var args []string
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected relation key %v", tok)
			}
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, err
			}
			if key == "score" {
				continue
			}
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("relation argument %q: %w", key, err)
			}
			args = append(args, s)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		relations = append(relations, args)
	}
	_, err := dec.Token()
	return relations, err
}

// ReadJSONL decodes one Record per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	var records []Record
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type tokenLine struct {
	pos      string
	l1, l2   int
	word     string
	entity   string
	coref    string
	relation string
}

// row is either a sentence text line or a token line.
type row struct {
	text string
	tok  *tokenLine
}

type chainState struct {
	name  string
	spans [][2]int
	count int
}

type namedPos struct {
	name string
	pos  string
}

// Render produces the complete TSV file content for one record. Line
// separators are carriage returns, matching the WebAnno 3.3 export
// format the annotation tooling expects.
func Render(rec *Record) (string, error) {
	for _, sent := range rec.Sentences {
		if sent[0] < 0 || sent[1] > len(rec.Words) || sent[0] > sent[1] {
			return "", fmt.Errorf("sentence span %v outside word range 0..%d", sent, len(rec.Words))
		}
	}

	ents := append([]Entity(nil), rec.Entities...)
	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Start != ents[j].Start {
			return ents[i].Start < ents[j].Start
		}
		if ents[i].End != ents[j].End {
			return ents[i].End < ents[j].End
		}
		return ents[i].Label < ents[j].Label
	})

	chains := make([]chainState, len(rec.Coref))
	for i, ch := range rec.Coref {
		spans := append([][2]int(nil), ch.Spans...)
		sort.Slice(spans, func(a, b int) bool {
			if spans[a][0] != spans[b][0] {
				return spans[a][0] < spans[b][0]
			}
			return spans[a][1] < spans[b][1]
		})
		chains[i] = chainState{name: ch.Name, spans: spans, count: 1}
	}

	lenWords := -1
	cEntities := 1
	var rows []row
	var dPos []namedPos
	posByName := map[string]string{}

	for c, sent := range rec.Sentences {
		rows = append(rows, row{text: "#Text=" + strings.Join(rec.Words[sent[0]:sent[1]], " ")})
		iStart := sent[0]
		for i := sent[0]; i < sent[1]; i++ {
			word := rec.Words[i]

			entity := "_"
			if len(ents) > 0 && i >= ents[0].Start && i < ents[0].End {
				entity = ents[0].Label
				if ents[0].End-ents[0].Start > 1 {
					entity = fmt.Sprintf("%s[%d]", entity, cEntities)
				}
				if i+1 == ents[0].End {
					ents = ents[1:]
					cEntities++
				}
			}

			// A token belongs to at most one chain; the first match wins.
			coref := "_\t_"
			for ci := range chains {
				ch := &chains[ci]
				if len(ch.spans) == 0 {
					continue
				}
				sp := ch.spans[0]
				if i < sp[0] || i >= sp[1] {
					continue
				}
				coref = fmt.Sprintf("*->%d-%d\t[%d]", ci+1, ch.count, c+1)
				if i+1 == sp[1] {
					if ch.count == 1 {
						pos := fmt.Sprintf("%d-%d", c+1, i+1-iStart)
						dPos = append(dPos, namedPos{name: ch.name, pos: pos})
						posByName[ch.name] = pos
					}
					ch.spans = ch.spans[1:]
					ch.count++
				}
				break
			}

			width := utf8.RuneCountInString(word)
			rows = append(rows, row{tok: &tokenLine{
				pos:    fmt.Sprintf("%d-%d", c+1, i+1-iStart),
				l1:     lenWords + 1,
				l2:     lenWords + width + 1,
				word:   word,
				entity: entity,
				coref:  coref,
			}})
			lenWords += width + 1
		}
	}

	// Relations attach to the closing token of each chain's first span and
	// point at the same token of the partner chain.
	pairs := relationPairs(rec.Relations)
	for _, r := range rows {
		if r.tok == nil {
			continue
		}
		r.tok.relation = "_"
		for _, dp := range dPos {
			if dp.pos != r.tok.pos {
				continue
			}
			for _, pair := range pairs {
				if pair[0] != dp.name {
					continue
				}
				target, ok := posByName[pair[1]]
				if !ok {
					continue
				}
				if r.tok.relation == "_" {
					r.tok.relation = target
				} else {
					r.tok.relation += "|" + target
				}
			}
		}
	}

	var b strings.Builder
	b.WriteString("#FORMAT=WebAnno TSV 3.3\r")
	b.WriteString("#T_SP=webanno.custom.Test|value\r")
	b.WriteString("#T_CH=webanno.custom.TestCorefLink|referenceRelation|referenceType\r")
	b.WriteString("#T_RL=webanno.custom.TestRelation|BT_webanno.custom.Test\r")
	for _, r := range rows {
		if r.tok == nil {
			b.WriteString("\r\r")
			b.WriteString(r.text)
			continue
		}
		fmt.Fprintf(&b, "\r%s\t%d-%d\t%s\t%s\t%s\t%s",
			r.tok.pos, r.tok.l1, r.tok.l2, r.tok.word, r.tok.entity, r.tok.coref, r.tok.relation)
	}
	return b.String(), nil
}

// relationPairs expands each relation's arguments into the unique ordered
// pairs, keeping first-seen order.
func relationPairs(relations [][]string) [][2]string {
	var pairs [][2]string
	seen := map[[2]string]bool{}
	for _, rel := range relations {
		for i, a := range rel {
			for _, b := range rel[i+1:] {
				p := [2]string{a, b}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}
	return pairs
}

// Export writes one <doc_id>.tsv per record into dir.
func Export(records []Record, dir string) error {
	for i := range records {
		rec := &records[i]
		if rec.DocID == "" {
			return fmt.Errorf("record %d has no doc_id", i)
		}
		content, err := Render(rec)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", rec.DocID, err)
		}
		path := filepath.Join(dir, rec.DocID+".tsv")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
