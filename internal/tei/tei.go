// Package tei extracts token-level structure from TEI documents produced
// by full-text extraction: section spans, sentence spans, and the flat word
// sequence they index into.
package tei

import (
	"fmt"
	"regexp"
	"strings"
)

// Structure holds token spans over a document. Sections and Sentences are
// [start, end) offsets into Words.
type Structure struct {
	Sections  [][2]int `json:"sections"`
	Sentences [][2]int `json:"sentences"`
	Words     []string `json:"words"`
}

var (
	sectionPattern  = regexp.MustCompile(`(?s)ead.*?</head>(.*?)<h`)
	titlePattern    = regexp.MustCompile(`<title[^>]*>(.*?)</title>`)
	abstractPattern = regexp.MustCompile(`(?s)abstract>(.*?)</abstract`)
	sentencePattern = regexp.MustCompile(`(?s)<s>(.*?)</s>`)

	bibrRefPattern  = regexp.MustCompile(`(?s)<ref type="bibr.*?</ref>`)
	otherRefPattern = regexp.MustCompile(`(?s)<ref.*?</ref>`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)

	// tokenPattern splits sentences into words (keeping internal hyphens
	// and apostrophes) and single punctuation symbols.
	tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+(?:['\-][A-Za-z0-9]+)*|[^\sA-Za-z0-9]`)
)

// Parse extracts the structural spans from one TEI document. The title and
// abstract form section zero; bibliographic references are dropped and
// other references replaced by a placeholder before tokenization.
func Parse(doc string) (*Structure, error) {
	title := titlePattern.FindStringSubmatch(doc)
	if title == nil {
		return nil, fmt.Errorf("no title element found")
	}
	abstract := abstractPattern.FindStringSubmatch(doc)
	if abstract == nil {
		return nil, fmt.Errorf("no abstract element found")
	}

	sections := []string{fmt.Sprintf("<s>%s</s>%s", title[1], abstract[1])}
	for _, m := range sectionPattern.FindAllStringSubmatch(doc, -1) {
		sections = append(sections, m[1])
	}

	st := &Structure{Words: []string{}}
	tokenCount := 0
	for _, section := range sections {
		section = bibrRefPattern.ReplaceAllString(section, "")
		section = otherRefPattern.ReplaceAllString(section, "[reference]")

		sectionStart := tokenCount
		for _, sm := range sentencePattern.FindAllStringSubmatch(section, -1) {
			words := Tokenize(sm[1])
			if len(words) == 0 {
				continue
			}
			st.Words = append(st.Words, words...)
			st.Sentences = append(st.Sentences, [2]int{tokenCount, tokenCount + len(words)})
			tokenCount += len(words)
		}
		st.Sections = append(st.Sections, [2]int{sectionStart, tokenCount})
	}

	return st, nil
}

// Tokenize splits a sentence into tokens, stripping any residual markup
// first.
func Tokenize(sentence string) []string {
	sentence = tagPattern.ReplaceAllString(sentence, " ")
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}
	return tokenPattern.FindAllString(sentence, -1)
}
