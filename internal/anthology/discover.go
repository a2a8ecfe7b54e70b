package anthology

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// BibliographyURL is the compressed BibTeX export listing every anthology
// entry.
const BibliographyURL = "https://aclanthology.org/anthology.bib.gz"

// idPattern extracts identifiers from the url fields of BibTeX entries,
// e.g. url = "https://aclanthology.org/2020.acl-main.1.pdf",
var idPattern = regexp.MustCompile(`url = ".*/([\w.\-]*?)(?:\.pdf)?",`)

// DiscoverIDs downloads the compressed bibliography and returns the unique
// identifiers it references, in first-seen order.
func DiscoverIDs(ctx context.Context, httpClient *http.Client, url string) ([]string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if url == "" {
		url = BibliographyURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decompressing bibliography: %w", err)
	}
	defer gz.Close()

	text, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}

	return ExtractIDs(string(text)), nil
}

// ExtractIDs applies the identifier pattern to bibliography text, dropping
// duplicates while preserving first-seen order.
func ExtractIDs(text string) []string {
	matches := idPattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]struct{}, len(matches))
	var ids []string
	for _, m := range matches {
		id := m[1]
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
