// Package grobid invokes a GROBID full-text extraction service over a
// working directory of PDFs. Extraction runs once per batch; success for an
// individual document is detected afterwards by the presence of its
// <id>.tei.xml artifact, with <id>.txt as the degraded fallback.
package grobid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// BaseURL is the default GROBID service location.
	BaseURL = "http://localhost:8070"

	// DefaultTimeout bounds a single document extraction request.
	DefaultTimeout = 5 * time.Minute

	// fulltextPath is the batch extraction endpoint.
	fulltextPath = "/api/processFulltextDocument"

	// alivePath answers service health checks.
	alivePath = "/api/isalive"
)

// ErrUnavailable indicates the extraction service cannot be reached at all;
// no outputs from the batch can be trusted.
var ErrUnavailable = errors.New("GROBID service unavailable")

// Options mirror the extraction settings the corpus is built with: header
// and citation consolidation, raw affiliation/citation inclusion, and
// sentence segmentation.
type Options struct {
	ConsolidateHeader      bool
	ConsolidateCitations   bool
	IncludeRawAffiliations bool
	IncludeRawCitations    bool
	SegmentSentences       bool
}

// DefaultOptions enables every setting, matching the corpus configuration.
func DefaultOptions() Options {
	return Options{
		ConsolidateHeader:      true,
		ConsolidateCitations:   true,
		IncludeRawAffiliations: true,
		IncludeRawCitations:    true,
		SegmentSentences:       true,
	}
}

// Client drives a GROBID service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	options    Options
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithOptions overrides the extraction settings.
func WithOptions(opts Options) ClientOption {
	return func(c *Client) {
		c.options = opts
	}
}

// NewClient creates a new GROBID client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    BaseURL,
		options:    DefaultOptions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Ping checks that the service is alive.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+alivePath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// ProcessDirectory extracts every *.pdf in dir, writing <name>.tei.xml next
// to each input on success and <name>.txt with a diagnostic on per-document
// failure. The returned error is batch-level: the service being unreachable
// or the directory unreadable. Per-document failures do not abort the batch.
func (c *Client) ProcessDirectory(ctx context.Context, dir string) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}

	pdfs, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	for _, path := range pdfs {
		base := strings.TrimSuffix(filepath.Base(path), ".pdf")
		tei, err := c.processFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			// Degraded artifact: diagnostic text instead of TEI.
			degraded := filepath.Join(dir, base+".txt")
			if werr := os.WriteFile(degraded, []byte(err.Error()), 0644); werr != nil {
				return fmt.Errorf("writing degraded artifact %s: %w", degraded, werr)
			}
			continue
		}
		out := filepath.Join(dir, base+".tei.xml")
		if err := os.WriteFile(out, tei, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}

	return nil
}

// processFile sends one PDF through the full-text endpoint.
func (c *Client) processFile(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("input", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for field, enabled := range map[string]bool{
		"consolidateHeader":      c.options.ConsolidateHeader,
		"consolidateCitations":   c.options.ConsolidateCitations,
		"includeRawAffiliations": c.options.IncludeRawAffiliations,
		"includeRawCitations":    c.options.IncludeRawCitations,
		"segmentSentences":       c.options.SegmentSentences,
	} {
		if err := writer.WriteField(field, flag(enabled)); err != nil {
			return nil, fmt.Errorf("building form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fulltextPath, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request: %v", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading extraction response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}

	return out, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
