// Package anthology talks to the public ACL Anthology archive: fetching
// canonical source PDFs for identifiers and discovering identifiers from
// the compressed bibliography export.
package anthology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the public anthology host serving canonical PDFs.
	BaseURL = "https://aclanthology.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit keeps PDF fetches polite toward the public archive.
	RateLimit = 2.0
)

// Common errors returned by the archive client.
var (
	// ErrNotFound indicates the archive has no document for the identifier.
	ErrNotFound = errors.New("document not found in anthology archive")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with anthology archive")

	// ErrNotPDF indicates the fetched artifact is not a readable PDF.
	ErrNotPDF = errors.New("fetched artifact is not a readable PDF")
)

// StatusError reports an unexpected HTTP status from the archive.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anthology archive returned status %d for %s", e.StatusCode, e.URL)
}

// Client fetches documents from the anthology archive.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
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

// NewClient creates a new archive client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPDF downloads the canonical PDF for an identifier into dir, writing
// <id>.pdf. The artifact is verified to open as a PDF before the call
// succeeds; an HTML error page served with 200 is rejected and removed.
func (c *Client) FetchPDF(ctx context.Context, id, dir string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s.pdf", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to download
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return "", &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	path := filepath.Join(dir, id+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	if err := VerifyPDF(path); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

// VerifyPDF checks that the file at path opens as a PDF with at least one
// page.
func VerifyPDF(path string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return nil
}
