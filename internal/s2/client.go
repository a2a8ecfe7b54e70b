// Package s2 is a rate-limited client for the Semantic Scholar academic
// graph API, used to look up citation metadata by anthology identifier.
package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Semantic Scholar graph API paper endpoint.
	BaseURL = "https://api.semanticscholar.org/graph/v1/paper/"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is 1 request per second, the unauthenticated S2 allowance.
	RateLimit = 1.0

	// IDPrefix marks identifiers as ACL anthology IDs for the graph API.
	IDPrefix = "ACL:"
)

// DefaultFields is the full field list requested for every paper: core
// metadata, authors, and the complete citation/reference neighborhoods.
const DefaultFields = "paperId,externalIds,url,title,abstract,venue,year," +
	"referenceCount,citationCount,influentialCitationCount,isOpenAccess," +
	"fieldsOfStudy,s2FieldsOfStudy,publicationTypes,publicationDate,journal," +
	"authors,authors.externalIds,authors.url,authors.name,authors.aliases," +
	"authors.affiliations,authors.homepage,authors.paperCount,authors.citationCount,authors.hIndex," +
	"citations,citations.corpusId,citations.externalIds,citations.url,citations.title," +
	"citations.abstract,citations.venue,citations.year,citations.referenceCount," +
	"citations.citationCount,citations.influentialCitationCount,citations.isOpenAccess," +
	"citations.fieldsOfStudy,citations.s2FieldsOfStudy,citations.publicationTypes," +
	"citations.publicationDate,citations.journal,citations.authors," +
	"references,references.externalIds,references.url,references.title,references.abstract," +
	"references.venue,references.year,references.referenceCount,references.citationCount," +
	"references.influentialCitationCount,references.isOpenAccess,references.fieldsOfStudy," +
	"references.s2FieldsOfStudy,references.authors,references.publicationTypes," +
	"references.publicationDate,references.journal"

// Paper is a metadata lookup result. Raw preserves the full payload for
// persistence; the parsed fields cover what the pipeline inspects.
type Paper struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Raw     json.RawMessage
}

// Client is a rate-limited HTTP client for the Semantic Scholar API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	fields     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithFields overrides the requested field list.
func WithFields(fields string) ClientOption {
	return func(c *Client) {
		if fields != "" {
			c.fields = fields
		}
	}
}

// NewClient creates a new Semantic Scholar client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		fields:     DefaultFields,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetPaper fetches the full metadata payload for an anthology identifier.
// A 404 maps to ErrNotFound carrying the service's error message; any other
// non-200 status maps to an APIError.
func (c *Client) GetPaper(ctx context.Context, aclID string) (*Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s%s?fields=%s",
		strings.TrimSuffix(c.baseURL, "/")+"/", IDPrefix, url.PathEscape(aclID), url.QueryEscape(c.fields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrInvalidResponse, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var paper Paper
		if err := json.Unmarshal(body, &paper); err != nil {
			return nil, fmt.Errorf("%w: parsing paper: %v", ErrInvalidResponse, err)
		}
		paper.Raw = body
		return &paper, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, errorBody(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	default:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorBody(body),
			PaperID:    aclID,
		}
	}
}

// errorBody extracts the "error" field from a JSON error response, falling
// back to the raw body.
func errorBody(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}
