// Package ragflow implements the HTTP retrieval backend client. It speaks
// the RAGFlow v1 API: POST /api/v1/retrieval for chunk search and
// GET /api/v1/datasets for collection listing.
//
// The client is deliberately forgiving. Backend failures of any kind
// (network, rate limiting, non-success status, malformed payloads) are
// retried with exponential backoff and then degrade to an empty result:
// callers see "no evidence found", never a fatal error.
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/policy"
	"github.com/insurlab/advisor/retry"
)

const (
	retrievalEndpoint = "/api/v1/retrieval"
	datasetsEndpoint  = "/api/v1/datasets"

	defaultBaseURL             = "http://localhost:9380"
	defaultSimilarityThreshold = 0.3
	defaultVectorWeight        = 0.5
	defaultTopK                = 15
	defaultPageSize            = 200

	probeTimeout = 5 * time.Second
)

// ErrRateLimited marks a backend rate-limit response. It is retryable like
// every other backend error; it exists so callers and tests can tell the
// cases apart.
var ErrRateLimited = errors.New("retrieval backend rate limited")

// Client is a retrieval client for a RAGFlow-compatible backend.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     log.Logger
}

var _ policy.Retriever = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer credential sent on every call.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithBaseURL sets the backend base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient sets the HTTP client used for all calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client. A missing API key is not an error here: the
// resulting unauthorized responses are handled like any other backend
// failure, so a misconfigured process still runs in degraded mode.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     retry.DefaultPolicy(),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type retrievalRequest struct {
	Question             string   `json:"question"`
	DatasetIDs           []string `json:"dataset_ids"`
	SimilarityThreshold  float64  `json:"similarity_threshold"`
	VectorSimilarityWeig float64  `json:"vector_similarity_weight"`
	TopK                 int      `json:"top_k"`
	Highlight            bool     `json:"highlight"`
	PageSize             int      `json:"page_size"`
}

// Retrieve returns chunks relevant to query across the given collections,
// ordered by descending score.
//
// An empty collectionIDs slice short-circuits to an empty result without
// contacting the backend. After the retry budget is spent the last error is
// logged and an empty result is returned with a nil error.
func (c *Client) Retrieve(ctx context.Context, collectionIDs []string, query string, opts policy.RetrievalOptions) ([]policy.Chunk, error) {
	if len(collectionIDs) == 0 {
		c.logger.Warn("ragflow: retrieve called without collection ids, skipping backend call")
		return nil, nil
	}

	req := retrievalRequest{
		Question:             query,
		DatasetIDs:           collectionIDs,
		SimilarityThreshold:  defaultSimilarityThreshold,
		VectorSimilarityWeig: defaultVectorWeight,
		TopK:                 defaultTopK,
		Highlight:            true,
		PageSize:             defaultPageSize,
	}
	if opts.SimilarityThreshold > 0 {
		req.SimilarityThreshold = opts.SimilarityThreshold
	}
	if opts.VectorSimilarityWeight > 0 {
		req.VectorSimilarityWeig = opts.VectorSimilarityWeight
	}
	if opts.TopK > 0 {
		req.TopK = opts.TopK
	}
	if opts.PageSize > 0 {
		req.PageSize = opts.PageSize
	}

	chunks, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]policy.Chunk, error) {
		return c.doRetrieve(ctx, req)
	})
	if err != nil {
		c.logger.Warn("ragflow: retrieval failed after %d attempts, degrading to empty evidence: %v", c.policy.MaxAttempts, err)
		return nil, nil
	}
	return chunks, nil
}

func (c *Client) doRetrieve(ctx context.Context, req retrievalRequest) ([]policy.Chunk, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval request: %w", err)
	}

	payload, err := c.do(ctx, http.MethodPost, retrievalEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	chunks, err := normalizeChunks(payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ragflow: retrieved %d chunks", len(chunks))
	return chunks, nil
}

// ListCollections returns the searchable datasets, optionally filtered by
// name. Like Retrieve, it degrades to an empty result on failure.
func (c *Client) ListCollections(ctx context.Context, nameFilter string) ([]policy.Collection, error) {
	endpoint := datasetsEndpoint
	if nameFilter != "" {
		endpoint += "?name=" + url.QueryEscape(nameFilter)
	}

	collections, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]policy.Collection, error) {
		payload, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		return normalizeCollections(payload)
	})
	if err != nil {
		c.logger.Warn("ragflow: listing datasets failed after %d attempts: %v", c.policy.MaxAttempts, err)
		return nil, nil
	}
	return collections, nil
}

// Check probes backend connectivity with a short timeout and returns the
// number of visible datasets. Used by startup diagnostics only; failures
// are reported, not fatal.
func (c *Client) Check(ctx context.Context) (int, error) {
	if c.apiKey == "" {
		c.logger.Warn("ragflow: no API key configured, backend calls will be unauthorized")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	payload, err := c.do(ctx, http.MethodGet, datasetsEndpoint, nil)
	if err != nil {
		return 0, err
	}
	collections, err := normalizeCollections(payload)
	if err != nil {
		return 0, err
	}
	return len(collections), nil
}

// do performs one HTTP call and returns the raw response body.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}
