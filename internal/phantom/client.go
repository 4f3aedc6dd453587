// Package phantom is the HTTP client for the PhantomBuster v2 API.
package phantom

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

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

const (
	// DefaultBaseURL is the public v2 endpoint.
	DefaultBaseURL = "https://api.phantombuster.com/api/v2"

	apiKeyHeader      = "X-Phantombuster-Key-1"
	parallelismMarker = "maxParallelismReached"
	maxErrorBody      = 2048
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements scrape.Provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ scrape.Provider = (*Client)(nil)

// NewClient creates a Client. A zero Timeout defaults to 30 seconds.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WorkerStatus fetches the agent and reports its status field.
func (c *Client) WorkerStatus(ctx context.Context, worker scrape.WorkerID) (scrape.WorkerStatus, error) {
	data, err := c.doRequest(ctx, "agents.fetch", http.MethodGet, c.endpoint("/agents/fetch", string(worker)), nil, true)
	if err != nil {
		return "", err
	}
	var resp agentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse agent response: %w", err)
	}
	return scrape.WorkerStatus(resp.Status), nil
}

// Launch starts the agent. A rejection mentioning the parallelism limit is
// reported as scrape.ErrMaxParallelism.
func (c *Client) Launch(ctx context.Context, worker scrape.WorkerID, args scrape.LaunchArgs) (scrape.JobID, error) {
	body := launchRequest{
		ID: string(worker),
		Argument: launchArgument{
			Searches:      args.SearchURL,
			SessionCookie: args.SessionCookie,
		},
	}
	data, err := c.doRequest(ctx, "agents.launch", http.MethodPost, c.baseURL+"/agents/launch", body, true)
	if err != nil {
		var perr *scrape.ProviderError
		if errors.As(err, &perr) && strings.Contains(perr.Body, parallelismMarker) {
			return "", fmt.Errorf("launch %s: %w", worker, scrape.ErrMaxParallelism)
		}
		return "", err
	}
	var resp launchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse launch response: %w", err)
	}
	return scrape.JobID(resp.ContainerID), nil
}

// JobStatus fetches the container and reports its status and error message.
func (c *Client) JobStatus(ctx context.Context, job scrape.JobID) (scrape.JobState, error) {
	data, err := c.doRequest(ctx, "containers.fetch", http.MethodGet, c.endpoint("/containers/fetch", string(job)), nil, true)
	if err != nil {
		return scrape.JobState{}, err
	}
	var resp containerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return scrape.JobState{}, fmt.Errorf("failed to parse container response: %w", err)
	}
	return scrape.JobState{Status: scrape.JobStatus(resp.Status), Error: resp.Error}, nil
}

// FetchResult returns the raw result-object document.
func (c *Client) FetchResult(ctx context.Context, job scrape.JobID) ([]byte, error) {
	return c.doRequest(ctx, "containers.fetch-result-object", http.MethodGet,
		c.endpoint("/containers/fetch-result-object", string(job)), nil, true)
}

// FetchExternal downloads rawURL without the API key.
func (c *Client) FetchExternal(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid external url %q", rawURL)
	}
	return c.doRequest(ctx, "external.fetch", http.MethodGet, u.String(), nil, false)
}

func (c *Client) endpoint(path, id string) string {
	return c.baseURL + path + "?" + url.Values{"id": {id}}.Encode()
}

// doRequest performs one request and returns the body of a 2xx response.
// Non-2xx responses become *scrape.ProviderError.
func (c *Client) doRequest(ctx context.Context, op, method, target string, body any, authenticated bool) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute HTTP request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}
	c.logger.Debug("provider request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(data)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &scrape.ProviderError{Op: op, StatusCode: resp.StatusCode, Body: text}
	}
	return data, nil
}
