// Package elastic is the document store client: query embedding via the
// store's inference endpoint and k-NN passage retrieval over the article
// chunk index.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
)

// Client talks to an Elasticsearch-compatible store over plain HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	username   string
	password   string
	index      string
	modelID    string
	logger     *zap.Logger
}

// Config holds the store connection settings.
type Config struct {
	URL                string
	APIKey             string
	Username           string
	Password           string
	Index              string
	ModelID            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Logger             *zap.Logger
}

// NewClient creates a store client. Connection parameters are checked here so
// a misconfigured deployment fails before the first request.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("elastic url is required: %w", domain.ErrConfigurationMissing)
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("elastic index is required: %w", domain.ErrConfigurationMissing)
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("elastic inference model id is required: %w", domain.ErrConfigurationMissing)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for self-signed dev clusters
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    trimTrailingSlash(cfg.URL),
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		password:   cfg.Password,
		index:      cfg.Index,
		modelID:    cfg.ModelID,
		logger:     logger,
	}, nil
}

// Index returns the configured index name.
func (c *Client) Index() string { return c.index }

// ModelID returns the configured inference endpoint id.
func (c *Client) ModelID() string { return c.modelID }

// HealthCheck verifies the index exists and the store responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/"+c.index, http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return domain.NewUpstreamStatus("elasticsearch", resp.StatusCode)
	}
	return nil
}

// doJSON posts a JSON body to path and decodes the JSON response into out.
// Transport failures and non-2xx statuses map to ErrUpstreamUnavailable,
// undecodable success bodies to ErrMalformedResponse.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch request: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("elasticsearch error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return domain.NewUpstreamStatus("elasticsearch", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %v: %w", path, err, domain.ErrMalformedResponse)
	}
	return nil
}

// authorize sets API key auth when configured, falling back to basic auth.
func (c *Client) authorize(req *http.Request) {
	switch {
	case c.apiKey != "":
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
