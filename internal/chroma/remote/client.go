// Package remote implements the chroma collaborator against a Chroma server's REST v2 API,
// either self-hosted (http mode) or Chroma Cloud (cloud mode).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/embedding"
)

const (
	// CloudURL is the Chroma Cloud API endpoint.
	CloudURL = "https://api.trychroma.com"

	// DefaultTenant and DefaultDatabase are used by self-hosted servers.
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	// DefaultPort is the Chroma server port.
	DefaultPort = 8000

	tokenHeader = "x-chroma-token"
)

// Config configures the REST client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8000.
	BaseURL  string
	Tenant   string
	Database string

	// APIKey is sent in the x-chroma-token header (cloud).
	APIKey string

	// Credentials in "user:password" form are sent as basic auth (self-hosted).
	Credentials string

	Embeddings *embedding.Provider
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPBaseURL builds the base URL for a self-hosted server.
func HTTPBaseURL(host string, port int, ssl bool) string {
	scheme := "http"
	if ssl {
		scheme = "https"
	}
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// Client is a chroma.Client backed by the Chroma REST API.
type Client struct {
	cfg        Config
	base       string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ chroma.Client = (*Client)(nil)

// New creates a REST client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("chroma base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse chroma base URL: %w", err)
	}
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Embeddings == nil {
		cfg.Embeddings = embedding.NewProvider(embedding.Config{})
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		base: fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections",
			strings.TrimRight(cfg.BaseURL, "/"), url.PathEscape(cfg.Tenant), url.PathEscape(cfg.Database)),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close(context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// collectionModel is the server's collection representation.
type collectionModel struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Metadata      map[string]any `json:"metadata"`
	Configuration *configuration `json:"configuration_json,omitempty"`
}

type configuration struct {
	HNSW              *chroma.HNSWConfig     `json:"hnsw,omitempty"`
	EmbeddingFunction *embeddingFunctionSpec `json:"embedding_function,omitempty"`
}

type embeddingFunctionSpec struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

func (m collectionModel) embeddingFunction() string {
	if m.Configuration != nil && m.Configuration.EmbeddingFunction != nil && m.Configuration.EmbeddingFunction.Name != "" {
		return m.Configuration.EmbeddingFunction.Name
	}
	return chroma.DefaultEmbeddingFunction
}

// ListCollections returns collection names.
func (c *Client) ListCollections(ctx context.Context, limit, offset *int) ([]string, error) {
	q := url.Values{}
	if limit != nil {
		q.Set("limit", strconv.Itoa(*limit))
	}
	if offset != nil {
		q.Set("offset", strconv.Itoa(*offset))
	}
	endpoint := c.base
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var models []collectionModel
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &models); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CreateCollection creates a collection, recording the embedding function in its configuration.
func (c *Client) CreateCollection(ctx context.Context, name string, opts chroma.CreateOptions) (chroma.Collection, error) {
	fn := opts.EmbeddingFunction
	if fn == "" {
		fn = chroma.DefaultEmbeddingFunction
	}
	if !embedding.Known(fn) {
		return nil, fmt.Errorf("%w: unknown embedding function %q", chroma.ErrInvalidArgument, fn)
	}

	cfg := &configuration{
		EmbeddingFunction: &embeddingFunctionSpec{Type: "known", Name: fn, Config: map[string]any{}},
	}
	if !opts.HNSW.IsZero() {
		hnsw := opts.HNSW
		cfg.HNSW = &hnsw
	}
	body := map[string]any{
		"name":          name,
		"configuration": cfg,
		"get_or_create": false,
	}
	if opts.Metadata != nil {
		body["metadata"] = opts.Metadata
	}

	var m collectionModel
	if err := c.do(ctx, http.MethodPost, c.base, body, &m); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return c.handle(m, fn), nil
}

// GetCollection resolves a collection by name.
func (c *Client) GetCollection(ctx context.Context, name string) (chroma.Collection, error) {
	var m collectionModel
	if err := c.do(ctx, http.MethodGet, c.base+"/"+url.PathEscape(name), nil, &m); err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return c.handle(m, m.embeddingFunction()), nil
}

// DeleteCollection deletes a collection by name.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodDelete, c.base+"/"+url.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

func (c *Client) handle(m collectionModel, fn string) *collection {
	return &collection{client: c, id: m.ID, name: m.Name, embeddingFunction: fn}
}

// apiError is the error body returned by the server.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(tokenHeader, c.cfg.APIKey)
	}
	if user, pass, ok := strings.Cut(c.cfg.Credentials, ":"); ok {
		req.SetBasicAuth(user, pass)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("chroma request", "method", method, "url", endpoint, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(raw))
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && (ae.Message != "" || ae.Error != "") {
		msg = ae.Message
		if msg == "" {
			msg = ae.Error
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", chroma.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", chroma.ErrAlreadyExists, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", chroma.ErrInvalidArgument, msg)
	default:
		return fmt.Errorf("chroma API error (status %d): %s", resp.StatusCode, msg)
	}
}
