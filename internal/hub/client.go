package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ggufctl/internal/catalog"
	"ggufctl/pkg/types"
)

// DefaultEndpoint is the public Hugging Face Hub.
const DefaultEndpoint = "https://huggingface.co"

// DefaultRevision is used when no revision is specified.
const DefaultRevision = "main"

// FullPrecision is the quantization value reported when a checkpoint has no
// quantization_config, i.e. weights are stored at full precision.
const FullPrecision = "f16"

// Client talks to the Hugging Face Hub REST API.
type Client struct {
	endpoint string
	token    string
	revision string
	http     *http.Client
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the hub endpoint (useful for mirrors and tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if e := strings.TrimSuffix(strings.TrimSpace(endpoint), "/"); e != "" {
			c.endpoint = e
		}
	}
}

// WithToken sets a bearer token for private repos.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRevision pins a git revision (default "main").
func WithRevision(rev string) Option {
	return func(c *Client) {
		if rev != "" {
			c.revision = rev
		}
	}
}

// WithHTTPClient injects a custom *http.Client.
// Timeout stays 0: callers control deadlines through contexts.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New constructs a hub client.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		revision: DefaultRevision,
		http:     &http.Client{Timeout: 0},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrRepoNotFound(url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("hub http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

// hfConfig mirrors the fields of config.json the pipeline needs.
type hfConfig struct {
	ModelType          string `json:"model_type"`
	QuantizationConfig *struct {
		QuantMethod string `json:"quant_method"`
	} `json:"quantization_config"`
}

// FetchMeta downloads <repo>/config.json and extracts the architecture
// family and the quantization method. Absent quantization_config means the
// weights are full precision.
func (c *Client) FetchMeta(ctx context.Context, repo string) (types.ModelMeta, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/config.json", c.endpoint, repo, c.revision)
	c.log.Debug().Str("repo", repo).Str("url", url).Msg("fetching model metadata")
	resp, err := c.get(ctx, url)
	if err != nil {
		return types.ModelMeta{}, err
	}
	defer resp.Body.Close()
	var cfg hfConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return types.ModelMeta{}, fmt.Errorf("decode config.json: %w", err)
	}
	meta := types.ModelMeta{
		ModelType:    cfg.ModelType,
		Quantization: FullPrecision,
		ParamsB:      catalog.ParseSize(repo),
	}
	if meta.ModelType == "" {
		meta.ModelType = "unknown"
	}
	if cfg.QuantizationConfig != nil && cfg.QuantizationConfig.QuantMethod != "" {
		meta.Quantization = strings.ToLower(cfg.QuantizationConfig.QuantMethod)
	}
	c.log.Info().Str("repo", repo).Str("model_type", meta.ModelType).Str("quantization", meta.Quantization).Msg("model metadata")
	return meta, nil
}

// ListTree returns the file listing of a repo at the pinned revision,
// including LFS oid/size for large weight files.
func (c *Client) ListTree(ctx context.Context, repo string) ([]types.RepoFile, error) {
	url := fmt.Sprintf("%s/api/models/%s/tree/%s", c.endpoint, repo, c.revision)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var files []types.RepoFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decode tree listing: %w", err)
	}
	return files, nil
}
