package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/csheth/paperproducer/internal/httputil"
	"github.com/csheth/paperproducer/internal/report"
)

// RemoteConfig mirrors GET /api/config.
type RemoteConfig struct {
	LLM        LLMSettings       `json:"llm" yaml:"llm"`
	Embeddings EmbeddingSettings `json:"embeddings" yaml:"embeddings"`
	Indexer    IndexerSettings   `json:"indexer" yaml:"indexer"`
	Search     SearchSettings    `json:"search" yaml:"search"`
}

type LLMSettings struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

type EmbeddingSettings struct {
	Model string `json:"model" yaml:"model"`
}

type IndexerSettings struct {
	Type string `json:"type" yaml:"type"`
}

type SearchSettings struct {
	TopPapers  int `json:"top_papers" yaml:"top_papers"`
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// Options projects the service configuration onto generation options.
func (c RemoteConfig) Options() report.Options {
	return report.Options{
		LLMModel:       c.LLM.Model,
		EmbeddingModel: c.Embeddings.Model,
		IndexerType:    c.Indexer.Type,
		TopPapers:      c.Search.TopPapers,
	}
}

// ConfigUpdate is the body of POST /api/config. Zero fields are left unchanged by the service.
type ConfigUpdate struct {
	LLMModel       string `json:"llm_model,omitempty"`
	IndexerType    string `json:"indexer_type,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	TopPapers      int    `json:"top_papers,omitempty"`
	MaxResults     int    `json:"max_results,omitempty"`
}

// UpdateFromOptions builds a config update carrying every option.
func UpdateFromOptions(opts report.Options) ConfigUpdate {
	return ConfigUpdate{
		LLMModel:       opts.LLMModel,
		IndexerType:    opts.IndexerType,
		EmbeddingModel: opts.EmbeddingModel,
		TopPapers:      opts.TopPapers,
	}
}

// Catalog lists the choices the service accepts for each option.
type Catalog struct {
	LLMModels       []string `json:"llm_models" yaml:"llm_models"`
	IndexerTypes    []string `json:"indexer_types" yaml:"indexer_types"`
	EmbeddingModels []string `json:"embedding_models" yaml:"embedding_models"`
}

// LoadConfig fetches the service's current configuration.
func (c *Client) LoadConfig(ctx context.Context) (RemoteConfig, error) {
	var cfg RemoteConfig
	err := c.getJSON(ctx, StageConfig, "/api/config", &cfg)
	return cfg, err
}

// SaveConfig persists option changes on the service.
func (c *Client) SaveConfig(ctx context.Context, update ConfigUpdate) error {
	buf, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode config update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/config", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build config request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return &ServiceError{Stage: StageConfig, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	return decodeResponse(StageConfig, resp, nil)
}

// Models fetches the option catalog.
func (c *Client) Models(ctx context.Context) (Catalog, error) {
	var catalog Catalog
	err := c.getJSON(ctx, StageModels, "/api/models", &catalog)
	return catalog, err
}

// Download streams the named report artifact into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, StageDownload, "/api/download/"+url.PathEscape(filename))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		return 0, &ServiceError{Stage: StageDownload, Status: resp.StatusCode, Detail: failureDetail(body)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &ServiceError{Stage: StageDownload, Status: resp.StatusCode, Detail: err.Error(), Err: err}
	}
	return n, nil
}

// DownloadURL is the address a browser would navigate to for the artifact.
func (c *Client) DownloadURL(filename string) string {
	return c.base + "/api/download/" + url.PathEscape(filename)
}

func (c *Client) getJSON(ctx context.Context, stage, path string, out any) error {
	resp, err := c.get(ctx, stage, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(stage, resp, out)
}

// get issues an idempotent GET; these may be retried on 429.
func (c *Client) get(ctx context.Context, stage, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", stage, err)
	}
	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return nil, &ServiceError{Stage: stage, Detail: err.Error(), Err: err}
	}
	return resp, nil
}
