// Package api talks to the remote Paper Producer service: query analysis, report generation,
// service configuration and artifact downloads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/csheth/paperproducer/internal/report"
)

const (
	defaultBaseURL = "http://localhost:8000"
	// Report generation fetches and summarizes several PDFs server-side; allow it to take minutes.
	defaultHTTPTimeout = 5 * time.Minute
)

// Config describes how to reach the service.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a thin JSON client for the service endpoints. Analyze and Generate make exactly one
// attempt per call.
type Client struct {
	base   string
	client *http.Client
}

// New builds a client from cfg, filling in defaults.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{base: base, client: pickHTTPClient(cfg.HTTPClient, cfg.Timeout)}
}

func pickHTTPClient(custom *http.Client, timeout time.Duration) *http.Client {
	if custom != nil {
		return custom
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// BaseURL reports the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// GenerateRequest is the body of a two-stage generation call.
type GenerateRequest struct {
	UserQuery string            `json:"user_query"`
	Spec      *report.QuerySpec `json:"query_spec,omitempty"`
	report.Options
}

type topicRequest struct {
	Topic string `json:"topic"`
	report.Options
}

// Analyze asks the service to turn a free-text request into a QuerySpec.
func (c *Client) Analyze(ctx context.Context, rawQuery string) (report.QuerySpec, error) {
	var spec report.QuerySpec
	err := c.postJSON(ctx, StageAnalyze, "/api/process-query", map[string]string{"query": rawQuery}, &spec)
	return spec, err
}

// Generate asks the service to retrieve papers for spec and compile a report.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (report.Result, error) {
	var result report.Result
	err := c.postJSON(ctx, StageGenerate, "/api/generate-advanced", req, &result)
	return result, err
}

// GenerateTopic runs the single-stage flow: the service interprets topic itself.
func (c *Client) GenerateTopic(ctx context.Context, topic string, opts report.Options) (report.Result, error) {
	var result report.Result
	err := c.postJSON(ctx, StageGenerate, "/api/generate", topicRequest{Topic: topic, Options: opts}, &result)
	return result, err
}

func (c *Client) postJSON(ctx context.Context, stage, path string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", stage, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &ServiceError{Stage: stage, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	return decodeResponse(stage, resp, out)
}

func decodeResponse(stage string, resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceError{Stage: stage, Status: resp.StatusCode, Detail: err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{Stage: stage, Status: resp.StatusCode, Detail: failureDetail(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ServiceError{Stage: stage, Status: resp.StatusCode, Detail: fmt.Sprintf("malformed response: %v", err), Err: err}
	}
	return nil
}
