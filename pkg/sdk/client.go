// Package docsift is a typed HTTP client for the docsift API.
package docsift

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	apiKey     string
	httpClient *http.Client
}

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) { c.apiKey = key })
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) { c.httpClient = hc })
}

// Client is the docsift SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("docsift: base URL required")
	}

	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    hc,
	}, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docsift: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Upload sends a PDF for analysis. query is optional; when non-empty the
// response carries an initial answer.
func (c *Client) Upload(ctx context.Context, filename string, content []byte, query string) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("docsift: build form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return UploadResult{}, fmt.Errorf("docsift: build form: %w", err)
	}
	if query != "" {
		if err := mw.WriteField("query", query); err != nil {
			return UploadResult{}, fmt.Errorf("docsift: build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("docsift: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("docsift: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.doUpload(req, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

// Ask asks a question against the uploaded document. topK <= 0 uses the
// server default.
func (c *Client) Ask(ctx context.Context, question string, topK int) (Answer, error) {
	var out Answer
	err := c.postJSON(ctx, "/v1/ask", map[string]any{"question": question, "top_k": topK}, &out)
	return out, err
}

// Search returns raw retrieval hits without answer synthesis.
func (c *Client) Search(ctx context.Context, query string, topK int) (SearchResult, error) {
	var out SearchResult
	err := c.postJSON(ctx, "/v1/search", map[string]any{"query": query, "top_k": topK}, &out)
	return out, err
}

// Highlights resolves sentence ids to page rectangles. Unknown ids are
// omitted from the response.
func (c *Client) Highlights(ctx context.Context, sentenceIDs []int) ([]Highlight, error) {
	var out struct {
		Highlights []Highlight `json:"highlights"`
	}
	err := c.postJSON(ctx, "/v1/highlights", map[string]any{"sentence_ids": sentenceIDs}, &out)
	return out.Highlights, err
}

// DeleteDocument discards the active document and its stored file.
func (c *Client) DeleteDocument(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/documents", nil)
	if err != nil {
		return false, fmt.Errorf("docsift: build request: %w", err)
	}

	var out struct {
		Removed bool `json:"removed"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Removed, nil
}

// Stats reports stored upload counts and sizes.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("docsift: build request: %w", err)
	}

	var out Stats
	if err := c.do(req, &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// Health reports service health. A degraded service still answers.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthReport{}, fmt.Errorf("docsift: build request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return HealthReport{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	// 503 still carries a valid report body.
	var out HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return HealthReport{}, fmt.Errorf("docsift: decode response: %w", err)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("docsift: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("docsift: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docsift: request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("docsift: decode response: %w", err)
	}
	return nil
}

// doUpload handles the upload envelope, which signals failure via the
// success flag rather than the error code shape.
func (c *Client) doUpload(req *http.Request, out *UploadResult) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("docsift: read response: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("docsift: decode response: %w", err)
	}
	if !out.Success {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       out.ErrorType,
			Message:    out.ErrorMessage,
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "unknown",
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		Message:    body.Message,
	}
}
