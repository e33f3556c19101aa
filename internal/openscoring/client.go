// Package openscoring is a client for the Openscoring REST API, which deploys
// PMML models and evaluates records against them.
//
//   - Deploy:   PUT    {base}/model/{id}      body PMML, text/xml
//   - Evaluate: POST   {base}/model/{id}      body JSON, application/json
//   - CSV:      POST   {base}/model/{id}/csv  body CSV, text/plain
//   - Undeploy: DELETE {base}/model/{id}
package openscoring

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
)

const (
	ContentTypeXML  = "text/xml"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"

	// DefaultTimeout bounds a single request when no client is supplied
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

// ErrMalformedResponse is returned when an evaluation response cannot be
// interpreted
var ErrMalformedResponse = errors.New("malformed evaluation response")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status=%d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status=%d, body=%s", e.Method, e.URL, e.StatusCode, e.Body)
}

// EvaluationResponse is the JSON body returned by a model evaluation
type EvaluationResponse struct {
	ID     string                 `json:"id"`
	Result map[string]interface{} `json:"result"`
}

// Client talks to one Openscoring server
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080/openscoring". A trailing slash is dropped.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the normalized server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ModelURL returns the endpoint of a model id
func (c *Client) ModelURL(id string) string {
	return c.baseURL + "/model/" + url.PathEscape(id)
}

// DeployModel uploads pmml under id
func (c *Client) DeployModel(ctx context.Context, id, pmml string) error {
	resp, err := c.do(ctx, http.MethodPut, c.ModelURL(id), ContentTypeXML+"; charset=utf-8", strings.NewReader(pmml))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Evaluate scores a JSON body against model id
func (c *Client) Evaluate(ctx context.Context, id string, body []byte) (*EvaluationResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.ModelURL(id), ContentTypeJSON, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}

	result, ok := raw["result"]
	if !ok {
		return nil, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}

	out := &EvaluationResponse{}
	if idRaw, ok := raw["id"]; ok {
		_ = json.Unmarshal(idRaw, &out.ID)
	}

	resultDecoder := json.NewDecoder(bytes.NewReader(result))
	resultDecoder.UseNumber()
	if err := resultDecoder.Decode(&out.Result); err != nil {
		return nil, fmt.Errorf("%w: result is not an object: %v", ErrMalformedResponse, err)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("%w: result is null", ErrMalformedResponse)
	}
	return out, nil
}

// EvaluateCSV scores a CSV body against model id and returns the raw CSV
// response
func (c *Client) EvaluateCSV(ctx context.Context, id string, body []byte) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, c.ModelURL(id)+"/csv", ContentTypeText, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read csv response: %w", err)
	}
	return data, nil
}

// UndeployModel removes model id from the server
func (c *Client) UndeployModel(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.ModelURL(id), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends a request and turns non-2xx statuses into *StatusError. The
// caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, target, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return resp, nil
}
