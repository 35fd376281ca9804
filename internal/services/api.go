// Raw JSON client for a running ChordyPi server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIService makes raw HTTP requests against a ChordyPi server. The CLI uses it for ad hoc API calls.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// NewAPIService creates a new API service instance. baseURL defaults to the local development server.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse is a raw response. JSONData holds the decoded body when it parsed as JSON.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to path.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.send(ctx, http.MethodGet, path, nil)
}

// Post sends data as a JSON body to path.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	if data == nil {
		data = []byte{}
	}
	return a.send(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request with an optional JSON body.
func (a *APIService) Delete(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	if len(data) == 0 {
		data = nil
	}
	return a.send(ctx, http.MethodDelete, path, data)
}

// WithHeader sets a header sent with every request, such as X-Pi-User.
func (a *APIService) WithHeader(key, value string) *APIService {
	if a.headers == nil {
		a.headers = http.Header{}
	}
	a.headers.Set(key, value)
	return a
}

// send builds the request. A nil body sends none; any other body is sent as JSON.
func (a *APIService) send(ctx context.Context, method, path string, body []byte) (*APIResponse, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.headers {
		req.Header[k] = v
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err == nil {
		out.IsJSON = true
		out.JSONData = decoded
	}
	return out, nil
}
