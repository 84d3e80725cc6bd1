// Package portainer deploys stacks through the Portainer HTTP API. Stack
// state is never cached: every mutation is preceded by a fresh listing, so
// the create-or-update decision always acts on just-observed state. Two
// concurrent deployers can still race that compare-then-act window; callers
// are expected to serialize deployments externally.
package portainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deploykit-dev/deploykit/internal/core/envfile"
)

// DefaultTimeout bounds every Portainer API call.
const DefaultTimeout = 30 * time.Second

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoEndpoints is returned when Portainer reports no Docker endpoints.
	ErrNoEndpoints = errors.New("no Portainer endpoints found")
)

// APIError is a non-2xx Portainer response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("portainer API returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("portainer API returned %d", e.StatusCode)
}

// =============================================================================
// Stack Descriptor
// =============================================================================

// StackDescriptor identifies a stack on a Portainer endpoint. ID is only
// meaningful when Found is true; existence is discovered by listing, never
// cached across calls.
type StackDescriptor struct {
	Name       string
	ID         int
	EndpointID int
	Found      bool
}

// =============================================================================
// API Client
// =============================================================================

// apiClient is an authenticated Portainer client scoped to one Deploy or
// Teardown call.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) *apiClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// close releases the client's idle connections.
func (c *apiClient) close() {
	c.http.CloseIdleConnections()
}

type endpointResponse struct {
	ID int `json:"Id"`
}

type stackResponse struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// firstEndpoint resolves the endpoint to deploy to. Multi-endpoint targeting
// is unsupported: the first listed endpoint always wins.
func (c *apiClient) firstEndpoint(ctx context.Context) (int, error) {
	var endpoints []endpointResponse
	if err := c.do(ctx, http.MethodGet, "/api/endpoints", nil, nil, &endpoints); err != nil {
		return 0, err
	}
	if len(endpoints) == 0 {
		return 0, ErrNoEndpoints
	}
	return endpoints[0].ID, nil
}

// findStack lists all stacks and linearly scans for an exact name match.
func (c *apiClient) findStack(ctx context.Context, name string, endpointID int) (StackDescriptor, error) {
	var stacks []stackResponse
	if err := c.do(ctx, http.MethodGet, "/api/stacks", nil, nil, &stacks); err != nil {
		return StackDescriptor{}, err
	}

	for _, s := range stacks {
		if s.Name == name {
			return StackDescriptor{Name: name, ID: s.ID, EndpointID: endpointID, Found: true}, nil
		}
	}
	return StackDescriptor{Name: name, EndpointID: endpointID}, nil
}

type createStackRequest struct {
	Name             string        `json:"name"`
	StackFileContent string        `json:"stackFileContent"`
	Env              []envfile.Var `json:"env"`
}

type updateStackRequest struct {
	StackFileContent string        `json:"stackFileContent"`
	Env              []envfile.Var `json:"env"`
	Prune            bool          `json:"prune"`
}

func (c *apiClient) createStack(ctx context.Context, name string, endpointID int, content string, env []envfile.Var) error {
	query := url.Values{"endpointId": {strconv.Itoa(endpointID)}}
	body := createStackRequest{Name: name, StackFileContent: content, Env: env}
	return c.do(ctx, http.MethodPost, "/api/stacks/create/standalone/string", query, body, nil)
}

// updateStack replaces the stack's compose content and environment without
// pruning resources that dropped out of the document.
func (c *apiClient) updateStack(ctx context.Context, stack StackDescriptor, content string, env []envfile.Var) error {
	query := url.Values{"endpointId": {strconv.Itoa(stack.EndpointID)}}
	body := updateStackRequest{StackFileContent: content, Env: env, Prune: false}
	return c.do(ctx, http.MethodPut, "/api/stacks/"+strconv.Itoa(stack.ID), query, body, nil)
}

func (c *apiClient) deleteStack(ctx context.Context, stack StackDescriptor) error {
	query := url.Values{"endpointId": {strconv.Itoa(stack.EndpointID)}}
	return c.do(ctx, http.MethodDelete, "/api/stacks/"+strconv.Itoa(stack.ID), query, nil, nil)
}

// do issues one authenticated API call. Non-2xx responses become APIError
// with the response body attached.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
