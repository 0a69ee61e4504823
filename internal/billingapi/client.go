// Package billingapi is the REST client for the remote billing API the console sits on.
package billingapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DefaultErrorMessage is reported when the API did not supply a message of its own.
const DefaultErrorMessage = "Failed to load dashboard data"

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is returned when the API answers with a failure envelope or a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billingapi: status %d", e.Status)
	}
	return fmt.Sprintf("billingapi: status %d: %s", e.Status, e.Message)
}

// MessageFrom extracts the user-facing message carried by err, falling back to
// DefaultErrorMessage.
func MessageFrom(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}

// Client talks to the billing API on behalf of one principal.
type Client struct {
	base   *url.URL
	client HTTPClient
	token  string
}

// NewClient constructs a Client for the API rooted at baseURL.
func NewClient(baseURL string, client HTTPClient) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("billingapi: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("billingapi: parse base URL: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: parsed, client: client}, nil
}

// WithToken returns a copy of the client that authenticates with the bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// get issues a GET and returns the envelope's data member.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billingapi: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("billingapi: read %s: %w", endpoint, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = strings.TrimSpace(env.Message)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("billingapi: decode %s: %w", endpoint, decodeErr)
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(env.Message)}
	}
	return env.Data, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.base.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	target := c.base.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("billingapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
