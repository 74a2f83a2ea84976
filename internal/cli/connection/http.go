package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/tallymesh/internal/core/domain"
	"github.com/yndnr/tallymesh/internal/infra/buildinfo"
)

// Identity headers understood by the server.
const (
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

// APIError is a decoded server error envelope.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPClient talks to the counter and presence HTTP API.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	identity domain.Identity
}

// NewHTTPClient creates a client for server. A bare host:port is
// treated as http.
func NewHTTPClient(server string, identity domain.Identity, tlsConfig *tls.Config) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	return &HTTPClient{
		baseURL:  baseURL,
		identity: identity,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// WebSocketURL maps path onto the ws or wss scheme of the base URL.
func (c *HTTPClient) WebSocketURL(path string) string {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return c.baseURL + path
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// IdentityHeader returns the identity headers, for use by sockets.
func (c *HTTPClient) IdentityHeader() http.Header {
	h := http.Header{}
	c.setIdentity(h)
	return h
}

// CounterPath returns the API path of a counter. An empty name or the
// global name maps to the singleton routes.
func CounterPath(name string) string {
	if name == "" || name == domain.GlobalCounterName {
		return "/api/counter"
	}
	return "/api/counters/" + url.PathEscape(name)
}

// GetCounter fetches a counter snapshot.
func (c *HTTPClient) GetCounter(ctx context.Context, name string) (domain.CounterState, error) {
	var st domain.CounterState
	resp, err := c.Get(ctx, CounterPath(name)+"/")
	if err != nil {
		return st, err
	}
	return st, ParseResponse(resp, &st)
}

// Increment adds amount to a counter. A nil amount uses the server default.
func (c *HTTPClient) Increment(ctx context.Context, name string, amount *float64) (domain.CounterState, error) {
	return c.mutate(ctx, CounterPath(name)+"/increment", amount)
}

// Decrement subtracts amount from a counter.
func (c *HTTPClient) Decrement(ctx context.Context, name string, amount *float64) (domain.CounterState, error) {
	return c.mutate(ctx, CounterPath(name)+"/decrement", amount)
}

// ConnectionCount returns the number of presence sockets.
func (c *HTTPClient) ConnectionCount(ctx context.Context) (int, error) {
	var body struct {
		Count int `json:"count"`
	}
	resp, err := c.Get(ctx, "/api/connection-counter/")
	if err != nil {
		return 0, err
	}
	if err := ParseResponse(resp, &body); err != nil {
		return 0, err
	}
	return body.Count, nil
}

func (c *HTTPClient) mutate(ctx context.Context, path string, amount *float64) (domain.CounterState, error) {
	var st domain.CounterState
	var body any
	if amount != nil {
		body = map[string]float64{"amount": *amount}
	}
	resp, err := c.Post(ctx, path, body)
	if err != nil {
		return st, err
	}
	return st, ParseResponse(resp, &st)
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	c.setIdentity(req.Header)
	req.Header.Set("User-Agent", buildinfo.UserAgent("tallymesh-cli"))
}

func (c *HTTPClient) setIdentity(h http.Header) {
	if c.identity.Name != "" {
		h.Set(HeaderUserName, c.identity.Name)
	}
	if c.identity.Email != "" {
		h.Set(HeaderUserEmail, c.identity.Email)
	}
}

// ParseResponse decodes a JSON body into target, or the error envelope
// into an *APIError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err == nil && apiErr.Message != "" {
			return apiErr
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}
