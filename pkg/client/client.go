// Package client talks to the battdiag daemon over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	apiKeyHeader   = "X-API-Key"
	adminKeyHeader = "X-Admin-Key"

	defaultTimeout = 30 * time.Second
)

// Client is a struct for communicating with the battdiag daemon.
type Client struct {
	baseURL    string
	apiKey     string
	adminKey   string
	httpClient *http.Client
	// streamClient has no timeout, for event streams.
	streamClient *http.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithAdminKey(key string) Option {
	return func(c *Client) { c.adminKey = key }
}

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the daemon at baseURL, e.g.
// "http://127.0.0.1:8000". A bare host:port is accepted.
func NewClient(baseURL string, opts ...Option) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to encode request body")
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if c.adminKey != "" {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}
	return req, nil
}

// Send sends a request to the daemon and returns the response body. Bodies
// are encoded as JSON. Non-2xx responses are returned as *APIError.
func (c *Client) Send(ctx context.Context, method, path string, body any) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"url":    c.baseURL,
	}).Debug("sending request")

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, connError(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, b)
	}

	return b, nil
}

// Get is a method for sending a GET request to the daemon.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Send(ctx, http.MethodGet, path, nil)
}

// Post is a method for sending a POST request to the daemon.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Send(ctx, http.MethodPost, path, body)
}

func connError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrDaemonNotRunning
	}
	return fmt.Errorf("failed to send request: %w", err)
}

func decode[T any](b []byte, what string) (*T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}
