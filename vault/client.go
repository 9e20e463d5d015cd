// Package vault is a resilient client for the note vault's local REST
// service. Every request failure is classified into one of the typed
// errors in errors.go so callers can react to "service down" differently
// from "bad credential" or "no such note".
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Connection pool and handshake limits for the shared transport.
const (
	dialTimeout           = 10 * time.Second
	keepAlive             = 30 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
	idleConnTimeout       = 90 * time.Second
	maxIdleConns          = 20
	maxIdleConnsPerHost   = 5
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a vault client with a pooled transport and explicit
// dial and handshake timeouts. timeout bounds each whole request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
	}

	slog.Info("vault client initialized", "base_url", baseURL)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// EncodePath percent-encodes each path segment while preserving the
// slashes between them.
func EncodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// request issues one HTTP call and classifies every possible failure.
// endpoint must already be percent-encoded.
func (c *Client) request(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	fullURL := c.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(method, fullURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		slog.Error("vault auth error", "method", method, "url", fullURL)
		return nil, &AuthError{}
	case resp.StatusCode == http.StatusNotFound:
		slog.Error("vault resource not found", "method", method, "url", fullURL)
		return nil, &APIError{StatusCode: 404, Path: endpoint}
	case resp.StatusCode >= 400:
		slog.Error("vault http error", "method", method, "url", fullURL, "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Path: endpoint, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}

func classifyTransport(method, url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		slog.Error("vault request timed out", "method", method, "url", url, "error", err)
		return &ConnectionError{
			Reason: "Request timed out. Check your network or the vault's responsiveness.",
			Err:    err,
		}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		slog.Error("vault connection refused", "method", method, "url", url, "error", err)
		return &ConnectionError{
			Reason: "Connection failed. Is the vault service running with the REST API plugin enabled?",
			Err:    err,
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		slog.Error("vault connection error", "method", method, "url", url, "error", err)
		return &ConnectionError{
			Reason: "Connection failed. Is the vault service running with the REST API plugin enabled?",
			Err:    err,
		}
	}
	slog.Error("vault request error", "method", method, "url", url, "error", err)
	return &TransportError{Err: err}
}

// Info is the vault metadata reported by the service root.
type Info struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version string `json:"version"`
}

func (c *Client) Info(ctx context.Context) (*Info, error) {
	data, err := c.request(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return nil, err
	}
	info := &Info{Name: "Unknown", Path: "Unknown", Version: "Unknown"}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("malformed vault info response: %w", err)}
	}
	return info, nil
}

// Listing is one directory level of the vault.
type Listing struct {
	Subfolders []string `json:"subfolders"`
	Files      []string `json:"files"`
}

// List fetches the contents of one vault directory. Pass "." for the root.
func (c *Client) List(ctx context.Context, directory string) (*Listing, error) {
	data, err := c.request(ctx, http.MethodGet, "/vault/"+EncodePath(directory), nil, "")
	if err != nil {
		return nil, err
	}
	var listing Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("malformed vault listing: %w", err)}
	}
	return &listing, nil
}

// Read returns the full contents of a vault file.
func (c *Client) Read(ctx context.Context, path string) (string, error) {
	data, err := c.request(ctx, http.MethodGet, "/vault/"+EncodePath(path), nil, "")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write creates or fully overwrites a vault file with markdown content.
func (c *Client) Write(ctx context.Context, path, content string) error {
	_, err := c.request(ctx, http.MethodPut, "/vault/"+EncodePath(path), strings.NewReader(content), "text/markdown")
	return err
}

// Delete removes a vault file. Permanent.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.request(ctx, http.MethodDelete, "/vault/"+EncodePath(path), nil, "")
	return err
}

// TestConnection probes the service root. It never returns an error
// value; failures come back as (false, reason).
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	slog.Info("testing vault connection")
	if _, err := c.request(ctx, http.MethodGet, "/", nil, ""); err != nil {
		slog.Warn("vault connection test failed", "error", err)
		return false, err.Error()
	}
	return true, "Vault connection successful."
}
