package medium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote is a medium served over HTTP by pkg/kvserver.
//
// Wire format:
//
//	HEAD   /kv/{key}        200 if stored, 404 otherwise
//	GET    /kv/{key}        200 with the raw value, 404 otherwise
//	PUT    /kv/{key}        stores the request body, 204
//	DELETE /kv/{key}        204
//	GET    /kv?prefix=p     200 with a JSON array of keys
type Remote struct {
	baseURL string
	client  *http.Client
}

// RemoteOption configures Remote behavior.
type RemoteOption func(*Remote)

// WithHTTPClient sets the HTTP client used for requests.
// Default: a client with a 10 second timeout.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = c
	}
}

// NewRemote creates a medium that talks to the key/value API at baseURL
// (e.g. "http://localhost:3100").
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) keyURL(key string) string {
	return r.baseURL + "/kv/" + url.PathEscape(key)
}

func (r *Remote) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return r.client.Do(req)
}

func statusError(method string, resp *http.Response) error {
	return fmt.Errorf("remote medium: %s returned %s", method, resp.Status)
}

// Has reports whether key is stored on the server.
func (r *Remote) Has(ctx context.Context, key string) (bool, error) {
	resp, err := r.do(ctx, http.MethodHead, r.keyURL(key), nil)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(http.MethodHead, resp)
	}
}

// Get fetches the value stored under key.
func (r *Remote) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := r.do(ctx, http.MethodGet, r.keyURL(key), nil)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, err
		}
		return string(body), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, statusError(http.MethodGet, resp)
	}
}

// Set stores value under key on the server.
func (r *Remote) Set(ctx context.Context, key, value string) error {
	resp, err := r.do(ctx, http.MethodPut, r.keyURL(key), bytes.NewBufferString(value))
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(http.MethodPut, resp)
	}
	return nil
}

// Remove deletes key on the server.
func (r *Remote) Remove(ctx context.Context, key string) error {
	resp, err := r.do(ctx, http.MethodDelete, r.keyURL(key), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return statusError(http.MethodDelete, resp)
	}
	return nil
}

// Keys lists the keys stored on the server with the given prefix.
func (r *Remote) Keys(ctx context.Context, prefix string) ([]string, error) {
	target := r.baseURL + "/kv?prefix=" + url.QueryEscape(prefix)
	resp, err := r.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodGet, resp)
	}
	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, err
	}
	return keys, nil
}
