// Package client provides the typed HTTP clients for the qkv API: a full
// client used by the kv command group and tooling, and the replication
// client the leader's coordinator fans writes out with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quorumkv/qkv/rpc/common"
)

var Logger = common.GetLogger("client")

// NormalizeBaseURL turns a bare host:port into a usable base URL and strips
// trailing slashes.
func NormalizeBaseURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

// Client is a typed HTTP client for a single qkv node.
type Client struct {
	baseURL    string
	client     *http.Client
	retryCount int
}

// New creates a client for the endpoint in the given configuration.
func New(config common.ClientConfig) *Client {
	retryCount := config.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}
	return &Client{
		baseURL: NormalizeBaseURL(config.Endpoint),
		client: &http.Client{
			Timeout: config.Timeout(),
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     config.Timeout(),
			},
		},
		retryCount: retryCount,
	}
}

// --------------------------------------------------------------------------
// API Methods
// --------------------------------------------------------------------------

// Get reads a key from the node's local store.
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
	if err != nil {
		return "", false, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		var body common.GetResponse
		if err := decodeBody(resp, &body); err != nil {
			return "", false, err
		}
		return body.Value, body.Found, nil
	default:
		return "", false, decodeError(resp)
	}
}

// Put writes a key through the leader's quorum coordinator. Both the success
// and the quorum-failure response are returned as-is so callers can inspect
// the status, confirmation count and reason; the error is only non-nil for
// transport problems or client errors (not leader, missing field).
func (c *Client) Put(ctx context.Context, key, value string) (common.WriteResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/put/"+url.PathEscape(key), common.PutRequest{Value: &value})
	if err != nil {
		return common.WriteResponse{}, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusInternalServerError:
		var body common.WriteResponse
		if err := decodeBody(resp, &body); err != nil {
			return common.WriteResponse{}, err
		}
		return body, nil
	default:
		return common.WriteResponse{}, decodeError(resp)
	}
}

// SetQuorum overwrites the leader's write quorum.
func (c *Client) SetQuorum(ctx context.Context, quorum int) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/admin/set_quorum", common.SetQuorumRequest{Quorum: &quorum})
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	var body common.QuorumResponse
	if err := decodeBody(resp, &body); err != nil {
		return 0, err
	}
	return body.WriteQuorum, nil
}

// GetQuorum returns the node's current write quorum.
func (c *Client) GetQuorum(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/get_quorum", nil)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	var body common.QuorumResponse
	if err := decodeBody(resp, &body); err != nil {
		return 0, err
	}
	return body.WriteQuorum, nil
}

// DumpStore fetches the node's full store contents.
func (c *Client) DumpStore(ctx context.Context) (map[string]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/store", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var body common.StoreResponse
	if err := decodeBody(resp, &body); err != nil {
		return nil, err
	}
	return body.Store, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// do sends a request, retrying on transport errors. HTTP error statuses are
// not retried; the response is handed back for the caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for i := 0; i < c.retryCount; i++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		Logger.Debugf("request attempt %d/%d to %s failed: %v", i+1, c.retryCount, path, err)
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", path, c.retryCount, lastErr)
}

// decodeBody decodes a JSON response body and closes it
func decodeBody(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns a non-success response into an error, preferring the
// server's own error message when the body carries one
func decodeError(resp *http.Response) error {
	defer resp.Body.Close()
	var body common.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
