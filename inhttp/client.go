// Package inhttp implements a Perch session backend over the PerchDB REST
// transaction endpoints: begin (POST /tx), append statements (POST /tx/:id),
// commit (POST /tx/:id/commit) and delete-as-rollback (DELETE /tx/:id).
package inhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sethvargo/go-retry"

	"github.com/perchdb/perch"
)

const apiBase = "/api/v1"

// Client is a thin JSON client over the server's transaction API.
type Client struct {
	opts perch.ConnectionOptions
	hc   *http.Client
}

// NewClient returns a client for the given connection options.
func NewClient(opts perch.ConnectionOptions) *Client {
	return &Client{
		opts: opts,
		hc:   &http.Client{Timeout: opts.TimeoutOrDefault()},
	}
}

// Handshake fetches the server info. It is idempotent and retried on
// transient transport failures.
func (c *Client) Handshake(ctx context.Context) (perch.ServerInfo, error) {
	var info perch.ServerInfo
	err := perch.Retry(ctx, func(ctx context.Context) error {
		status, body, err := c.doBody(ctx, http.MethodGet, apiBase+"/info", nil)
		if err != nil {
			if perch.ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("handshake: unexpected status %d", status)
		}
		return json.Unmarshal(body, &info)
	}, nil)
	return info, err
}

// doTx sends a transaction API request and decodes the TxResponse envelope.
func (c *Client) doTx(ctx context.Context, method, path string, in *perch.TxRequest) (int, perch.TxResponse, error) {
	var out perch.TxResponse
	var payload io.Reader
	if in != nil {
		ba, err := json.Marshal(in)
		if err != nil {
			return 0, out, err
		}
		payload = bytes.NewReader(ba)
	}
	status, body, err := c.doBody(ctx, method, path, payload)
	if err != nil {
		return 0, out, err
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return status, out, fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return status, out, nil
}

func (c *Client) doBody(ctx context.Context, method, path string, payload io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.BearerToken)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// expired reports whether the server answered "that transaction is gone".
func expired(status int, resp perch.TxResponse) bool {
	if status != http.StatusNotFound {
		return false
	}
	for _, e := range resp.Errors {
		if e.Code == perch.ExpiredErrorCode {
			return true
		}
	}
	return false
}

// apiError folds the server's error list into one error.
func apiError(method, path string, status int, resp perch.TxResponse) error {
	if len(resp.Errors) > 0 {
		return fmt.Errorf("%s %s: status %d: %s: %s", method, path, status, resp.Errors[0].Code, resp.Errors[0].Message)
	}
	return fmt.Errorf("%s %s: unexpected status %d", method, path, status)
}
