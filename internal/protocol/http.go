// SPDX-License-Identifier: AGPL-3.0-only
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxErrorBody = 4 << 10

type HTTPClient struct {
	HTTPClient http.Client
	UserAgent  string
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		HTTPClient: http.Client{
			Timeout: timeout,
		},
		UserAgent: "ordinary-feed/1.0",
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d, %v", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("unexpected status code: %d, %v. Body: %s", e.StatusCode, e.Status, e.Body)
}

// Temporary reports whether retrying the same request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DoJSON sends body (if non-nil) as JSON and decodes a JSON response into out
// (if non-nil). Headers are applied after the defaults.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
