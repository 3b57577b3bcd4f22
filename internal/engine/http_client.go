// SPDX-License-Identifier: MIT
package engine

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

	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/resilience"
)

// HTTPClient implements Client against the engine's JSON-over-HTTP API.
// The create path runs behind a circuit breaker so a hard engine outage
// fails fast instead of burning the whole retry budget per message.
type HTTPClient struct {
	base    string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker("engine", 5, 30*time.Second),
	}
}

func (c *HTTPClient) CreateChannel(ctx context.Context, req *model.ChannelProvisioningRequest) (*model.ChannelProvisioningResult, error) {
	var out model.ChannelProvisioningResult
	err := c.breaker.Execute(func() error {
		return c.doJSON(ctx, http.MethodPost, c.base+"/v1/channels", req, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.ChannelID == "" {
		return nil, fmt.Errorf("engine returned no channelId for content %s", req.ContentID)
	}
	return &out, nil
}

func (c *HTTPClient) DeleteChannel(ctx context.Context, channelID string) error {
	u := c.base + "/v1/channels/" + url.PathEscape(channelID)
	return c.doJSON(ctx, http.MethodDelete, u, nil, nil)
}

func (c *HTTPClient) RotateIngestKey(ctx context.Context, channelID string) error {
	u := c.base + "/v1/channels/" + url.PathEscape(channelID) + "/rotate-ingest-key"
	return c.doJSON(ctx, http.MethodPost, u, nil, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode engine request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("engine %s %s: status %d: %s", method, u, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
