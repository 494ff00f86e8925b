// backend/src/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/svcerror"
)

// Client is the shared HTTP client for the upstream transaction API.
// Every response follows the {data?, error?} envelope: a present error
// string with no data is the uniform business-failure signal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the upstream API with bearer-token auth.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// do issues one request and decodes the envelope into out. Transport
// failures and non-2xx responses with no parseable body surface as
// retryable transport errors; an envelope error string surfaces as a
// business-rule error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return svcerror.Wrap(svcerror.KindTransport, "encoding request body", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return svcerror.Wrap(svcerror.KindTransport, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return svcerror.Wrap(svcerror.KindTransport, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return svcerror.Wrap(svcerror.KindTransport, "reading response body", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.FromContext(ctx).Warn("Upstream response is not a valid envelope",
			"method", method, "path", path, "status", resp.StatusCode)
		return svcerror.Wrap(svcerror.KindTransport,
			fmt.Sprintf("unexpected response from %s %s (status %d)", method, path, resp.StatusCode), err)
	}

	if env.Error != "" {
		return svcerror.New(svcerror.KindBusinessRule, env.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return svcerror.New(svcerror.KindTransport,
			fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode))
	}

	if out != nil {
		if env.Data == nil {
			return svcerror.New(svcerror.KindTransport,
				fmt.Sprintf("%s %s returned no data", method, path))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return svcerror.Wrap(svcerror.KindTransport, "decoding response data", err)
		}
	}
	return nil
}
