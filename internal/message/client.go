package message

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"noderig/pkg/logging"
)

// Endpoint is the path of the node's message-injection endpoint.
const Endpoint = "/rpc:distro:sys/message"

const subsystem = "Codec"

// NormalizeURL appends Endpoint to base unless it is already present.
// "http://h:1/" and "http://h:1" normalize identically.
func NormalizeURL(base string) string {
	if strings.HasSuffix(base, Endpoint) {
		return base
	}
	return strings.TrimSuffix(base, "/") + Endpoint
}

// NodeURL returns the base URL of a node listening on localhost.
func NodeURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// Client performs wire round trips against nodes. At most one request per
// node is expected to be in flight at a time.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client backed by a pooled transport.
func NewClient() *Client {
	return &Client{httpClient: cleanhttp.DefaultPooledClient()}
}

// NewClientWithHTTP creates a client using the given HTTP client.
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Transmit POSTs env as JSON to the normalized URL. The caller owns the
// returned response body.
func (c *Client) Transmit(ctx context.Context, baseURL string, env *Envelope) (*http.Response, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	url := NormalizeURL(baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logging.Debug(subsystem, "POST %s process=%s", url, env.Process)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return resp, nil
}

// Call builds, transmits and decodes in one round trip.
func (c *Client) Call(ctx context.Context, baseURL string, req Request) (*Response, error) {
	env, err := Build(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.Transmit(ctx, baseURL, env)
	if err != nil {
		return nil, err
	}
	return Decode(resp)
}

// CheckStatus builds and transmits req and only checks the HTTP status.
func (c *Client) CheckStatus(ctx context.Context, baseURL string, req Request) error {
	env, err := Build(req)
	if err != nil {
		return err
	}
	resp, err := c.Transmit(ctx, baseURL, env)
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Send composes build and transmit and decodes the response only when the
// envelope asks for one. The decoded response is nil for fire-and-forget
// requests.
func (c *Client) Send(ctx context.Context, baseURL string, req Request) (*Response, error) {
	env, err := Build(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.Transmit(ctx, baseURL, env)
	if err != nil {
		return nil, err
	}

	if env.ExpectsReply() {
		decoded, err := Decode(resp)
		if err != nil {
			return nil, err
		}
		logging.Info(subsystem, "%s", decoded)
		return decoded, nil
	}

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	logging.Info(subsystem, "%d", http.StatusOK)
	return nil, nil
}
