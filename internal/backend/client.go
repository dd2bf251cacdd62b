package backend

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const (
	// maxResponseSize is the maximum decompressed response body size (10 MiB).
	maxResponseSize = 10 * 1024 * 1024

	// uploaderPrefix is the product token appended to the configured user agent.
	uploaderPrefix = "Uploader/"
)

// Client talks to the luna backend. Every exported call is retried per the
// configured RetryPolicy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	dbName     string
	retry      RetryPolicy
	logger     *slog.Logger
}

// New creates a new backend Client with the given configuration.
func New(cfg Config, version string, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		},
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		DisableCompression: true,
	}

	if cfg.TLSInsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled", "component", "backend")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		baseURL:   strings.TrimRight(cfg.APIAddress, "/"),
		userAgent: fmt.Sprintf("%s, %s%s", cfg.UserAgent, uploaderPrefix, version),
		dbName:    cfg.DBName,
		retry:     cfg.RetryPolicy(),
		logger:    logger.With("component", "backend"),
	}, nil
}

// UserAgent returns the User-Agent header value sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// doJSON sends a JSON body and decodes the JSON response into result.
func (c *Client) doJSON(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: marshal request body: %w", err)
	}

	resp, err := c.send(ctx, path, "application/json", data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}

	var reader io.Reader = io.LimitReader(resp.Body, maxResponseSize)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("backend: gzip decompress response: %w", err)
		}
		defer gr.Close()
		reader = io.LimitReader(gr, maxResponseSize)
	}
	dec := json.NewDecoder(reader)
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProtocol, err)
	}
	return nil
}

// doRaw sends body as-is and discards the response body.
func (c *Client) doRaw(ctx context.Context, path, contentType string, body []byte) error {
	resp, err := c.send(ctx, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return nil
}

// send builds and executes a POST request with standard headers.
func (c *Client) send(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("sending request", "path", path, "bytes", len(body))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: POST %s: %w", path, err)
	}
	return resp, nil
}
