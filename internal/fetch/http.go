// Package fetch provides a lightweight HTTP snapshot client used for menu
// enrichment. Store pages carry most of their menu in the server-rendered
// document, so a plain GET is far cheaper than a browser round trip and
// keeps pressure off the site's rate defenses.
package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/yutingko/teascout/internal/types"
)

// Config controls the snapshot client.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodySize    int64
}

// Client fetches a single rendered-as-served HTML document.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a snapshot client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 10 * 1024 * 1024
	}
	transport := &http.Transport{
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
		// We handle decompression ourselves (including brotli).
		DisableCompression: true,
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger.With("component", "snapshot_fetcher"),
	}
}

// Get fetches the URL and returns the decoded HTML body.
// An HTTP 429 surfaces as types.ErrRateLimited so the caller can abort the
// crawl pass.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if c.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: HTTP 429 from %s", types.ErrRateLimited, url)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("get %s: HTTP %d", url, resp.StatusCode)
	}

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, c.cfg.MaxBodySize))
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", url, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	c.logger.Debug("snapshot fetched",
		"url", url,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return string(body), nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
