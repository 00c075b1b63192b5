package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"synth-market/config"
	"synth-market/utils"
)

// maxBodyBytes caps how much of a response is read into memory.
const maxBodyBytes = 8 << 20

// ResponseCache stores successful GET bodies keyed by URL.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Client is the HTTP client every adapter goes through. It applies the
// configured proxy and browser user agent and consults the response cache.
type Client struct {
	http   *http.Client
	cfg    *config.Config
	cache  ResponseCache
	logger *utils.Logger
	calls  atomic.Int64
}

// NewClient builds a Client. cache may be nil.
func NewClient(cfg *config.Config, cache ResponseCache, logger *utils.Logger) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("scraper: invalid PROXY_URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		http:   &http.Client{Timeout: timeout, Transport: transport},
		cfg:    cfg,
		cache:  cache,
		logger: logger,
	}, nil
}

// UserAgent returns the next user agent in the configured rotation.
func (c *Client) UserAgent() string {
	return c.cfg.UserAgent(int(c.calls.Add(1)))
}

// ProxyURL exposes the configured proxy for non-HTTP fetchers (headless browser).
func (c *Client) ProxyURL() string {
	return c.cfg.ProxyURL
}

// Get fetches rawURL and returns the body of a 2xx answer. Bodies are
// served from and stored in the response cache when one is configured.
func (c *Client) Get(ctx context.Context, source, rawURL string, headers http.Header) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, rawURL); ok {
			c.logger.Debug("[http] cache hit %s", rawURL)
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Unavailable(source, "build request", err)
	}
	req.Header.Set("User-Agent", c.UserAgent())
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Unavailable(source, "GET "+rawURL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("[http] %s GET %s → %d in %v", source, rawURL, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPError{Source: source, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Unavailable(source, "read body", err)
	}

	if c.cache != nil {
		c.cache.Set(ctx, rawURL, body)
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, source, rawURL string, headers http.Header, v any) error {
	if headers == nil {
		headers = http.Header{}
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", "application/json")
	}

	body, err := c.Get(ctx, source, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Unavailable(source, "decode json", err)
	}
	return nil
}
