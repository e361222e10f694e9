package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/modi-labs/modi/internal/branding"
)

const defaultBreakerThreshold = 3

// Client fetches package metadata and source archives from one index.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	threshold int
	breakers  map[string]*circuit.Breaker
	cache     *lookupCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithBreakerThreshold sets how many failures against one host open its breaker.
func WithBreakerThreshold(n int) Option {
	return func(cl *Client) {
		cl.threshold = n
	}
}

// New creates a Client for baseURL (e.g. "https://pypi.org").
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = branding.IndexURL()
	}

	// The resolver is never refreshed in the background; entries live for
	// the duration of one invocation.
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
				},
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: branding.CLIName() + "-installer",
		threshold: defaultBreakerThreshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the index base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// breaker returns the breaker for the host of rawURL, creating it on first use.
func (c *Client) breaker(rawURL string) (*circuit.Breaker, string) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	if b, ok := c.breakers[host]; ok {
		return b, host
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(int64(c.threshold)),
	})
	c.breakers[host] = b

	return b, host
}

// get performs one GET through the host's breaker. A 404 is returned as an
// *HTTPError but does not count against the breaker. The caller closes the body.
func (c *Client) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	b, host := c.breaker(rawURL)
	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var (
		resp     *http.Response
		notFound error
	)
	err := b.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		r, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("requesting %s: %w", rawURL, err)
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode == http.StatusNotFound:
			_ = r.Body.Close()
			notFound = &HTTPError{StatusCode: r.StatusCode, URL: rawURL}
			return nil
		default:
			_ = r.Body.Close()
			return &HTTPError{StatusCode: r.StatusCode, URL: rawURL}
		}
	}, 0)
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}

	return resp, nil
}

// Download fetches rawURL into destDir and returns the written file path.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	name := archiveName(rawURL)
	if name == "" {
		return "", fmt.Errorf("%w: no file name in %s", ErrDownloadFailed, rawURL)
	}

	resp, err := c.get(ctx, rawURL, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	destPath := filepath.Join(destDir, name)
	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrDownloadFailed, destPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: writing %s: %w", ErrDownloadFailed, destPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %w", ErrDownloadFailed, destPath, err)
	}

	return destPath, nil
}

// VerifyDigest checks the SHA-256 of the file at path against the hex digest
// published by the index. An empty digest is not checked.
func VerifyDigest(path, expected string) error {
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %s for checksum: %w", ErrDownloadFailed, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("%w: computing checksum: %w", ErrDownloadFailed, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: checksum mismatch: expected %s, got %s", ErrDownloadFailed, expected, actual)
	}

	return nil
}

// BreakerOpen reports whether the breaker for the host of rawURL is open.
func (c *Client) BreakerOpen(rawURL string) bool {
	b, _ := c.breaker(rawURL)
	return !b.Ready()
}

func archiveName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
