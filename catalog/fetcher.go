package catalog

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent identifies listing requests.
	DefaultUserAgent = "specview/1.0"

	// DefaultMaxListingSize bounds a listing body.
	DefaultMaxListingSize int64 = 1 << 20
)

// Fetcher retrieves directory listings over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the Fetcher backed by net/http.
type HTTPFetcher struct {
	client         *http.Client
	transport      *http.Transport
	dialer         *net.Dialer
	userAgent      string
	maxContentSize int64
}

// NewHTTPFetcher creates a listing fetcher.
func NewHTTPFetcher(timeout time.Duration, userAgent string, maxContentSize int64) *HTTPFetcher {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxContentSize <= 0 {
		maxContentSize = DefaultMaxListingSize
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		transport:      transport,
		dialer:         dialer,
		userAgent:      userAgent,
		maxContentSize: maxContentSize,
	}
}

// BlockPrivateNetworks makes the fetcher refuse loopback, private,
// link-local and carrier-grade NAT addresses. Addresses are checked after DNS
// resolution at dial time, which also covers redirects and rebinding.
func (f *HTTPFetcher) BlockPrivateNetworks() *HTTPFetcher {
	dialer := f.dialer
	f.transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ipAddr.IP)
			}
		}

		var lastErr error
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %s", host)
		}
		return nil, lastErr
	}
	return f
}

// WithClient replaces the underlying HTTP client. Used by tests and by the
// server to reuse its own transport.
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

// Fetch retrieves the body at url. Any non-2xx status is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	limitReader := io.LimitReader(resp.Body, f.maxContentSize+1)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if int64(len(body)) > f.maxContentSize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)}
	}

	return body, nil
}
