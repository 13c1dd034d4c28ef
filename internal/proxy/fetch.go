// Package proxy sends outbound HTTP calls through a forward proxy and hands
// back fully buffered responses.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/samber/lo"
	"golang.org/x/net/http/httpproxy"
)

// Init mirrors the options of a fetch call.
type Init struct {
	Method string
	Header http.Header
	Body   []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Text() string {
	return string(r.Body)
}

// Fetcher is an http.RoundTripper that routes requests through the
// configured proxy and buffers each response body before returning it.
type Fetcher struct {
	transport http.RoundTripper
	timeout   time.Duration
}

var _ http.RoundTripper = (*Fetcher)(nil)

// New builds a Fetcher from proxy settings. HTTPS targets are tunnelled with
// CONNECT; hosts matched by NoProxy, and loopback hosts, go direct.
func New(cfg config.ProxyConfig) *Fetcher {
	proxyFor := proxyFunc(cfg)
	return newFetcher(func(r *http.Request) (*url.URL, error) {
		return proxyFor(r.URL)
	}, cfg.Timeout)
}

func proxyFunc(cfg config.ProxyConfig) func(*url.URL) (*url.URL, error) {
	return (&httpproxy.Config{
		HTTPSProxy: cfg.HTTPSProxy,
		HTTPProxy:  cfg.HTTPProxy,
		NoProxy:    cfg.NoProxy,
	}).ProxyFunc()
}

func newFetcher(proxy func(*http.Request) (*url.URL, error), timeout time.Duration) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	return &Fetcher{transport: transport, timeout: timeout}
}

// Client returns an http.Client that uses f as its transport.
func (f *Fetcher) Client() *http.Client {
	return &http.Client{Transport: f}
}

func (f *Fetcher) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := log.FromContextOrDiscard(req.Context()).WithGroup("proxy").With(
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	if f.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), f.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := f.transport.RoundTrip(req)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()
	logger.Info("received response", "status", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("reading response body failed", "error", err)
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Del("Content-Length")
	return resp, nil
}

// Fetch performs a single request in the style of fetch(url, init).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, init Init) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, errors.New("url must be absolute"))
	}

	method := lo.Ternary(init.Method != "", init.Method, http.MethodGet)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(init.Body))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	if init.Header != nil {
		req.Header = init.Header.Clone()
	}

	resp, err := f.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", method, u.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", method, u.Redacted(), err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
