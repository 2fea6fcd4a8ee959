package discord

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyURL builds the proxy endpoint from its parts. An empty host yields "".
func ProxyURL(scheme, host string, port int) string {
	if host == "" {
		return ""
	}
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, fmt.Sprint(port)))
}

// dialFunc matches net.Dialer.DialContext.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// proxyRoute is how REST and gateway traffic reach the network.
type proxyRoute struct {
	// httpProxy is set for http and https proxies.
	httpProxy func(*http.Request) (*url.URL, error)
	// dial is set for socks5 proxies.
	dial dialFunc
}

func newProxyRoute(raw string) (*proxyRoute, error) {
	if raw == "" {
		return &proxyRoute{}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return &proxyRoute{httpProxy: http.ProxyURL(u)}, nil
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, &net.Dialer{Timeout: 15 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			return &proxyRoute{dial: cd.DialContext}, nil
		}
		return &proxyRoute{dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}}, nil
	}
	return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
}

// NewHTTPClient returns a client that sends every request through proxyURL.
// An empty proxyURL means a direct connection.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	route, err := newProxyRoute(proxyURL)
	if err != nil {
		return nil, err
	}
	return route.httpClient(timeout), nil
}

func (r *proxyRoute) httpClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if r.httpProxy != nil {
		tr.Proxy = r.httpProxy
	}
	if r.dial != nil {
		tr.Proxy = nil
		tr.DialContext = r.dial
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}
