// Package transport selects the outbound HTTP client once per flow.
package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 30 * time.Second

var supportedSchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// NewHTTPClient returns the client used for the token request.
//
// An empty proxyURL yields a direct client. A proxy that cannot be used yields a
// direct client together with a *core.ConfigError; callers log it and proceed.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		base = &http.Transport{}
	}
	tr := base.Clone()
	tr.Proxy = nil

	client := &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
	if proxyURL == "" {
		return client, nil
	}

	u, err := ParseProxy(proxyURL)
	if err != nil {
		return client, err
	}
	tr.Proxy = http.ProxyURL(u)
	return client, nil
}

// ParseProxy validates a proxy endpoint.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &core.ConfigError{Message: "invalid proxy URL", Err: err}
	}
	if !supportedSchemes[u.Scheme] {
		return nil, &core.ConfigError{
			Message: "unsupported proxy scheme",
			Err:     fmt.Errorf("scheme %q is not one of http, https, socks5", u.Scheme),
		}
	}
	if u.Host == "" {
		return nil, &core.ConfigError{Message: "proxy URL has no host"}
	}
	return u, nil
}

// UsesProxy reports whether client routes requests through a proxy.
func UsesProxy(client *http.Client) bool {
	tr, ok := client.Transport.(*http.Transport)
	return ok && tr.Proxy != nil
}
