package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
// noProxy uses the NO_PROXY syntax (comma separated hosts, domains, CIDRs).
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	cfg := &httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    noProxy,
	}
	if httpsProxy == "" {
		cfg.HTTPSProxy = httpProxy
	}
	proxy := cfg.ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}
